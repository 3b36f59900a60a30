package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BenWeekes/ai-therapist/internal/audio"
	"github.com/BenWeekes/ai-therapist/internal/config"
	"github.com/BenWeekes/ai-therapist/internal/metrics"
	"github.com/BenWeekes/ai-therapist/internal/reassembly"
	"github.com/BenWeekes/ai-therapist/internal/transcript"
	"github.com/BenWeekes/ai-therapist/internal/vad"
	"github.com/BenWeekes/ai-therapist/internal/visualizer"
	"github.com/BenWeekes/ai-therapist/internal/webhook"
)

// Manager manages all active support sessions
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *slog.Logger
	metrics  *metrics.Metrics
	config   *config.Config

	// Optional turn delivery client, nil when the webhook is disabled
	webhookClient *webhook.Client

	// Cleanup management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a new session manager. The webhook client is only
// constructed when turn delivery is enabled in the configuration.
func NewManager(logger *slog.Logger, m *metrics.Metrics, cfg *config.Config) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	var webhookClient *webhook.Client
	if cfg.Webhook.Enabled {
		client, err := webhook.NewClient(webhook.Config{
			Endpoint:      cfg.Webhook.Endpoint,
			APIKey:        cfg.Webhook.APIKey,
			Timeout:       cfg.Webhook.GetTimeoutDuration(),
			MaxRetries:    cfg.Webhook.MaxRetries,
			MaxConcurrent: cfg.Webhook.MaxConcurrent,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create webhook client: %w", err)
		}
		webhookClient = client
	}

	mgr := &Manager{
		sessions:      make(map[string]*Session),
		logger:        logger,
		metrics:       m,
		config:        cfg,
		webhookClient: webhookClient,
		ctx:           ctx,
		cancel:        cancel,
		cleanup:       make(chan struct{}),
	}

	// Start cleanup goroutine
	go mgr.startCleanupRoutine()

	return mgr, nil
}

// CreateSession creates a new session with its full processing pipeline:
// reassembler, dispatcher, voice estimator, visualizer and event channel.
// The audio pipeline itself is attached later via ReplaceSource, once the
// transport hands over a source.
func (m *Manager) CreateSession() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.config.Session.MaxSessions {
		return nil, fmt.Errorf("session limit reached (%d)", m.config.Session.MaxSessions)
	}

	viz, err := visualizer.NewVisualizer(visualizer.Config{
		BarCount:   m.config.Visualizer.BarCount,
		Gain:       m.config.Visualizer.Gain,
		NoiseFloor: m.config.Visualizer.NoiseFloor,
		Attack:     m.config.Visualizer.Attack,
		Decay:      m.config.Visualizer.Decay,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create visualizer: %w", err)
	}

	sessionCtx, sessionCancel := context.WithCancel(m.ctx)

	now := time.Now()
	session := &Session{
		ID:           uuid.NewString(),
		StartTime:    now,
		LastActivity: now,

		estimator: vad.NewEstimator(m.config.Voice.WindowSize),
		viz:       viz,

		pipelineConfig: audio.PipelineConfig{
			SamplePeriod: m.config.Voice.GetSamplePeriod(),
			TickPeriod:   m.config.Visualizer.GetTickPeriod(),
		},

		events: make(chan Event, m.config.Session.EventBuffer),

		manager: m,
		logger:  m.logger,

		ctx:    sessionCtx,
		cancel: sessionCancel,
	}

	// The dispatcher and publisher call back into the session, so they are
	// wired after the struct exists.
	session.reassembler = reassembly.NewReassembler(reassembly.Config{
		Timeout:    m.config.Reassembly.GetTimeout(),
		MaxPending: m.config.Reassembly.MaxPending,
	}, m.logger)
	session.dispatcher = transcript.NewDispatcher(m.logger, session.onTranscriptUpdate)
	session.publisher = visualizer.NewPublisher(
		m.config.Visualizer.GetPublishInterval(), session.onBars)

	session.wg.Add(1)
	go session.housekeepingLoop(m.config.Reassembly.GetSweepInterval())

	m.sessions[session.ID] = session
	m.metrics.RecordSessionCreated()

	m.logger.Info("Created new session",
		slog.String("session_id", session.ID),
		slog.Int("active_sessions", len(m.sessions)),
	)

	return session, nil
}

// GetSession retrieves an existing session
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	return session, exists
}

// GetActiveSessionCount returns the number of currently active sessions
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetAllSessions returns a snapshot of all active sessions (for monitoring)
func (m *Manager) GetAllSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}

	return sessions
}

// RemoveSession removes a session and tears down its processing
func (m *Manager) RemoveSession(id string) bool {
	m.mu.Lock()
	session, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !exists {
		return false
	}

	duration := time.Since(session.StartTime)
	stats := session.reassembler.GetStats()

	session.close()
	m.metrics.RecordSessionRemoved(duration.Seconds())

	m.logger.Info("Session removed",
		slog.String("session_id", id),
		slog.Duration("duration", duration),
		slog.Int("turns", session.dispatcher.TurnCount()),
		slog.Uint64("messages_completed", stats.Completed),
		slog.Uint64("messages_evicted", stats.Evicted),
	)

	return true
}

// Stop gracefully stops the session manager
func (m *Manager) Stop() {
	m.logger.Info("Stopping session manager...")

	// Close all sessions first
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.RemoveSession(id)
	}

	// Close webhook client
	if m.webhookClient != nil {
		if err := m.webhookClient.Close(); err != nil {
			m.logger.Warn("Error closing webhook client", slog.String("error", err.Error()))
		}
	}

	// Cancel context to stop cleanup routine
	m.cancel()

	// Wait for cleanup routine to finish
	<-m.cleanup

	if m.webhookClient != nil {
		stats := m.webhookClient.GetStats()
		m.logger.Info("Session manager stopped",
			slog.Uint64("webhook_requests", stats.TotalRequests),
			slog.Uint64("webhook_successes", stats.SuccessRequests),
			slog.Float64("webhook_success_rate", stats.SuccessRate),
		)
		return
	}
	m.logger.Info("Session manager stopped")
}

// GetWebhookStats returns turn delivery statistics, or false when the
// webhook is disabled.
func (m *Manager) GetWebhookStats() (webhook.ClientStats, bool) {
	if m.webhookClient == nil {
		return webhook.ClientStats{}, false
	}
	return m.webhookClient.GetStats(), true
}

// startCleanupRoutine runs in a separate goroutine to clean up idle sessions
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	checkInterval := 30 * time.Second
	idleTimeout := m.config.Session.GetIdleTimeout()
	if idleTimeout < checkInterval {
		checkInterval = idleTimeout
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	m.logger.Info("Session cleanup routine started",
		slog.Duration("idle_timeout", idleTimeout),
		slog.Duration("check_interval", checkInterval),
	)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Session cleanup routine stopping")
			return

		case <-ticker.C:
			m.cleanupIdleSessions(idleTimeout)
		}
	}
}

// cleanupIdleSessions removes sessions that have been inactive for too long
func (m *Manager) cleanupIdleSessions(idleTimeout time.Duration) {
	now := time.Now()
	idle := make([]string, 0)

	m.mu.RLock()
	for id, session := range m.sessions {
		session.mu.Lock()
		lastActivity := session.LastActivity
		session.mu.Unlock()

		if now.Sub(lastActivity) > idleTimeout {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	if len(idle) > 0 {
		m.logger.Info("Cleaning up idle sessions",
			slog.Int("idle_count", len(idle)),
		)

		for _, id := range idle {
			m.RemoveSession(id)
		}
	}
}
