package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BenWeekes/ai-therapist/internal/audio"
	"github.com/BenWeekes/ai-therapist/internal/protocol"
	"github.com/BenWeekes/ai-therapist/internal/reassembly"
	"github.com/BenWeekes/ai-therapist/internal/transcript"
	"github.com/BenWeekes/ai-therapist/internal/vad"
	"github.com/BenWeekes/ai-therapist/internal/visualizer"
	"github.com/BenWeekes/ai-therapist/internal/webhook"
)

// Session owns the processing pipeline for one live audio/video session:
// a chunk reassembler and transcript dispatcher on the side-channel path,
// and a voice-activity/visualization pipeline on the audio path. All
// resources are constructed and closed explicitly; nothing is ambient.
type Session struct {
	ID           string
	StartTime    time.Time
	LastActivity time.Time

	reassembler *reassembly.Reassembler
	dispatcher  *transcript.Dispatcher
	estimator   *vad.Estimator
	viz         *visualizer.Visualizer
	publisher   *visualizer.Publisher

	pipeline       *audio.Pipeline
	pipelineConfig audio.PipelineConfig

	events chan Event

	manager *Manager
	logger  *slog.Logger

	// Last counts synced to the shared metrics; the gauges are global, so
	// each session contributes deltas rather than setting absolute values.
	evictedSeen uint64
	pendingSeen int

	// Housekeeping control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closed bool
	mu     sync.Mutex
}

// HandleChunk processes one raw side-channel message: parse, ingest,
// dispatch, publish. Every failure mode is logged and absorbed here; the
// transport caller never sees an error.
func (s *Session) HandleChunk(raw string) {
	s.touch()

	m := s.manager.metrics
	m.ChunksReceived.Inc()

	chunk, err := protocol.ParseChunk(raw)
	if err != nil {
		m.ChunkParseErrors.Inc()
		s.logger.Warn("Failed to parse chunk",
			slog.String("session_id", s.ID),
			slog.Int("raw_len", len(raw)),
			slog.String("error", err.Error()),
		)
		return
	}

	record, result := s.reassembler.Ingest(chunk)
	switch result {
	case reassembly.ResultDroppedUnknown:
		m.ChunksUnknownTotal.Inc()
	case reassembly.ResultDuplicate:
		m.ChunksDuplicate.Inc()
	case reassembly.ResultDecodeError:
		m.DecodeErrors.Inc()
	case reassembly.ResultCapacity:
		m.CapacityDrops.Inc()
	case reassembly.ResultCompleted:
		m.MessagesCompleted.Inc()
		m.AssemblyParts.Observe(float64(chunk.TotalParts))
	}
	s.syncReassemblyMetrics()

	if result != reassembly.ResultCompleted {
		return
	}

	if !s.dispatcher.Dispatch(record) {
		m.RecordsRejected.Inc()
		return
	}
	if record.IsFinal {
		m.TurnsFinalized.Inc()
	} else {
		m.PartialUpdates.Inc()
	}
}

// ReplaceSource swaps the audio source. The prior pipeline is fully torn
// down (loop stopped, source closed) before the new one is constructed;
// partial teardown would leak tickers and source handles. A source that
// fails to start is replaced by the all-zero baseline with no retry.
func (s *Session) ReplaceSource(src audio.Source) error {
	s.touch()

	// Detach the old pipeline under the lock, stop it outside: the pipeline
	// goroutine publishes events, which takes the same lock.
	s.mu.Lock()
	old := s.pipeline
	s.pipeline = nil
	s.mu.Unlock()

	if old != nil {
		old.Stop()
		s.manager.metrics.SourceSwaps.Inc()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		// Session already torn down; just release the new source.
		return src.Close()
	}
	ctx := s.ctx
	s.mu.Unlock()

	pipeline, err := audio.NewPipeline(s.pipelineConfig, src, s.estimator, s.viz,
		s.publisher, s.onVoiceState, s.logger)
	if err != nil {
		if closeErr := src.Close(); closeErr != nil {
			s.logger.Warn("Error closing unstartable source", slog.String("error", closeErr.Error()))
		}
		return err
	}

	startErr := pipeline.Start(ctx)
	if startErr != nil {
		s.manager.metrics.SourceFailures.Inc()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		pipeline.Stop()
		return startErr
	}
	s.pipeline = pipeline
	s.mu.Unlock()
	return startErr
}

// Events returns the typed event stream consumed by the rendering
// collaborator. The channel is closed when the session closes.
func (s *Session) Events() <-chan Event {
	return s.events
}

// GetTranscript returns a point-in-time copy of the transcript state.
func (s *Session) GetTranscript() transcript.Snapshot {
	return s.dispatcher.GetSnapshot()
}

// VoiceState returns the current speaking/listening state.
func (s *Session) VoiceState() vad.State {
	return s.estimator.State()
}

// GetSessionInfo returns session information for monitoring and APIs.
func (s *Session) GetSessionInfo() Info {
	s.mu.Lock()
	startTime := s.StartTime
	lastActivity := s.LastActivity
	s.mu.Unlock()

	published, suppressed := s.publisher.Counts()

	return Info{
		SessionID:      s.ID,
		StartTime:      startTime,
		LastActivity:   lastActivity,
		Duration:       time.Since(startTime),
		VoiceState:     s.estimator.State().String(),
		Turns:          s.dispatcher.TurnCount(),
		Reassembly:     s.reassembler.GetStats(),
		Voice:          s.estimator.GetStats(),
		BarsPublished:  published,
		BarsSuppressed: suppressed,
	}
}

// Info represents session information for monitoring and APIs
type Info struct {
	SessionID      string                `json:"session_id"`
	StartTime      time.Time             `json:"start_time"`
	LastActivity   time.Time             `json:"last_activity"`
	Duration       time.Duration         `json:"duration"`
	VoiceState     string                `json:"voice_state"`
	Turns          int                   `json:"turns"`
	Reassembly     reassembly.Stats      `json:"reassembly"`
	Voice          vad.EstimatorStats    `json:"voice"`
	BarsPublished  uint64                `json:"bars_published"`
	BarsSuppressed uint64                `json:"bars_suppressed"`
}

// close tears the session down: pipeline first, then housekeeping, then
// the event channel. Called by the manager with the session removed from
// the map, so no new work can arrive.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pipeline := s.pipeline
	s.pipeline = nil
	s.mu.Unlock()

	if pipeline != nil {
		pipeline.Stop()
	}

	s.cancel()
	s.wg.Wait()

	if s.estimator.State() == vad.StateSpeaking {
		s.manager.metrics.SpeakingSessions.Dec()
	}

	// Withdraw this session's contribution from the shared pending gauge.
	s.mu.Lock()
	remaining := s.pendingSeen
	s.pendingSeen = 0
	s.mu.Unlock()
	if remaining != 0 {
		s.manager.metrics.PendingMessages.Sub(float64(remaining))
	}

	close(s.events)
}

// touch updates the last-activity timestamp.
func (s *Session) touch() {
	s.mu.Lock()
	s.LastActivity = time.Now()
	s.mu.Unlock()
}

// publish delivers an event without ever blocking the producing path.
// A full channel drops the event and counts it.
func (s *Session) publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.events <- event:
	default:
		s.manager.metrics.EventsDropped.Inc()
		s.logger.Debug("Event channel full, dropping event",
			slog.String("session_id", s.ID),
		)
	}
}

// onTranscriptUpdate forwards dispatcher updates as typed events and
// hands finalized turns to the webhook client.
func (s *Session) onTranscriptUpdate(update transcript.Update) {
	s.publish(TranscriptEvent{
		Finalized:  update.Finalized,
		InProgress: update.InProgress,
	})

	if update.Finalized != nil && s.manager.webhookClient != nil {
		turn := &webhook.TurnEvent{
			SessionID:   s.ID,
			TurnID:      update.Finalized.TurnID,
			Participant: update.Finalized.Participant,
			Text:        update.Finalized.Text,
			Timestamp:   update.Finalized.Timestamp,
			FinalizedAt: time.Now(),
		}
		go s.deliverTurn(turn)
	}
}

// onVoiceState forwards speaking/listening transitions as typed events.
func (s *Session) onVoiceState(state vad.State) {
	s.manager.metrics.VoiceTransitions.Inc()
	if state == vad.StateSpeaking {
		s.manager.metrics.SpeakingSessions.Inc()
	} else {
		s.manager.metrics.SpeakingSessions.Dec()
	}

	s.publish(VoiceStateEvent{State: state})
}

// onBars forwards published bar arrays as typed events.
func (s *Session) onBars(bars []float64) {
	s.manager.metrics.BarsPublished.Inc()
	s.publish(BarsEvent{Bars: bars})
}

// deliverTurn posts one finalized turn to the configured webhook.
func (s *Session) deliverTurn(turn *webhook.TurnEvent) {
	m := s.manager.metrics
	m.WebhookRequests.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startTime := time.Now()
	err := s.manager.webhookClient.Deliver(ctx, turn)
	duration := time.Since(startTime)

	if err != nil {
		m.RecordWebhookFailure(duration.Seconds())
		s.logger.Error("Turn webhook delivery failed",
			slog.String("session_id", s.ID),
			slog.Int("turn_id", turn.TurnID),
			slog.String("error", err.Error()),
			slog.Float64("duration", duration.Seconds()),
		)
		return
	}

	m.RecordWebhookSuccess(duration.Seconds())
	s.logger.Debug("Turn webhook delivered",
		slog.String("session_id", s.ID),
		slog.Int("turn_id", turn.TurnID),
		slog.Float64("duration", duration.Seconds()),
	)
}

// housekeepingLoop sweeps expired pending messages during quiet periods
// with no chunk arrivals.
func (s *Session) housekeepingLoop(sweepInterval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if evicted := s.reassembler.Sweep(); evicted > 0 {
				s.syncReassemblyMetrics()
			}
		}
	}
}

// syncReassemblyMetrics reconciles the eviction counter and pending gauge
// with the reassembler, covering both lazy and swept evictions.
func (s *Session) syncReassemblyMetrics() {
	stats := s.reassembler.GetStats()

	s.mu.Lock()
	evictedDelta := stats.Evicted - s.evictedSeen
	s.evictedSeen = stats.Evicted
	pendingDelta := stats.Pending - s.pendingSeen
	s.pendingSeen = stats.Pending
	s.mu.Unlock()

	if evictedDelta > 0 {
		s.manager.metrics.MessagesEvicted.Add(float64(evictedDelta))
	}
	if pendingDelta != 0 {
		s.manager.metrics.PendingMessages.Add(float64(pendingDelta))
	}
}
