package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BenWeekes/ai-therapist/internal/config"
	"github.com/BenWeekes/ai-therapist/internal/metrics"
	"github.com/BenWeekes/ai-therapist/internal/session"
)

// HTTPServer provides HTTP API endpoints for monitoring and management
type HTTPServer struct {
	server     *http.Server
	logger     *slog.Logger
	config     *config.Config
	sessionMgr *session.Manager
	metrics    *metrics.Metrics

	// Server state
	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(logger *slog.Logger, appConfig *config.Config,
	sessionMgr *session.Manager, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:     logger,
		config:     appConfig,
		sessionMgr: sessionMgr,
		metrics:    m,
		startTime:  time.Now(),
	}

	// Create HTTP server with routes
	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.Server.BindAddress, appConfig.Server.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Session transport endpoint (WebSocket upgrade, no read timeout)
	mux.Handle("/ws", NewWSHandler(h.logger, h.sessionMgr, h.metrics, h.config.Server.WSReadLimit))

	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Session monitoring endpoints
	mux.HandleFunc("/sessions", h.withMetrics("/sessions", h.handleSessions))
	mux.HandleFunc("/sessions/", h.withMetrics("/sessions/{id}", h.handleSessionDetail))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// requireGet rejects non-GET requests.
func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// writeJSON renders v as the JSON response body.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	uptime := time.Since(h.startTime)

	components := map[string]interface{}{
		"session_manager": map[string]interface{}{
			"status":          "running",
			"active_sessions": h.sessionMgr.GetActiveSessionCount(),
		},
	}
	if webhookStats, enabled := h.sessionMgr.GetWebhookStats(); enabled {
		components["webhook"] = map[string]interface{}{
			"status":         "running",
			"total_requests": webhookStats.TotalRequests,
			"success_rate":   webhookStats.SuccessRate,
		}
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "ai-therapist",
			"version": "1.0.0",
		},
		"components": components,
	}

	writeJSON(w, health)
}

// handleSessions implements the /sessions endpoint
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	sessions := h.sessionMgr.GetAllSessions()
	sessionInfos := make([]session.Info, 0, len(sessions))

	for _, s := range sessions {
		sessionInfos = append(sessionInfos, s.GetSessionInfo())
	}

	response := map[string]interface{}{
		"total_sessions": len(sessionInfos),
		"timestamp":      time.Now().UTC(),
		"sessions":       sessionInfos,
	}

	writeJSON(w, response)
}

// handleSessionDetail implements /sessions/{id} and /sessions/{id}/transcript
func (h *HTTPServer) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	path := r.URL.Path[len("/sessions/"):]
	id, wantTranscript := strings.CutSuffix(path, "/transcript")
	if id == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}

	s, exists := h.sessionMgr.GetSession(id)
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	if wantTranscript {
		writeJSON(w, s.GetTranscript())
		return
	}
	writeJSON(w, s.GetSessionInfo())
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	sanitizedConfig := map[string]interface{}{
		"server": map[string]interface{}{
			"port":          h.config.Server.Port,
			"bind_address":  h.config.Server.BindAddress,
			"ws_read_limit": h.config.Server.WSReadLimit,
		},
		"reassembly": map[string]interface{}{
			"timeout_ms":        h.config.Reassembly.TimeoutMS,
			"max_pending":       h.config.Reassembly.MaxPending,
			"sweep_interval_ms": h.config.Reassembly.SweepIntervalMS,
		},
		"voice": map[string]interface{}{
			"sample_period_ms": h.config.Voice.SamplePeriodMS,
			"window_size":      h.config.Voice.WindowSize,
		},
		"visualizer": map[string]interface{}{
			"bar_count":       h.config.Visualizer.BarCount,
			"gain":            h.config.Visualizer.Gain,
			"noise_floor":     h.config.Visualizer.NoiseFloor,
			"attack":          h.config.Visualizer.Attack,
			"decay":           h.config.Visualizer.Decay,
			"tick_rate_hz":    h.config.Visualizer.TickRateHz,
			"publish_rate_hz": h.config.Visualizer.PublishRateHz,
		},
		"session": map[string]interface{}{
			"idle_timeout": h.config.Session.IdleTimeout,
			"event_buffer": h.config.Session.EventBuffer,
			"max_sessions": h.config.Session.MaxSessions,
		},
		"webhook": map[string]interface{}{
			"enabled":        h.config.Webhook.Enabled,
			"endpoint":       h.config.Webhook.Endpoint,
			"timeout":        h.config.Webhook.Timeout,
			"max_retries":    h.config.Webhook.MaxRetries,
			"max_concurrent": h.config.Webhook.MaxConcurrent,
			// api_key deliberately excluded
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"sessions": map[string]interface{}{
			"active_count": h.sessionMgr.GetActiveSessionCount(),
		},
	}
	if webhookStats, enabled := h.sessionMgr.GetWebhookStats(); enabled {
		stats["webhook"] = webhookStats
	}

	writeJSON(w, stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "AI Therapist Session Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                         "API documentation",
			"GET /ws":                       "Session transport (WebSocket upgrade)",
			"GET /health":                   "Service health check",
			"GET /sessions":                 "List all active sessions",
			"GET /sessions/{id}":            "Get detailed session information",
			"GET /sessions/{id}/transcript": "Get session transcript snapshot",
			"GET /config":                   "Get service configuration",
			"GET /stats":                    "Get service statistics",
			"GET /metrics":                  "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, apiDoc)
}
