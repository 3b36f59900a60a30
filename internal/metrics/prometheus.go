package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the session service
type Metrics struct {
	// Chunk reassembly metrics
	ChunksReceived     prometheus.Counter
	ChunksUnknownTotal prometheus.Counter
	ChunksDuplicate    prometheus.Counter
	ChunkParseErrors   prometheus.Counter
	MessagesCompleted  prometheus.Counter
	MessagesEvicted    prometheus.Counter
	DecodeErrors       prometheus.Counter
	CapacityDrops      prometheus.Counter
	PendingMessages    prometheus.Gauge
	AssemblyParts      prometheus.Histogram

	// Transcript metrics
	TurnsFinalized     prometheus.Counter
	PartialUpdates     prometheus.Counter
	RecordsRejected    prometheus.Counter

	// Voice-activity metrics
	VoiceTransitions prometheus.Counter
	SpeakingSessions prometheus.Gauge

	// Visualizer metrics
	BarsPublished  prometheus.Counter
	BarsSuppressed prometheus.Counter

	// Session metrics
	ActiveSessions   prometheus.Gauge
	SessionsCreated  prometheus.Counter
	SessionsRemoved  prometheus.Counter
	SessionDuration  prometheus.Histogram
	EventsDropped    prometheus.Counter
	SourceSwaps      prometheus.Counter
	SourceFailures   prometheus.Counter

	// Webhook metrics
	WebhookRequests  prometheus.Counter
	WebhookSuccesses prometheus.Counter
	WebhookFailures  prometheus.Counter
	WebhookRetries   prometheus.Counter
	WebhookDuration  prometheus.Histogram

	// Transport metrics
	WSConnections       prometheus.Gauge
	WSFramesReceived    prometheus.Counter
	WSFrameErrors       prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Chunk reassembly metrics
		ChunksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_chunks_received_total",
			Help: "Total number of side-channel chunks received",
		}),
		ChunksUnknownTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_chunks_unknown_total_total",
			Help: "Total number of chunks dropped for an unknown total part count",
		}),
		ChunksDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_chunks_duplicate_total",
			Help: "Total number of duplicate chunks ignored",
		}),
		ChunkParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_chunk_parse_errors_total",
			Help: "Total number of malformed chunk envelopes",
		}),
		MessagesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_messages_completed_total",
			Help: "Total number of messages successfully reassembled",
		}),
		MessagesEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_messages_evicted_total",
			Help: "Total number of incomplete messages evicted after timeout",
		}),
		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_decode_errors_total",
			Help: "Total number of reassembled payloads that failed to decode",
		}),
		CapacityDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_capacity_drops_total",
			Help: "Total number of chunks refused because the pending map was full",
		}),
		PendingMessages: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "therapist_pending_messages",
			Help: "Current number of messages awaiting missing parts",
		}),
		AssemblyParts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "therapist_assembly_parts",
			Help:    "Declared part count of completed messages",
			Buckets: prometheus.LinearBuckets(1, 2, 10), // 1 to 19 parts
		}),

		// Transcript metrics
		TurnsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_turns_finalized_total",
			Help: "Total number of finalized transcript turns",
		}),
		PartialUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_partial_updates_total",
			Help: "Total number of in-progress transcript overwrites",
		}),
		RecordsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_records_rejected_total",
			Help: "Total number of records rejected for empty or whitespace text",
		}),

		// Voice-activity metrics
		VoiceTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_voice_transitions_total",
			Help: "Total number of speaking/listening state transitions",
		}),
		SpeakingSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "therapist_speaking_sessions",
			Help: "Current number of sessions in the speaking state",
		}),

		// Visualizer metrics
		BarsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_bars_published_total",
			Help: "Total number of bar arrays published to renderers",
		}),
		BarsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_bars_suppressed_total",
			Help: "Total number of bar arrays suppressed by the publish rate cap",
		}),

		// Session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "therapist_active_sessions",
			Help: "Current number of active sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_sessions_removed_total",
			Help: "Total number of sessions removed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "therapist_session_duration_seconds",
			Help:    "Duration of closed sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_events_dropped_total",
			Help: "Total number of session events dropped on a full channel",
		}),
		SourceSwaps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_source_swaps_total",
			Help: "Total number of audio source replacements",
		}),
		SourceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_source_failures_total",
			Help: "Total number of audio sources that failed to start",
		}),

		// Webhook metrics
		WebhookRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_webhook_requests_total",
			Help: "Total number of turn webhook deliveries attempted",
		}),
		WebhookSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_webhook_successes_total",
			Help: "Total number of successful turn webhook deliveries",
		}),
		WebhookFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_webhook_failures_total",
			Help: "Total number of failed turn webhook deliveries",
		}),
		WebhookRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_webhook_retries_total",
			Help: "Total number of turn webhook delivery retries",
		}),
		WebhookDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "therapist_webhook_duration_seconds",
			Help:    "Duration of turn webhook deliveries",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}),

		// Transport metrics
		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "therapist_ws_connections",
			Help: "Current number of WebSocket connections",
		}),
		WSFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_ws_frames_received_total",
			Help: "Total number of WebSocket frames received",
		}),
		WSFrameErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "therapist_ws_frame_errors_total",
			Help: "Total number of malformed WebSocket frames",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "therapist_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "therapist_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "therapist_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionRemoved records a removed session and its duration
func (m *Metrics) RecordSessionRemoved(durationSeconds float64) {
	m.SessionsRemoved.Inc()
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordWebhookSuccess records a successful webhook delivery
func (m *Metrics) RecordWebhookSuccess(durationSeconds float64) {
	m.WebhookSuccesses.Inc()
	m.WebhookDuration.Observe(durationSeconds)
}

// RecordWebhookFailure records a failed webhook delivery
func (m *Metrics) RecordWebhookFailure(durationSeconds float64) {
	m.WebhookFailures.Inc()
	m.WebhookDuration.Observe(durationSeconds)
}
