package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BenWeekes/ai-therapist/internal/audio"
	"github.com/BenWeekes/ai-therapist/internal/metrics"
	"github.com/BenWeekes/ai-therapist/internal/session"
)

// clientFrame is a JSON message received from a session transport. Two
// kinds exist: "chunk" carries one raw side-channel message, "level"
// carries one amplitude/energy reading from the remote audio track.
type clientFrame struct {
	Type      string  `json:"type"`
	Data      string  `json:"data,omitempty"`
	Amplitude float64 `json:"amplitude,omitempty"`
	Energy    float64 `json:"energy,omitempty"`
}

// serverFrame is a JSON message sent back to the transport.
type serverFrame struct {
	Type       string      `json:"type"`
	SessionID  string      `json:"session_id,omitempty"`
	State      string      `json:"state,omitempty"`
	Bars       []float64   `json:"bars,omitempty"`
	Finalized  interface{} `json:"finalized,omitempty"`
	InProgress interface{} `json:"in_progress,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// WSHandler upgrades session transport connections and bridges frames to
// session processing: inbound chunk and level frames feed the session,
// outbound typed events are streamed back as JSON frames.
type WSHandler struct {
	logger     *slog.Logger
	sessionMgr *session.Manager
	metrics    *metrics.Metrics
	readLimit  int64

	upgrader websocket.Upgrader
}

// NewWSHandler creates a WebSocket handler bound to the session manager.
func NewWSHandler(logger *slog.Logger, sessionMgr *session.Manager, m *metrics.Metrics, readLimit int64) *WSHandler {
	return &WSHandler{
		logger:     logger,
		sessionMgr: sessionMgr,
		metrics:    m,
		readLimit:  readLimit,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	sess, err := h.sessionMgr.CreateSession()
	if err != nil {
		h.writeError(conn, err.Error())
		return
	}

	h.metrics.WSConnections.Inc()
	defer h.metrics.WSConnections.Dec()

	h.logger.Info("Transport connected",
		slog.String("session_id", sess.ID),
		slog.String("remote_addr", r.RemoteAddr),
	)

	// The transport feeds level readings; the session samples them on its
	// own clock. A source that fails to start falls back to the all-zero
	// baseline inside the session, so the start error is log-only here.
	src := audio.NewPushSource()
	if err := sess.ReplaceSource(src); err != nil {
		h.logger.Warn("Audio source failed to start, using zero baseline",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
	}

	// Single writer goroutine: gorilla connections allow one concurrent
	// writer, and the event channel is the only outbound path.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeEvents(conn, sess)
	}()

	h.readFrames(conn, sess, src)

	// Removal closes the event channel, which terminates the writer.
	h.sessionMgr.RemoveSession(sess.ID)
	<-writerDone

	h.logger.Info("Transport disconnected",
		slog.String("session_id", sess.ID),
		slog.String("remote_addr", r.RemoteAddr),
	)
}

// readFrames consumes client frames until the connection drops or the
// client closes. Malformed frames are counted and skipped, never fatal.
func (h *WSHandler) readFrames(conn *websocket.Conn, sess *session.Session, src *audio.PushSource) {
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("WebSocket read error",
					slog.String("session_id", sess.ID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		if messageType != websocket.TextMessage {
			h.metrics.WSFrameErrors.Inc()
			continue
		}

		h.metrics.WSFramesReceived.Inc()

		var frame clientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			h.metrics.WSFrameErrors.Inc()
			h.logger.Debug("Invalid client frame",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		switch frame.Type {
		case "chunk":
			sess.HandleChunk(frame.Data)
		case "level":
			src.Push(audio.Level{Amplitude: frame.Amplitude, Energy: frame.Energy})
		default:
			h.metrics.WSFrameErrors.Inc()
			h.logger.Debug("Unknown frame type",
				slog.String("session_id", sess.ID),
				slog.String("type", frame.Type),
			)
		}
	}
}

// writeEvents streams session events to the transport until the event
// channel closes. A write failure stops the loop; the reader notices the
// dead connection independently.
func (h *WSHandler) writeEvents(conn *websocket.Conn, sess *session.Session) {
	hello := serverFrame{Type: "session", SessionID: sess.ID}
	if err := conn.WriteJSON(hello); err != nil {
		return
	}

	for event := range sess.Events() {
		var frame serverFrame
		switch e := event.(type) {
		case session.TranscriptEvent:
			frame = serverFrame{
				Type:       "transcript",
				Finalized:  e.Finalized,
				InProgress: e.InProgress,
			}
		case session.VoiceStateEvent:
			frame = serverFrame{Type: "voice_state", State: e.State.String()}
		case session.BarsEvent:
			frame = serverFrame{Type: "bars", Bars: e.Bars}
		default:
			continue
		}

		if err := conn.WriteJSON(frame); err != nil {
			h.logger.Debug("WebSocket write failed",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

// writeError sends a terminal error frame and a close control message.
func (h *WSHandler) writeError(conn *websocket.Conn, message string) {
	_ = conn.WriteJSON(serverFrame{Type: "error", Message: message})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message),
		time.Now().Add(2*time.Second))
}
