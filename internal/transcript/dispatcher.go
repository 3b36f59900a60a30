package transcript

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/BenWeekes/ai-therapist/internal/protocol"
)

// Participant identifies one of the two logical speakers in a session.
// The model is deliberately limited to exactly two: the agent and the user.
type Participant int

const (
	ParticipantAgent Participant = 0
	ParticipantUser  Participant = 1
)

// String returns a human-readable participant name.
func (p Participant) String() string {
	switch p {
	case ParticipantAgent:
		return "agent"
	case ParticipantUser:
		return "user"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// FinalizedMessage is one completed turn of dialogue. Once appended to the
// transcript it is never mutated or removed.
type FinalizedMessage struct {
	TurnID      int         `json:"turn_id"`
	Participant Participant `json:"participant_id"`
	Text        string      `json:"text"`
	Timestamp   int64       `json:"timestamp"`
}

// InProgressMessage is a not-yet-finalized turn. At most one exists at a
// time; it is overwritten, never merged, until finalized or superseded.
type InProgressMessage struct {
	Participant Participant `json:"participant_id"`
	Text        string      `json:"text"`
	Timestamp   int64       `json:"timestamp"`
}

// Update describes a transcript mutation delivered to observers.
// Finalized is set when a turn was appended; InProgress reflects the
// current in-progress slot (nil when the slot is empty).
type Update struct {
	Finalized  *FinalizedMessage  `json:"finalized,omitempty"`
	InProgress *InProgressMessage `json:"in_progress,omitempty"`
}

// Snapshot is a point-in-time copy of the transcript state.
type Snapshot struct {
	Finalized  []FinalizedMessage `json:"finalized"`
	InProgress *InProgressMessage `json:"in_progress,omitempty"`
}

// Dispatcher turns decoded transcript records into an ordered, append-only
// list of finalized turns plus a single mutable in-progress slot. Turn ids
// are assigned from a monotonic counter owned by the dispatcher.
type Dispatcher struct {
	finalized  []FinalizedMessage
	inProgress *InProgressMessage
	nextTurnID int
	logger     *slog.Logger
	notify     func(Update)

	mu sync.Mutex
}

// NewDispatcher creates a dispatcher. notify, when non-nil, is invoked
// synchronously after every accepted record with the resulting update;
// it must not block.
func NewDispatcher(logger *slog.Logger, notify func(Update)) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		notify: notify,
	}
}

// Dispatch applies one decoded record to the transcript. Records whose
// text is empty or whitespace-only are rejected as a no-op. It reports
// whether the record changed the transcript.
func (d *Dispatcher) Dispatch(record *protocol.TranscriptRecord) bool {
	if strings.TrimSpace(record.Text) == "" {
		return false
	}

	participant := ParticipantUser
	if record.IsAgent() {
		participant = ParticipantAgent
	}

	d.mu.Lock()

	var update Update
	if record.IsFinal {
		message := FinalizedMessage{
			TurnID:      d.nextTurnID,
			Participant: participant,
			Text:        record.Text,
			Timestamp:   record.TextTS,
		}
		d.nextTurnID++
		d.finalized = append(d.finalized, message)
		d.inProgress = nil
		update = Update{Finalized: &message}

		d.logger.Debug("Turn finalized",
			slog.Int("turn_id", message.TurnID),
			slog.String("participant", participant.String()),
			slog.Int("text_len", len(message.Text)),
		)
	} else {
		// Last write wins: concurrent in-progress turns are not queued.
		message := &InProgressMessage{
			Participant: participant,
			Text:        record.Text,
			Timestamp:   record.TextTS,
		}
		d.inProgress = message
		update = Update{InProgress: message}
	}

	notify := d.notify
	d.mu.Unlock()

	if notify != nil {
		notify(update)
	}
	return true
}

// Finalized returns a copy of the finalized turn list in append order.
func (d *Dispatcher) Finalized() []FinalizedMessage {
	d.mu.Lock()
	defer d.mu.Unlock()

	messages := make([]FinalizedMessage, len(d.finalized))
	copy(messages, d.finalized)
	return messages
}

// InProgress returns the current in-progress message, if any.
func (d *Dispatcher) InProgress() (InProgressMessage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inProgress == nil {
		return InProgressMessage{}, false
	}
	return *d.inProgress, true
}

// TurnCount returns the number of finalized turns.
func (d *Dispatcher) TurnCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.finalized)
}

// GetSnapshot returns a point-in-time copy of the transcript state.
func (d *Dispatcher) GetSnapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot := Snapshot{
		Finalized: make([]FinalizedMessage, len(d.finalized)),
	}
	copy(snapshot.Finalized, d.finalized)
	if d.inProgress != nil {
		inProgress := *d.inProgress
		snapshot.InProgress = &inProgress
	}
	return snapshot
}
