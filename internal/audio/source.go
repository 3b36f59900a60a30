package audio

import (
	"context"
	"sync"
)

// Level is one instantaneous reading from a live audio track.
// Amplitude feeds the voice-activity estimator; Energy feeds the
// visualizer. Sources that measure a single quantity set both.
type Level struct {
	Amplitude float64 `json:"amplitude"`
	Energy    float64 `json:"energy"`
}

// Source provides periodic level readings from a live audio track. Start
// acquires the underlying resource and Close releases it; a source that
// fails to start must hold no resources. Level returns the most recent
// reading and must be safe for concurrent use.
type Source interface {
	Start(ctx context.Context) error
	Level() Level
	Close() error
}

// ZeroSource is the all-zero baseline used when a real source fails to
// set up: the visualizer shows no bars and the estimator stays listening.
type ZeroSource struct{}

func (ZeroSource) Start(context.Context) error { return nil }
func (ZeroSource) Level() Level                { return Level{} }
func (ZeroSource) Close() error                { return nil }

// PushSource is a Source fed by an external producer, such as a transport
// connection delivering amplitude samples. It always starts successfully.
type PushSource struct {
	level  Level
	closed bool
	mu     sync.RWMutex
}

// NewPushSource creates a push source with a zero initial level.
func NewPushSource() *PushSource {
	return &PushSource{}
}

// Start implements Source.
func (s *PushSource) Start(context.Context) error { return nil }

// Push records a new level reading. Pushes after Close are ignored.
func (s *PushSource) Push(level Level) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.level = level
}

// Level returns the most recent reading.
func (s *PushSource) Level() Level {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.level
}

// Close drops the source back to the zero level and rejects further pushes.
func (s *PushSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.level = Level{}
	return nil
}
