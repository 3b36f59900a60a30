package vad

import (
	"fmt"
	"sync"
	"time"
)

// State is the binary voice-activity state of the remote speaker.
type State int

const (
	StateListening State = iota
	StateSpeaking
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateSpeaking:
		return "speaking"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Default estimator parameters. Amplitude is sampled on a fixed period and
// transitions require two consecutive agreeing samples, so a single stray
// reading never flips the state.
const (
	DefaultSamplePeriod = 100 * time.Millisecond
	DefaultWindowSize   = 3
)

// EstimatorStats is a snapshot of estimator counters.
type EstimatorStats struct {
	State           string    `json:"state"`
	TotalSamples    uint64    `json:"total_samples"`
	SpeakingSamples uint64    `json:"speaking_samples"`
	Transitions     uint64    `json:"transitions"`
	LastSampled     time.Time `json:"last_sampled"`
}

// Estimator infers a speaking/listening state from periodic instantaneous
// amplitude samples. It is a Moore machine re-evaluated on every sample:
// the window keeps the most recent samples and a transition happens only
// when the two newest samples agree (both zero or both nonzero).
type Estimator struct {
	windowSize int
	window     []float64
	state      State

	totalSamples    uint64
	speakingSamples uint64
	transitions     uint64
	lastSampled     time.Time

	mu sync.Mutex
}

// NewEstimator creates an estimator in the listening state. windowSize
// values below 2 fall back to the default.
func NewEstimator(windowSize int) *Estimator {
	if windowSize < 2 {
		windowSize = DefaultWindowSize
	}
	return &Estimator{
		windowSize: windowSize,
		window:     make([]float64, 0, windowSize),
		state:      StateListening,
	}
}

// Sample pushes one amplitude reading and returns the resulting state.
// Until the window holds at least two samples the state is held.
func (e *Estimator) Sample(amplitude float64) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.window = append(e.window, amplitude)
	if len(e.window) > e.windowSize {
		e.window = e.window[len(e.window)-e.windowSize:]
	}

	e.totalSamples++
	e.lastSampled = time.Now()

	if len(e.window) >= 2 {
		prev := e.window[len(e.window)-2]
		curr := e.window[len(e.window)-1]

		next := e.state
		switch {
		case prev == 0 && curr == 0:
			next = StateListening
		case prev != 0 && curr != 0:
			next = StateSpeaking
		}
		if next != e.state {
			e.state = next
			e.transitions++
		}
	}

	if e.state == StateSpeaking {
		e.speakingSamples++
	}
	return e.state
}

// State returns the current voice-activity state.
func (e *Estimator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// GetStats returns a snapshot of estimator counters.
func (e *Estimator) GetStats() EstimatorStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return EstimatorStats{
		State:           e.state.String(),
		TotalSamples:    e.totalSamples,
		SpeakingSamples: e.speakingSamples,
		Transitions:     e.transitions,
		LastSampled:     e.lastSampled,
	}
}

// Reset clears the window and returns the estimator to listening.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.window = e.window[:0]
	e.state = StateListening
}
