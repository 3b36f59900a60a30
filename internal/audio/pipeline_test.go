package audio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BenWeekes/ai-therapist/internal/vad"
	"github.com/BenWeekes/ai-therapist/internal/visualizer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stateRecorder struct {
	mu     sync.Mutex
	states []vad.State
}

func (r *stateRecorder) record(state vad.State) {
	r.mu.Lock()
	r.states = append(r.states, state)
	r.mu.Unlock()
}

func (r *stateRecorder) last() (vad.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return 0, false
	}
	return r.states[len(r.states)-1], true
}

func newTestPipeline(t *testing.T, source Source, onState func(vad.State), onBars func([]float64)) *Pipeline {
	t.Helper()

	viz, err := visualizer.NewVisualizer(visualizer.DefaultConfig())
	if err != nil {
		t.Fatalf("NewVisualizer failed: %v", err)
	}

	pipeline, err := NewPipeline(
		PipelineConfig{SamplePeriod: 5 * time.Millisecond, TickPeriod: 5 * time.Millisecond},
		source,
		vad.NewEstimator(3),
		viz,
		visualizer.NewPublisher(0, onBars),
		onState,
		testLogger(),
	)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return pipeline
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestPipelineConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      PipelineConfig
		expectError bool
	}{
		{name: "valid", config: PipelineConfig{SamplePeriod: 100 * time.Millisecond, TickPeriod: 33 * time.Millisecond}},
		{name: "zero sample period", config: PipelineConfig{TickPeriod: 33 * time.Millisecond}, expectError: true},
		{name: "zero tick period", config: PipelineConfig{SamplePeriod: 100 * time.Millisecond}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestPipelineDrivesEstimatorAndVisualizer(t *testing.T) {
	src := NewPushSource()
	recorder := &stateRecorder{}

	var mu sync.Mutex
	var barsSeen int

	pipeline := newTestPipeline(t, src, recorder.record, func([]float64) {
		mu.Lock()
		barsSeen++
		mu.Unlock()
	})

	if err := pipeline.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pipeline.Stop()

	// Sustained nonzero amplitude must transition to speaking.
	src.Push(Level{Amplitude: 0.6, Energy: 0.6})
	ok := waitFor(t, time.Second, func() bool {
		state, found := recorder.last()
		return found && state == vad.StateSpeaking
	})
	if !ok {
		t.Fatal("pipeline never reported speaking state")
	}

	// Sustained silence must transition back to listening.
	src.Push(Level{Amplitude: 0, Energy: 0})
	ok = waitFor(t, time.Second, func() bool {
		state, found := recorder.last()
		return found && state == vad.StateListening
	})
	if !ok {
		t.Fatal("pipeline never returned to listening state")
	}

	mu.Lock()
	published := barsSeen
	mu.Unlock()
	if published == 0 {
		t.Error("pipeline published no bar arrays")
	}
}

type failingSource struct{ closed bool }

func (f *failingSource) Start(ctx context.Context) error {
	return context.DeadlineExceeded
}
func (f *failingSource) Level() Level { return Level{} }
func (f *failingSource) Close() error {
	f.closed = true
	return nil
}

func TestPipelineFallsBackToZeroSource(t *testing.T) {
	recorder := &stateRecorder{}
	pipeline := newTestPipeline(t, &failingSource{}, recorder.record, func([]float64) {})

	// Start reports the failure but the pipeline keeps running on the
	// zero baseline.
	if err := pipeline.Start(context.Background()); err == nil {
		t.Fatal("Start did not report source failure")
	}
	defer pipeline.Stop()

	time.Sleep(50 * time.Millisecond)

	if state, found := recorder.last(); found && state == vad.StateSpeaking {
		t.Error("zero baseline produced a speaking state")
	}
}

func TestPipelineStopIsIdempotent(t *testing.T) {
	src := NewPushSource()
	pipeline := newTestPipeline(t, src, nil, func([]float64) {})

	if err := pipeline.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	pipeline.Stop()
	pipeline.Stop() // must not panic or deadlock
}

func TestPushSourceIgnoresAfterClose(t *testing.T) {
	src := NewPushSource()
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src.Push(Level{Amplitude: 0.5, Energy: 0.4})
	level := src.Level()
	if level.Amplitude != 0.5 || level.Energy != 0.4 {
		t.Fatalf("Level = %+v, want pushed values", level)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	src.Push(Level{Amplitude: 0.9, Energy: 0.9})
	if level := src.Level(); level.Amplitude == 0.9 {
		t.Error("Push after Close mutated the level")
	}
}
