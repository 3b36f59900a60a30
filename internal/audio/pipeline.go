package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BenWeekes/ai-therapist/internal/vad"
	"github.com/BenWeekes/ai-therapist/internal/visualizer"
)

// PipelineConfig contains pipeline cadence configuration.
type PipelineConfig struct {
	SamplePeriod time.Duration // Voice-activity sampling period (nominally 100ms)
	TickPeriod   time.Duration // Visualizer tick period (nominally ~33ms for 30Hz)
}

// Validate checks the cadence configuration.
func (c PipelineConfig) Validate() error {
	if c.SamplePeriod <= 0 {
		return fmt.Errorf("sample period must be positive, got %v", c.SamplePeriod)
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick period must be positive, got %v", c.TickPeriod)
	}
	return nil
}

// Pipeline drives the voice-activity estimator and the visualizer from a
// single Source on their respective cadences. All state mutation happens
// on one goroutine; there is no concurrent writer.
type Pipeline struct {
	config    PipelineConfig
	source    Source
	estimator *vad.Estimator
	viz       *visualizer.Visualizer
	publisher *visualizer.Publisher
	onState   func(vad.State)
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPipeline wires a source to the estimator and visualizer. onState is
// invoked from the pipeline goroutine whenever the voice-activity state
// changes; it must not block.
func NewPipeline(config PipelineConfig, source Source, estimator *vad.Estimator,
	viz *visualizer.Visualizer, publisher *visualizer.Publisher,
	onState func(vad.State), logger *slog.Logger) (*Pipeline, error) {

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	return &Pipeline{
		config:    config,
		source:    source,
		estimator: estimator,
		viz:       viz,
		publisher: publisher,
		onState:   onState,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Start acquires the source and launches the tick loop. If the source
// fails to start, the pipeline falls back to the all-zero baseline and
// keeps running; no retry is attempted.
func (p *Pipeline) Start(ctx context.Context) error {
	var startErr error
	p.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		p.cancel = cancel

		if err := p.source.Start(runCtx); err != nil {
			p.logger.Warn("Audio source failed to start, falling back to zero baseline",
				slog.String("error", err.Error()),
			)
			p.source = ZeroSource{}
			startErr = err
		}

		go p.run(runCtx)
	})
	return startErr
}

// Stop cancels the tick loop, waits for it to drain, and closes the
// source. It is safe to call more than once; failure to close the source
// is logged, never propagated.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
		if err := p.source.Close(); err != nil {
			p.logger.Warn("Error closing audio source", slog.String("error", err.Error()))
		}
	})
}

// run is the single-goroutine tick loop.
func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)

	sampleTicker := time.NewTicker(p.config.SamplePeriod)
	defer sampleTicker.Stop()

	renderTicker := time.NewTicker(p.config.TickPeriod)
	defer renderTicker.Stop()

	lastState := p.estimator.State()

	p.logger.Debug("Audio pipeline started",
		slog.Duration("sample_period", p.config.SamplePeriod),
		slog.Duration("tick_period", p.config.TickPeriod),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Audio pipeline stopping")
			return

		case <-sampleTicker.C:
			state := p.estimator.Sample(p.source.Level().Amplitude)
			if state != lastState {
				lastState = state
				if p.onState != nil {
					p.onState(state)
				}
			}

		case <-renderTicker.C:
			bars := p.viz.Tick(p.source.Level().Energy)
			p.publisher.Offer(bars)
		}
	}
}
