package visualizer

import (
	"fmt"
	"math"
	"sync"
)

// Config contains visualizer tuning parameters.
type Config struct {
	BarCount   int     // Number of bars in the published array
	Gain       float64 // Multiplier applied to raw energy before clamping to [0,1]
	NoiseFloor float64 // Normalized values below this clamp to 0; above rescale to [0,1]
	Attack     float64 // Fraction of the distance toward a rising bar target per tick
	Decay      float64 // Multiplicative factor applied to falling values per tick
}

// DefaultConfig returns parameters tuned for a ~30 Hz tick rate.
func DefaultConfig() Config {
	return Config{
		BarCount:   5,
		Gain:       4.0,
		NoiseFloor: 0.1,
		Attack:     0.6,
		Decay:      0.85,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.BarCount < 1 {
		return fmt.Errorf("bar count must be at least 1, got %d", c.BarCount)
	}
	if c.Gain <= 0 {
		return fmt.Errorf("gain must be positive, got %f", c.Gain)
	}
	if c.NoiseFloor < 0 || c.NoiseFloor >= 1 {
		return fmt.Errorf("noise floor must be in [0,1), got %f", c.NoiseFloor)
	}
	if c.Attack <= 0 || c.Attack > 1 {
		return fmt.Errorf("attack must be in (0,1], got %f", c.Attack)
	}
	if c.Decay <= 0 || c.Decay >= 1 {
		return fmt.Errorf("decay must be in (0,1), got %f", c.Decay)
	}
	return nil
}

// Visualizer converts a continuous energy measure into a smoothed,
// discrete bar-count signal. Smoothing is asymmetric at two stages: the
// normalized level snaps up instantly and decays multiplicatively, and the
// lit-bar count is smoothed the same way again before rounding. The second
// pass suppresses single-bar flicker that the first pass alone does not.
type Visualizer struct {
	config  Config
	level   float64 // Smoothed normalized energy in [0,1]
	litBars float64 // Smoothed lit-bar count in [0, BarCount]

	mu sync.Mutex
}

// NewVisualizer creates a visualizer with zeroed state.
func NewVisualizer(config Config) (*Visualizer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid visualizer config: %w", err)
	}
	return &Visualizer{config: config}, nil
}

// Tick consumes one raw energy reading and returns the bar array for
// display: length BarCount, 1 for lit bars, 0 otherwise. It is intended to
// be called at the render cadence, independent of the voice sampling rate.
func (v *Visualizer) Tick(rawEnergy float64) []float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	norm := v.normalize(rawEnergy)

	// Fast attack, slow decay on the continuous level.
	if norm >= v.level {
		v.level = norm
	} else {
		v.level *= v.config.Decay
	}

	// The same law applied again to the lit-bar count, interpolating on
	// the way up instead of snapping.
	barCount := float64(v.config.BarCount)
	target := v.level * barCount
	if target >= v.litBars {
		v.litBars += (target - v.litBars) * v.config.Attack
	} else {
		v.litBars *= v.config.Decay
	}

	if v.litBars < 0 {
		v.litBars = 0
	}
	if v.litBars > barCount {
		v.litBars = barCount
	}

	lit := int(math.Round(v.litBars))
	bars := make([]float64, v.config.BarCount)
	for i := 0; i < lit && i < v.config.BarCount; i++ {
		bars[i] = 1
	}
	return bars
}

// normalize applies gain, the [0,1] clamp, and the noise floor rescale.
func (v *Visualizer) normalize(rawEnergy float64) float64 {
	norm := rawEnergy * v.config.Gain
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}

	floor := v.config.NoiseFloor
	if norm < floor {
		return 0
	}
	return (norm - floor) / (1 - floor)
}

// Level returns the current smoothed normalized energy.
func (v *Visualizer) Level() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.level
}

// LitBars returns the current smoothed lit-bar count before rounding.
func (v *Visualizer) LitBars() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.litBars
}

// BarCount returns the configured number of bars.
func (v *Visualizer) BarCount() int {
	return v.config.BarCount
}

// Reset zeroes the smoothing state.
func (v *Visualizer) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.level = 0
	v.litBars = 0
}
