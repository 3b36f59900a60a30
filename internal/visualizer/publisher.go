package visualizer

import (
	"sync"
	"time"
)

// Publisher forwards bar arrays to a consumer at a capped rate, decoupling
// visual updates from the tick cadence so they never exceed what the UI
// needs. The time source is replaceable for tests.
type Publisher struct {
	minInterval time.Duration
	publish     func([]float64)
	now         func() time.Time
	last        time.Time
	published   uint64
	suppressed  uint64

	mu sync.Mutex
}

// NewPublisher creates a publisher that invokes publish at most once per
// minInterval. A non-positive interval disables the cap.
func NewPublisher(minInterval time.Duration, publish func([]float64)) *Publisher {
	return &Publisher{
		minInterval: minInterval,
		publish:     publish,
		now:         time.Now,
	}
}

// Offer submits a bar array. It reports whether the array was forwarded
// or suppressed by the rate cap.
func (p *Publisher) Offer(bars []float64) bool {
	p.mu.Lock()

	now := p.now()
	if p.minInterval > 0 && !p.last.IsZero() && now.Sub(p.last) < p.minInterval {
		p.suppressed++
		p.mu.Unlock()
		return false
	}
	p.last = now
	p.published++
	publish := p.publish
	p.mu.Unlock()

	publish(bars)
	return true
}

// Counts returns the number of published and suppressed offers.
func (p *Publisher) Counts() (published, suppressed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.published, p.suppressed
}

// SetNowFunc replaces the time source. Intended for tests.
func (p *Publisher) SetNowFunc(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.now = now
}
