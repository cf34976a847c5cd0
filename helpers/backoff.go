package helpers

import (
	"math/rand"
	"time"
)

// Backoff computes exponentially growing reconnect delays with jitter.
// It is not safe for concurrent use.
type Backoff struct {
	base    time.Duration
	max     time.Duration
	jitter  float64
	attempt int
}

// NewBackoff builds a backoff that starts at base, doubles on every Next and
// never exceeds max before jitter is applied. jitter is a fraction, 0.2 is ±20%.
func NewBackoff(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{
		base:   base,
		max:    max,
		jitter: jitter,
	}
}

// NewDefaultBackoff is 1s base, 30s max and ±20% jitter.
func NewDefaultBackoff() *Backoff {
	return NewBackoff(time.Second, 30*time.Second, 0.2)
}

func (b *Backoff) Next() time.Duration {
	delay := b.max
	if b.attempt < 62 && b.base <= b.max>>b.attempt {
		delay = b.base << b.attempt
	}

	if b.jitter > 0 {
		factor := 1.0 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * factor)
	}

	b.attempt++
	return delay
}

// Reset is called once a connection has been established again.
func (b *Backoff) Reset() {
	b.attempt = 0
}

func (b *Backoff) Attempt() int {
	return b.attempt
}
