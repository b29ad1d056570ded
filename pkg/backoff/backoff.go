// Package backoff computes reconnect delays for the gateway.
//
// Delays grow exponentially from a base up to a maximum. An optional retry
// cap restarts the sequence from the base delay once exhausted, so a client
// that has been down for a long time periodically probes quickly again.
package backoff

import (
	"math"
	"time"
)

// Backoff produces an exponentially growing delay sequence.
// It is not safe for concurrent use; the gateway calls it from a single
// goroutine.
type Backoff struct {
	base       time.Duration
	max        time.Duration
	factor     float64
	maxRetries int
	attempts   int
}

// Option configures a Backoff.
type Option func(*Backoff)

// WithFactor sets the growth factor. Default: 2.
func WithFactor(factor float64) Option {
	return func(b *Backoff) {
		b.factor = factor
	}
}

// WithMaxRetries caps the number of growing delays. Once the cap is reached
// the attempt counter resets and the next delay is the base again.
// Default: 0 (uncapped).
func WithMaxRetries(n int) Option {
	return func(b *Backoff) {
		b.maxRetries = n
	}
}

// New returns a Backoff starting at base and saturating at max.
func New(base, max time.Duration, opts ...Option) *Backoff {
	b := &Backoff{
		base:   base,
		max:    max,
		factor: 2,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Delay returns the next delay in the sequence and advances the counter.
func (b *Backoff) Delay() time.Duration {
	if b.maxRetries > 0 && b.attempts >= b.maxRetries {
		b.attempts = 0
		return b.base
	}

	d := time.Duration(float64(b.base) * math.Pow(b.factor, float64(b.attempts)))
	if d > b.max || d <= 0 { // <= 0 guards float overflow
		d = b.max
	}
	b.attempts++
	return d
}

// Reset restarts the sequence at the base delay.
// Called after a successful handshake.
func (b *Backoff) Reset() {
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	return b.attempts
}
