package venue

import (
	"math/rand"
	"time"
)

// backoff computes exponential reconnect delays with jitter, generalizing
// the teacher's fixed reconnectDelay into the spec's "initial delay,
// multiplicative growth with jitter, maximum attempt count" policy.
type backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	attempts   int
}

func newBackoff(cfg Config) *backoff {
	return &backoff{initial: cfg.InitialBackoff, max: cfg.MaxBackoff, multiplier: cfg.BackoffMultiplier}
}

// next returns the delay to wait before the next reconnect attempt and
// increments the attempt counter.
func (b *backoff) next() time.Duration {
	d := float64(b.initial)
	for i := 0; i < b.attempts; i++ {
		d *= b.multiplier
	}
	if d > float64(b.max) {
		d = float64(b.max)
	}
	b.attempts++
	jitter := 1 + (rand.Float64()*0.4 - 0.2) // +/-20%
	return time.Duration(d * jitter)
}

// reset clears the attempt counter after a successful connection.
func (b *backoff) reset() { b.attempts = 0 }

// exhausted reports whether the configured maximum attempt count has been
// reached.
func (b *backoff) exhausted(maxAttempts int) bool { return b.attempts >= maxAttempts }
