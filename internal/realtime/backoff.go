package realtime

import (
	"math"
	"math/rand/v2"
	"time"
)

// stableAfter is how long a connection must last before the attempt
// counter resets.
const stableAfter = 60 * time.Second

// backoff computes reconnect delays: exponential from base, capped at max,
// plus up to half of base of jitter.
type backoff struct {
	base        time.Duration
	max         time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
	jitter      func() float64
}

func newBackoff(base, maxDelay time.Duration, maxAttempts int) *backoff {
	return &backoff{base: base, max: maxDelay, maxAttempts: maxAttempts, jitter: rand.Float64}
}

func (b *backoff) exhausted() bool {
	return b.maxAttempts > 0 && b.attempt >= b.maxAttempts
}

func (b *backoff) connected(now time.Time) {
	b.connectedAt = now
}

func (b *backoff) next(now time.Time) time.Duration {
	if !b.connectedAt.IsZero() && now.Sub(b.connectedAt) > stableAfter {
		b.attempt = 0
	}
	b.connectedAt = time.Time{}
	j := time.Duration(b.jitter() * float64(b.base) * 0.5)
	d := time.Duration(math.Min(
		float64(b.base)*math.Pow(2, float64(b.attempt))+float64(j),
		float64(b.max),
	))
	b.attempt++
	return d
}

func (b *backoff) reset() {
	b.attempt = 0
	b.connectedAt = time.Time{}
}
