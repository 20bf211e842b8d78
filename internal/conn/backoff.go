package conn

import (
	"math/rand"
	"time"
)

// Backoff produces capped exponential reconnect delays with jitter so a
// fleet of clients does not hammer a recovering renderer in lockstep.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64 // fraction of the delay randomized in both directions

	next time.Duration
}

// DefaultBackoff returns the reconnect strategy: start at 250ms, double up
// to a 10s cap, ±20% jitter.
func DefaultBackoff() *Backoff {
	return &Backoff{
		Initial: 250 * time.Millisecond,
		Max:     10 * time.Second,
		Jitter:  0.2,
	}
}

// Next returns the delay before the next attempt and advances the schedule.
func (b *Backoff) Next() time.Duration {
	if b.next == 0 {
		b.next = b.Initial
	}
	d := b.next

	b.next *= 2
	if b.next > b.Max {
		b.next = b.Max
	}

	if b.Jitter > 0 {
		spread := (rand.Float64()*2 - 1) * b.Jitter // [-Jitter, +Jitter]
		d += time.Duration(spread * float64(d))
	}
	return d
}

// Reset restarts the schedule after a successful connection.
func (b *Backoff) Reset() {
	b.next = 0
}
