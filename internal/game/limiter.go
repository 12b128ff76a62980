package game

import (
	"context"
	"time"
)

// spinWindow is how close to the deadline Wait stops sleeping and spins.
const spinWindow = 200 * time.Microsecond

// Limiter paces the simulation loop at a fixed tick rate.
type Limiter struct {
	period time.Duration
	next   time.Time
}

// NewLimiter creates a limiter for hz ticks per second. hz <= 0 disables
// pacing.
func NewLimiter(hz int) *Limiter {
	l := &Limiter{}
	if hz > 0 {
		l.period = time.Second / time.Duration(hz)
	}
	return l
}

// Period returns the target tick duration, zero when unpaced.
func (l *Limiter) Period() time.Duration { return l.period }

// Wait blocks until the next tick is due or ctx is done, and reports
// whether the tick should run. Sleeping stops shortly before the deadline
// and the remainder is spun for precision.
func (l *Limiter) Wait(ctx context.Context) bool {
	if l.period <= 0 {
		l.next = time.Time{}
		return ctx.Err() == nil
	}
	if l.next.IsZero() {
		l.next = time.Now().Add(l.period)
	} else {
		l.next = l.next.Add(l.period)
	}

	for {
		remaining := time.Until(l.next)
		if remaining <= 0 {
			break
		}
		if remaining > spinWindow {
			t := time.NewTimer(remaining - spinWindow)
			select {
			case <-ctx.Done():
				t.Stop()
				return false
			case <-t.C:
			}
		}
		if time.Until(l.next) <= 0 {
			break
		}
	}

	// resync after a hitch instead of running a burst of catch-up ticks
	if late := -time.Until(l.next); late > l.period {
		l.next = time.Now().Add(l.period)
	}
	return ctx.Err() == nil
}
