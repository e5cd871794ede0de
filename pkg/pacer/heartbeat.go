// Package pacer paces the sampling loop at a fixed frequency and reports
// skipped ticks when the loop falls behind.
package pacer

import (
	"time"

	"wat/pkg/syserr"
)

// Heartbeat produces paced tick times at a target frequency. It keeps the
// average rate at freq under short stalls and discards missed ticks under
// long stalls, rather than trying to make them up.
type Heartbeat struct {
	interval      time.Duration
	nextExpected  time.Time
	skipped       int
	now           func() time.Time
}

// New creates a Heartbeat targeting freq Hz. Panics if freq <= 0: a
// zero-or-negative frequency is a construction error, not a runtime one.
func New(freq int) *Heartbeat {
	if freq <= 0 {
		panic("pacer: frequency must be positive")
	}
	return newWithClock(freq, time.Now)
}

func newWithClock(freq int, now func() time.Time) *Heartbeat {
	interval := time.Duration(1_000_000/int64(freq)) * time.Microsecond
	return &Heartbeat{
		interval:     interval,
		nextExpected: now(),
		now:          now,
	}
}

// Skipped returns the number of ticks skipped since the last Beat.
func (h *Heartbeat) Skipped() int {
	return h.skipped
}

// Beat advances the heartbeat. If invoked before the current interval has
// elapsed it returns syserr.ErrTooSoon — a logic error the caller never
// expects in ordinary operation.
func (h *Heartbeat) Beat() error {
	t := h.now()
	if t.Before(h.nextExpected) {
		return syserr.ErrTooSoon
	}
	elapsed := t.Sub(h.nextExpected)
	skipped := int(elapsed / h.interval)
	if skipped > 0 {
		skipped--
	}
	h.skipped = skipped
	h.nextExpected = h.nextExpected.Add(time.Duration(skipped+1) * h.interval)
	if h.nextExpected.Before(t) {
		h.nextExpected = h.nextExpected.Add(h.interval)
	}
	return nil
}

// UntilNextBeat returns how long to sleep before the next tick is due, or 0
// if it is already due.
func (h *Heartbeat) UntilNextBeat() time.Duration {
	t := h.now()
	if t.After(h.nextExpected) {
		return 0
	}
	return h.nextExpected.Sub(t)
}
