// Package siglatch is a thin typed wrapper over os/signal: "what is the
// next pending signal addressed to this goroutine's owner", generalized
// from the original's per-OS-thread signal iterator so the profiler's own
// SIGINT handling and a worker's shutdown handling can share one shape.
// See DESIGN.md for why only the profiler side keeps the real-signal form;
// a ThreadTracer worker's own wakeup is implemented differently (a shutdown
// channel, pkg/tracer) because Go exposes no per-OS-thread sigprocmask.
package siglatch

import (
	"os"
	"os/signal"
)

// Latch remembers whether its signal has arrived. There is no reset: once
// fired it stays fired.
type Latch struct {
	ch chan os.Signal
}

// New registers interest in sig and returns a Latch that fires the first
// time it is delivered to this process.
func New(sig os.Signal) *Latch {
	l := &Latch{ch: make(chan os.Signal, 1)}
	signal.Notify(l.ch, sig)
	return l
}

// C returns the channel the signal arrives on, for use directly in a
// select alongside a timer or another wakeup source.
func (l *Latch) C() <-chan os.Signal {
	return l.ch
}

// Fired reports whether the signal has arrived since construction, without
// blocking. A received signal is put back on the channel, so later calls
// (and a receive on C) still see it.
func (l *Latch) Fired() bool {
	select {
	case sig := <-l.ch:
		l.ch <- sig
		return true
	default:
		return false
	}
}

// Stop unregisters the latch so the signal resumes its default disposition.
func (l *Latch) Stop() {
	signal.Stop(l.ch)
}
