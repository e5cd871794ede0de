// Package sink renders a profiler sampling round. Both implementations
// consume the same shape — a tid-to-Stacktrace map plus a stream of
// queued info lines — but OneshotSink just dumps it once while
// ProfilingSink folds it into a rolling top-N display.
package sink

import "wat/pkg/stackframe"

// Sink is what a Profiler feeds each sampling round's results into.
type Sink interface {
	// Tick hands over one round's successfully resolved stacktraces,
	// keyed by tid.
	Tick(samples map[int]stackframe.Stacktrace)
	// InfoLine queues a human-readable note about a per-sample failure
	// (a thread that raced to exit, a backend error) for display
	// alongside the next render.
	InfoLine(msg string)
}
