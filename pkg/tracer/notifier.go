package tracer

// Notifier is the non-owning channel a ThreadTracer uses to tell its owner
// about threads appearing and disappearing. Ownership flows one way — the
// owner (the profiler orchestrator) owns its ThreadTracers, never the
// reverse — so this is a plain callback interface rather than a back
// reference to a concrete type.
type Notifier interface {
	// NewThread reports a clone()'d child thread discovered via
	// PTRACE_EVENT_CLONE. The tid has already been detached (which resumes
	// it) and is running untraced; the owner is responsible for attaching
	// its own ThreadTracer to it.
	NewThread(tid int)

	// EndThread reports that tid is no longer traceable (exited, was
	// killed, or vanished out from under us).
	EndThread(tid int)
}
