// Package syserr classifies the kernel errors the tracer sees into the
// handful of outcomes the rest of the profiler needs to distinguish.
package syserr

import (
	"errors"
	"fmt"
	"syscall"
)

// Outcome is the result of classifying a syscall failure.
type Outcome int

const (
	// Ok means the syscall succeeded.
	Ok Outcome = iota
	// ThreadGone means the target tid no longer exists: ESRCH, or EPERM
	// during attach (which the kernel also returns for zombies).
	ThreadGone
	// Fatal is any other syscall failure; it always carries the errno.
	Fatal
)

// Classify turns a raw syscall error into an Outcome. attaching controls
// whether EPERM is folded into ThreadGone (the kernel's behavior toward
// zombie tasks during PTRACE_ATTACH) or left as Fatal (a real permission
// denial outside of attach).
func Classify(err error, attaching bool) Outcome {
	if err == nil {
		return Ok
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return Fatal
	}
	switch errno {
	case syscall.ESRCH:
		return ThreadGone
	case syscall.EPERM:
		if attaching {
			return ThreadGone
		}
		return Fatal
	default:
		return Fatal
	}
}

// BackendError wraps a negative return from the unwinder's step/init calls.
type BackendError struct {
	Op   string
	Code int
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("unwind backend: %s failed with code %d", e.Op, e.Code)
}

// DeadlySignal means the tracee was killed by an uncaught signal while a
// stacktrace request was in flight.
type DeadlySignal struct {
	Signal syscall.Signal
}

func (e *DeadlySignal) Error() string {
	return fmt.Sprintf("tracee killed by signal %d (%s) mid-sample", int(e.Signal), e.Signal)
}

// ErrAlreadyTerminated is returned by RequestStacktrace once a ThreadTracer
// has reached the Gone state.
var ErrAlreadyTerminated = errors.New("tracer already terminated")

// ErrTooSoon means Heartbeat.Beat was invoked before its interval elapsed;
// this is a programmer error and is never expected to propagate to a user.
var ErrTooSoon = errors.New("heartbeat: beat invoked before interval elapsed")

// ErrThreadGone is returned (wrapped with context) whenever Classify yields
// ThreadGone and the caller needs an error value rather than just the code.
// The message carries the literal errno mnemonic a reader of "Exception:
// ..." output needs to recognize a dead/invalid pid.
var ErrThreadGone = errors.New("target thread no longer exists (ESRCH)")

// Wrap turns a classified error into a Go error suitable for propagation,
// annotating it with the syscall name and tid the way the teacher's
// tracer.go wraps every ptrace failure ("ptrace attach failed: %w"). attaching
// must be true for syscalls issued during the PTRACE_ATTACH handshake (§4.1
// step 1), so that an EPERM there — the kernel's response to a zombie task —
// classifies as ThreadGone instead of Fatal; it must be false everywhere else.
func Wrap(op string, tid int, err error, attaching bool) error {
	if err == nil {
		return nil
	}
	switch Classify(err, attaching) {
	case ThreadGone:
		return fmt.Errorf("%s(tid=%d): %w: %w", op, tid, ErrThreadGone, err)
	default:
		return fmt.Errorf("%s(tid=%d): %w", op, tid, err)
	}
}
