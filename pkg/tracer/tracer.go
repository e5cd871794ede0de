// Package tracer owns the one ptrace attachment per traced thread. A
// ThreadTracer runs its whole life on a single locked OS thread — attach,
// resume, the wait loop, every sample, detach — because the kernel only
// lets the attaching task issue ptrace calls for a tid.
package tracer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"time"

	"wat/pkg/stackframe"
	"wat/pkg/syserr"
	"wat/pkg/unwind"
)

// pollInterval bounds how long a detach or a fresh stacktrace request can
// wait behind the worker's WNOHANG poll. See the wait-loop note on loop()
// for why polling replaces a real signal-interrupted blocking wait here.
const pollInterval = 2 * time.Millisecond

// SampleResult is what a stacktrace request eventually resolves to: either
// a Stacktrace or the reason one couldn't be captured.
type SampleResult struct {
	Trace stackframe.Stacktrace
	Err   error
}

// Config bundles the inputs a ThreadTracer needs beyond pid/tid, following
// the teacher's Config-struct convention (Logger optional, defaults quietly).
type Config struct {
	Space    *unwind.AddressSpace
	Notifier Notifier
	Logger   Logger
}

// ThreadTracer holds the ptrace attachment for one tracee thread and
// services stacktrace requests for it. Every field above mu is set once in
// Attach and never reassigned (the shutdown Once and channels are safe for
// concurrent use); everything at or below mu is shared with callers on
// other goroutines and must go through the mutex.
type ThreadTracer struct {
	pid, tid int
	space    *unwind.AddressSpace
	notifier Notifier
	logger   Logger

	shutdown sync.Once
	shutdownCh chan struct{}
	doneCh     chan struct{}

	mu              sync.Mutex
	alive           bool
	samplePending   bool
	detachRequested bool
	pendingResult   chan SampleResult
}

// Attached is the sealed result of Attach: the tracee is stopped and
// PTRACE_SETOPTIONS has succeeded, but the worker has not yet issued
// PTRACE_CONT. The owner must insert the ThreadTracer into whatever
// registry other goroutines use to find it *before* calling Start, so that
// no stacktrace request can race the attach completing. This is the typed
// two-phase handshake: a value that can only become a running ThreadTracer
// through an explicit second step.
type Attached struct {
	tracer   *ThreadTracer
	goodToGo chan<- struct{}
}

// Tid returns the attached tracee's thread id.
func (a *Attached) Tid() int { return a.tracer.tid }

// Start releases the worker to PTRACE_CONT the tracee and begin servicing
// requests, and returns the now-running ThreadTracer.
func (a *Attached) Start() *ThreadTracer {
	close(a.goodToGo)
	return a.tracer
}

// Attach PTRACE_ATTACHes to tid, waits for the attach-induced stop, and
// arranges PTRACE_O_TRACECLONE, all on a freshly locked OS thread that will
// remain this ThreadTracer's home for its entire life. It returns once the
// tracee is known stopped and traceable; the caller must call Start (after
// publishing the tracer where it needs to be visible) to actually resume it.
func Attach(pid, tid int, cfg Config) (*Attached, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	t := &ThreadTracer{
		pid:        pid,
		tid:        tid,
		space:      cfg.Space,
		notifier:   cfg.Notifier,
		logger:     logger,
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}

	readyCh := make(chan error, 1)
	goodToGo := make(chan struct{})
	go t.run(readyCh, goodToGo)

	if err := <-readyCh; err != nil {
		return nil, err
	}
	return &Attached{tracer: t, goodToGo: goodToGo}, nil
}

// run is the worker goroutine's entire body: it owns the OS thread that
// attached to tid for as long as the tid is traced.
func (t *ThreadTracer) run(readyCh chan<- error, goodToGo <-chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.doneCh)

	if err := syscall.PtraceAttach(t.tid); err != nil {
		readyCh <- syserr.Wrap("ptrace attach", t.tid, err, true)
		return
	}

	var ws syscall.WaitStatus
	if _, err := syscall.Wait4(t.tid, &ws, syscall.WALL, nil); err != nil {
		readyCh <- syserr.Wrap("wait4 after attach", t.tid, err, true)
		return
	}
	if !ws.Stopped() {
		readyCh <- fmt.Errorf("tracer: tid %d did not stop after attach: %v", t.tid, ws)
		return
	}

	if err := syscall.PtraceSetOptions(t.tid, syscall.PTRACE_O_TRACECLONE); err != nil {
		readyCh <- syserr.Wrap("ptrace setoptions", t.tid, err, true)
		return
	}

	readyCh <- nil

	// Post-attach fence: don't resume the tracee until the owner has
	// published this tracer, so no request can ever race attach.
	<-goodToGo

	if err := syscall.PtraceCont(t.tid, 0); err != nil {
		t.logger.Warnf("tid %d vanished before initial continue: %v", t.tid, err)
		t.notifier.EndThread(t.tid)
		return
	}

	t.mu.Lock()
	t.alive = true
	t.mu.Unlock()

	ctx := t.space.NewRemoteContext(t.tid)
	defer ctx.Close()

	t.loop(ctx)
}

// loop is the main wait dispatch. The source this is grounded on blocks in
// waitpid and relies on a targeted signal to interrupt it; Go's os/signal
// model has no per-OS-thread pthread_kill/sigprocmask equivalent to deliver
// that interruption to one specific locked worker thread (see DESIGN.md), so
// this instead polls with WNOHANG on a short fixed interval and checks the
// shutdown channel each pass. The tracee-directed signals — the SIGSTOP that
// requests a sample, the SIGSTOP that requests a detach — are real kernel
// signals delivered with Tgkill exactly as the design calls for; only the
// worker's own wakeup is a poll instead of a blocking wait.
func (t *ThreadTracer) loop(ctx *unwind.RemoteContext) {
	for {
		select {
		case <-t.shutdownCh:
			t.requestDetach()
		default:
		}

		var ws syscall.WaitStatus
		wpid, err := syscall.Wait4(t.tid, &ws, syscall.WALL|syscall.WNOHANG, nil)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			t.markGone(nil)
			return
		}
		if wpid == 0 {
			time.Sleep(pollInterval)
			continue
		}

		if ws.Exited() || ws.Signaled() {
			t.markGone(&ws)
			return
		}
		if !ws.Stopped() {
			continue
		}

		sig := ws.StopSignal()
		switch {
		case sig == syscall.SIGTRAP && ws.TrapCause() == syscall.PTRACE_EVENT_CLONE:
			t.handleClone()
			if cerr := syscall.PtraceCont(t.tid, 0); cerr != nil {
				t.markGone(nil)
				return
			}
		case sig == syscall.SIGSTOP:
			if !t.handleOurStop(ctx) {
				return
			}
		case sig == syscall.SIGTSTP, sig == syscall.SIGTTIN, sig == syscall.SIGTTOU:
			// Group-stop signal unrelated to our own SIGSTOP requests;
			// let it pass through without delivering it.
			if cerr := syscall.PtraceCont(t.tid, 0); cerr != nil {
				t.markGone(nil)
				return
			}
		default:
			if cerr := syscall.PtraceCont(t.tid, int(sig)); cerr != nil {
				t.markGone(nil)
				return
			}
		}
	}
}

// handleOurStop runs when the tracee reports a SIGSTOP-induced stop. It
// decides, under the tracer's own bookkeeping rather than by inferring
// intent from timing, whether this stop satisfies a pending detach request,
// a pending sample request, or neither (a stray group-stop we still have to
// absorb and continue past). It returns false once the worker should exit
// (the tracee has been detached).
func (t *ThreadTracer) handleOurStop(ctx *unwind.RemoteContext) bool {
	t.mu.Lock()
	detach := t.detachRequested
	sampling := t.samplePending
	resultCh := t.pendingResult
	t.mu.Unlock()

	if detach {
		syscall.PtraceDetach(t.tid)
		t.mu.Lock()
		t.alive = false
		t.mu.Unlock()
		return false
	}

	if sampling {
		trace, err := t.unwind(ctx)
		t.mu.Lock()
		t.samplePending = false
		t.pendingResult = nil
		t.mu.Unlock()
		resultCh <- SampleResult{Trace: trace, Err: err}
	}

	if cerr := syscall.PtraceCont(t.tid, 0); cerr != nil {
		t.markGone(nil)
		return false
	}
	return true
}

// handleClone services a PTRACE_EVENT_CLONE stop: it reads the new child
// tid, waits for its own attach-induced stop (clone children start attached
// but stopped, courtesy of PTRACE_O_TRACECLONE), detaches from it
// immediately, and hands it off to the owner via Notifier — the owner is
// responsible for creating a fresh ThreadTracer for it, exactly as it would
// for any other new thread.
func (t *ThreadTracer) handleClone() {
	msg, err := syscall.PtraceGetEventMsg(t.tid)
	if err != nil {
		t.logger.Warnf("tid %d: clone event with no event msg: %v", t.tid, err)
		return
	}
	newTid := int(msg)

	var ws syscall.WaitStatus
	if _, err := syscall.Wait4(newTid, &ws, syscall.WALL, nil); err != nil {
		t.logger.Warnf("tid %d: wait4 for cloned tid %d: %v", t.tid, newTid, err)
		return
	}
	if err := syscall.PtraceDetach(newTid); err != nil {
		t.logger.Warnf("tid %d: detach from cloned tid %d: %v", t.tid, newTid, err)
	}
	t.notifier.NewThread(newTid)
}

// markGone runs once, from the worker, the moment the tracee is observed
// exited, signaled, or simply no longer waitable. Any sample in flight is
// failed rather than left to hang forever.
func (t *ThreadTracer) markGone(ws *syscall.WaitStatus) {
	t.mu.Lock()
	t.alive = false
	sampling := t.samplePending
	resultCh := t.pendingResult
	t.samplePending = false
	t.pendingResult = nil
	t.mu.Unlock()

	if sampling && resultCh != nil {
		var err error
		if ws != nil && ws.Signaled() {
			err = &syserr.DeadlySignal{Signal: ws.Signal()}
		} else {
			err = syserr.ErrAlreadyTerminated
		}
		resultCh <- SampleResult{Err: err}
	}
	t.notifier.EndThread(t.tid)
}

// requestDetach marks the worker's next SIGSTOP-induced stop as a detach
// point and, the first time only, sends that SIGSTOP. It is safe to call on
// every pass through loop(): the detachRequested flag makes the Tgkill a
// one-shot even though the shutdown channel, once closed, is always ready.
func (t *ThreadTracer) requestDetach() {
	t.mu.Lock()
	if t.detachRequested {
		t.mu.Unlock()
		return
	}
	t.detachRequested = true
	t.mu.Unlock()
	syscall.Tgkill(t.pid, t.tid, syscall.SIGSTOP)
}

// RequestStacktrace asks this tracer to sample the tracee's call stack. It
// does not block: it registers intent, sends the SIGSTOP that will carry
// the tracee into a stop the worker can recognize as ours, and returns a
// channel the caller receives exactly one SampleResult from. Calling it
// again before the previous request resolves is a programmer error.
func (t *ThreadTracer) RequestStacktrace() (<-chan SampleResult, error) {
	t.mu.Lock()
	if !t.alive {
		t.mu.Unlock()
		return nil, syserr.ErrAlreadyTerminated
	}
	if t.samplePending {
		t.mu.Unlock()
		return nil, errors.New("tracer: sample already pending for this tid")
	}
	ch := make(chan SampleResult, 1)
	t.samplePending = true
	t.pendingResult = ch
	t.mu.Unlock()

	if err := syscall.Tgkill(t.pid, t.tid, syscall.SIGSTOP); err != nil {
		t.mu.Lock()
		t.samplePending = false
		t.pendingResult = nil
		t.mu.Unlock()
		return nil, syserr.Wrap("tgkill", t.tid, err, false)
	}
	return ch, nil
}

// unwind walks the tracee's call stack from its current registers,
// following the saved-frame-pointer chain out to MaxDepth frames or until
// the unwinder reports the end of the chain. A failed step fails the whole
// sample rather than returning a partial trace, matching what a negative
// step() return means upstream.
func (t *ThreadTracer) unwind(ctx *unwind.RemoteContext) (stackframe.Stacktrace, error) {
	cur, err := ctx.Init()
	if err != nil {
		return nil, &syserr.BackendError{Op: "init_remote", Code: -1}
	}

	var trace stackframe.Stacktrace
	for depth := 0; depth < stackframe.MaxDepth; depth++ {
		name, _ := cur.ProcName()
		trace = append(trace, stackframe.Frame{
			IP:       cur.GetReg(unwind.RegIP),
			SP:       cur.GetReg(unwind.RegSP),
			ProcName: name,
		})

		result, serr := cur.Step()
		if serr != nil || result == unwind.StepError {
			return nil, &syserr.BackendError{Op: "step", Code: -1}
		}
		if result == unwind.StepEnd {
			break
		}
	}
	return trace, nil
}

// Alive reports whether the tracee is still attached and traced.
func (t *ThreadTracer) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive
}

// Tid returns the traced thread id.
func (t *ThreadTracer) Tid() int { return t.tid }

// Destroy tears the tracer down: if the worker is still alive it is sent a
// detach request and the method blocks until the worker has actually exited.
// Calling Destroy more than once is safe.
func (t *ThreadTracer) Destroy() {
	t.shutdown.Do(func() { close(t.shutdownCh) })
	<-t.doneCh
}
