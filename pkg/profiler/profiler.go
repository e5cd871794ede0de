// Package profiler owns every ThreadTracer attached to one target process
// and drives the sampling rounds that feed a Sink.
package profiler

import (
	"fmt"
	"os"
	"sync"
	"time"

	"wat/pkg/pacer"
	"wat/pkg/siglatch"
	"wat/pkg/sink"
	"wat/pkg/stackframe"
	"wat/pkg/syserr"
	"wat/pkg/tracer"
	"wat/pkg/unwind"
)

// Config configures a Profiler run.
type Config struct {
	// Logger receives worker and clone hand-off warnings; attach, detach
	// and clone events themselves are not logged. Optional; defaults to
	// discarding everything.
	Logger tracer.Logger
}

// Profiler owns the tid -> ThreadTracer map for one target pid and drives
// sampling rounds against it. Workers notify it of thread birth/death
// through the tracer.Notifier methods below; ownership flows one way, from
// Profiler to its tracers, never back.
type Profiler struct {
	pid   int
	space *unwind.AddressSpace
	cfg   Config

	mu      sync.Mutex
	sealed  bool
	tracers map[int]*tracer.ThreadTracer
	zombies []int
}

// New attaches to every task currently under pid, re-scanning
// /proc/<pid>/task until a full pass discovers no tid it hasn't already
// attached — this is how a thread that spawns concurrently with attach is
// still caught.
func New(pid int, cfg Config) (*Profiler, error) {
	space, err := unwind.NewAddressSpace(pid)
	if err != nil {
		return nil, fmt.Errorf("profiler: build address space for pid %d: %w", pid, err)
	}

	p := &Profiler{
		pid:     pid,
		space:   space,
		cfg:     cfg,
		tracers: make(map[int]*tracer.ThreadTracer),
	}

	for {
		tids, err := readTaskDir(pid)
		if err != nil {
			return nil, fmt.Errorf("profiler: enumerate tasks for pid %d: %w", pid, err)
		}

		grew := false
		for _, tid := range tids {
			p.mu.Lock()
			_, known := p.tracers[tid]
			p.mu.Unlock()
			if known {
				continue
			}
			if err := p.attach(tid); err != nil {
				// A thread that raced us to exit during enumeration
				// is swallowed; any other per-tid attach failure
				// just leaves that one thread unsampled.
				continue
			}
			grew = true
		}
		if !grew {
			break
		}
	}

	if len(p.tracers) == 0 {
		return nil, fmt.Errorf("profiler: pid %d: %w", pid, syserr.ErrThreadGone)
	}

	return p, nil
}

// attach constructs a ThreadTracer for tid and publishes it into the map
// before resuming it, preserving the attach -> ready -> good_to_go ->
// PTRACE_CONT ordering the typed handshake enforces.
func (p *Profiler) attach(tid int) error {
	attached, err := tracer.Attach(p.pid, tid, tracer.Config{
		Space:    p.space,
		Notifier: p,
		Logger:   p.cfg.Logger,
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.sealed {
		p.mu.Unlock()
		attached.Start().Destroy()
		return nil
	}
	t := attached.Start()
	p.tracers[tid] = t
	p.mu.Unlock()
	return nil
}

// NewThread implements tracer.Notifier: a worker reports a freshly cloned
// tid it has already detached from.
func (p *Profiler) NewThread(tid int) {
	p.mu.Lock()
	sealed := p.sealed
	_, known := p.tracers[tid]
	p.mu.Unlock()
	if sealed || known {
		// A sealed Profiler drops the notification: the newborn runs
		// untraced once the rest of the thread group detaches, same
		// as any thread the profiler never saw.
		return
	}
	if err := p.attach(tid); err != nil {
		if p.cfg.Logger != nil && syserr.Classify(err, true) != syserr.ThreadGone {
			p.cfg.Logger.Warnf("attach to cloned tid %d: %v", tid, err)
		}
	}
}

// EndThread implements tracer.Notifier: a worker reports its tracee gone.
// The tracer itself is reaped on the next sampling round, not inline here,
// so a worker never blocks on its own teardown.
func (p *Profiler) EndThread(tid int) {
	p.mu.Lock()
	if !p.sealed {
		p.zombies = append(p.zombies, tid)
	}
	p.mu.Unlock()
}

// reap drops tracers for every tid EndThread has queued since the last
// call.
func (p *Profiler) reap() {
	p.mu.Lock()
	zombies := p.zombies
	p.zombies = nil
	p.mu.Unlock()

	for _, tid := range zombies {
		p.mu.Lock()
		t, ok := p.tracers[tid]
		if ok {
			delete(p.tracers, tid)
		}
		p.mu.Unlock()
		if ok {
			t.Destroy()
		}
	}
}

// snapshot copies the tracers map so a sampling round can await futures
// without holding the map lock.
func (p *Profiler) snapshot() map[int]*tracer.ThreadTracer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int]*tracer.ThreadTracer, len(p.tracers))
	for tid, t := range p.tracers {
		out[tid] = t
	}
	return out
}

type pendingSample struct {
	tid int
	ch  <-chan tracer.SampleResult
}

// round performs one sampling round: request a stacktrace from every known
// tracer under the map lock's snapshot, then await every future outside the
// lock, then hand the results to s.
func (p *Profiler) round(s sink.Sink) {
	tracers := p.snapshot()

	inFlight := make([]pendingSample, 0, len(tracers))
	for tid, t := range tracers {
		ch, err := t.RequestStacktrace()
		if err != nil {
			s.InfoLine(fmt.Sprintf("tid %d: %v", tid, err))
			continue
		}
		inFlight = append(inFlight, pendingSample{tid: tid, ch: ch})
	}

	samples := make(map[int]stackframe.Stacktrace, len(inFlight))
	for _, pd := range inFlight {
		res := <-pd.ch
		if res.Err != nil {
			s.InfoLine(fmt.Sprintf("tid %d: %v", pd.tid, res.Err))
			continue
		}
		samples[pd.tid] = res.Trace
	}

	s.Tick(samples)
}

// EventLoop drives sampling. With hb nil it takes exactly one round — the
// CLI's one-shot mode — and returns. Otherwise it paces rounds with hb,
// reaping dead tracers and reporting skipped ticks between rounds, until
// SIGINT.
func (p *Profiler) EventLoop(s sink.Sink, hb *pacer.Heartbeat) {
	if hb == nil {
		p.round(s)
		return
	}

	latch := siglatch.New(os.Interrupt)
	defer latch.Stop()

	for {
		p.reap()

		if err := hb.Beat(); err != nil {
			// TooSoon only fires on internal mis-sequencing; there is
			// nothing a caller can do with it mid-loop but retry once
			// the interval has genuinely elapsed.
			continue
		}
		if hb.Skipped() > 0 {
			s.InfoLine(fmt.Sprintf("sampling fell behind: %d tick(s) skipped", hb.Skipped()))
		}

		if latch.Fired() {
			return
		}

		select {
		case <-latch.C():
			return
		case <-time.After(hb.UntilNextBeat()):
		}

		p.round(s)
	}
}

// Close seals the Profiler against further birth/death notifications and
// detaches every tracer.
func (p *Profiler) Close() {
	p.mu.Lock()
	p.sealed = true
	tracers := p.tracers
	p.tracers = make(map[int]*tracer.ThreadTracer)
	p.mu.Unlock()

	for _, t := range tracers {
		t.Destroy()
	}
	p.space.Close()
}
