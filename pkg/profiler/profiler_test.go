//go:build linux

package profiler_test

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"wat/pkg/profiler"
	"wat/pkg/sink"
	"wat/pkg/syserr"
)

// TestOneshotAgainstRealProcess exercises Profiler.New and a single
// EventLoop round end to end against an actual child process. It requires
// ptrace permissions for a same-uid child; where that's unavailable the
// test skips rather than fails.
func TestOneshotAgainstRealProcess(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot spawn test child: %v", err)
	}
	defer cmd.Process.Kill()

	pid := cmd.Process.Pid
	time.Sleep(20 * time.Millisecond)

	p, err := profiler.New(pid, profiler.Config{})
	if err != nil {
		t.Skipf("profiler.New not permitted in this environment: %v", err)
	}
	defer p.Close()

	var buf bytes.Buffer
	p.EventLoop(sink.NewOneshotSink(&buf), nil)

	out := buf.String()
	want := "Thread " + strconv.Itoa(pid) + ":"
	if !strings.Contains(out, want) {
		t.Fatalf("output %q does not contain %q", out, want)
	}
}

// TestNewInvalidPidIsThreadGone exercises spec.md §8 testable property 5:
// profiling a pid that never existed must fail with an error that
// unwraps to syserr.ErrThreadGone and mentions ESRCH, the way cmd/root.go's
// "Exception: %v" line needs to.
func TestNewInvalidPidIsThreadGone(t *testing.T) {
	pid := 1 << 30 // well past any real pid_max; never a live process
	if _, err := os.Stat("/proc/" + strconv.Itoa(pid)); err == nil {
		t.Skip("pid unexpectedly exists in this environment")
	}

	_, err := profiler.New(pid, profiler.Config{})
	if err == nil {
		t.Fatalf("profiler.New(%d) = nil error, want one wrapping ErrThreadGone", pid)
	}
	if !errors.Is(err, syserr.ErrThreadGone) {
		t.Fatalf("profiler.New(%d) = %v, want it to unwrap to syserr.ErrThreadGone", pid, err)
	}
	if !strings.Contains(err.Error(), "ESRCH") {
		t.Fatalf("profiler.New(%d) = %q, want it to mention ESRCH", pid, err)
	}
}
