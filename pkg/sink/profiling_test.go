package sink

import (
	"bytes"
	"strings"
	"testing"

	"wat/pkg/stackframe"
)

func TestProfilingSinkRendersEveryNTicksAndResetsInfo(t *testing.T) {
	var buf bytes.Buffer
	s := NewProfilingSink(&buf, 10, 3)

	tick := map[int]stackframe.Stacktrace{
		1: {{IP: 0x1000, ProcName: "hot"}},
	}

	s.Tick(tick)
	s.Tick(tick)
	if buf.Len() != 0 {
		t.Fatalf("rendered before the configured cadence: %q", buf.String())
	}

	s.InfoLine("tid 9: backend error")
	s.Tick(tick)
	out := buf.String()
	if !strings.Contains(out, "hot") {
		t.Fatalf("render missing hot procedure name: %q", out)
	}
	if !strings.Contains(out, "INFO:") || !strings.Contains(out, "tid 9: backend error") {
		t.Fatalf("render missing queued info line: %q", out)
	}

	buf.Reset()
	s.Tick(tick)
	s.Tick(tick)
	s.Tick(tick)
	if strings.Contains(buf.String(), "INFO:") {
		t.Fatalf("info lines were not drained after the previous render: %q", buf.String())
	}
}

func TestProfilingSinkConcatenatesAcrossThreadsBeforePush(t *testing.T) {
	var buf bytes.Buffer
	s := NewProfilingSink(&buf, 10, 1)

	s.Tick(map[int]stackframe.Stacktrace{
		1: {{IP: 0x1000, ProcName: "shared"}},
		2: {{IP: 0x2000, ProcName: "shared"}},
	})

	if got := s.window.Len(); got != 1 {
		t.Fatalf("window.Len() = %d, want 1", got)
	}
	top := s.window.Top(1)
	if len(top) != 1 || top[0].Name != "shared" || top[0].Ratio != 1.0 {
		t.Fatalf("Top(1) = %+v, want a single 'shared' entry at ratio 1.0", top)
	}
}
