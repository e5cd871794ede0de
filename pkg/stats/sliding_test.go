package stats

import (
	"testing"

	"wat/pkg/stackframe"
)

func frames(names ...string) stackframe.Stacktrace {
	out := make(stackframe.Stacktrace, len(names))
	for i, n := range names {
		out[i] = stackframe.Frame{ProcName: n}
	}
	return out
}

func TestPushAndTop(t *testing.T) {
	s := New(3)
	s.Push(frames("a", "b"))
	s.Push(frames("a"))
	s.Push(frames("a", "c"))

	top := s.Top(10)
	want := map[string]float64{"a": 1.0, "b": 1.0 / 3, "c": 1.0 / 3}
	if len(top) != len(want) {
		t.Fatalf("top = %v, want %d entries", top, len(want))
	}
	for _, e := range top {
		if e.Ratio != want[e.Name] {
			t.Errorf("ratio for %q = %v, want %v", e.Name, e.Ratio, want[e.Name])
		}
	}
}

func TestPushRetiresOldestWhenFull(t *testing.T) {
	s := New(2)
	s.Push(frames("a"))
	s.Push(frames("a"))
	s.Push(frames("b")) // retires tick 1 ("a"); window now ["a","b"]

	counts := map[string]int{}
	for _, top := range s.Top(10) {
		counts[top.Name] = int(top.Ratio * float64(s.Len()))
	}
	if counts["a"] != 1 {
		t.Errorf("count[a] = %d, want 1", counts["a"])
	}
	if counts["b"] != 1 {
		t.Errorf("count[b] = %d, want 1", counts["b"])
	}
}

func TestTopTieBrokenLexically(t *testing.T) {
	s := New(1)
	s.Push(frames("zeta", "alpha", "mid"))

	top := s.Top(10)
	if len(top) != 3 {
		t.Fatalf("len(top) = %d, want 3", len(top))
	}
	for _, e := range top {
		if e.Ratio != 1.0 {
			t.Fatalf("ratio = %v, want 1.0 for single-tick window", e.Ratio)
		}
	}
	names := []string{top[0].Name, top[1].Name, top[2].Name}
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names = %v, want %v", names, want)
		}
	}
}

func TestTopTruncatesToN(t *testing.T) {
	s := New(1)
	s.Push(frames("a", "b", "c", "d"))
	if got := s.Top(2); len(got) != 2 {
		t.Errorf("len(Top(2)) = %d, want 2", len(got))
	}
}

func TestRoundTripEmptiesCounts(t *testing.T) {
	s := New(4)
	seq := frames("x", "y", "z")
	for i := 0; i < 4; i++ {
		s.Push(seq)
	}
	// Pushing four more distinct (empty) ticks pops every occurrence of
	// the original sequence back out.
	for i := 0; i < 4; i++ {
		s.Push(nil)
	}
	if len(s.counts) != 0 {
		t.Errorf("counts = %v, want empty after round trip", s.counts)
	}
}

func TestDedupRecursiveFramesCountOnce(t *testing.T) {
	s := New(1)
	deep := make(stackframe.Stacktrace, 10000)
	for i := range deep {
		deep[i] = stackframe.Frame{ProcName: "recurse"}
	}
	s.Push(deep)

	top := s.Top(10)
	if len(top) != 1 {
		t.Fatalf("len(top) = %d, want 1", len(top))
	}
	if top[0].Ratio != 1.0 {
		t.Errorf("ratio = %v, want 1.0 (one hit despite 10000 frames)", top[0].Ratio)
	}
}
