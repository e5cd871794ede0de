// Package stats rolls up the frames observed across a sliding window of
// sampling ticks and extracts the hottest procedure names.
package stats

import (
	"container/list"
	"sort"

	"wat/pkg/stackframe"
)

// Top is one entry of a top-N report: the fraction of the window's ticks in
// which Name appeared, and the name itself.
type Top struct {
	Ratio float64
	Name  string
}

// Sliding is a fixed-width ring of per-tick frame sequences plus a
// name-to-count map summed over the ring. Zero value is not usable; build
// one with New.
type Sliding struct {
	width  int
	ticks  *list.List // each element is stackframe.Stacktrace, already deduped by name
	counts map[string]int
}

// New creates a Sliding statistic with the given window width, in ticks.
func New(width int) *Sliding {
	if width <= 0 {
		panic("stats: width must be positive")
	}
	return &Sliding{
		width:  width,
		ticks:  list.New(),
		counts: make(map[string]int),
	}
}

// Push records one tick's worth of frames. Frames are deduped by procedure
// name before counting, so a deep recursion counts as one hit for that
// tick. If the ring is already full, the oldest tick is retired first.
func (s *Sliding) Push(frames stackframe.Stacktrace) {
	deduped := frames.DedupByName()

	if s.ticks.Len() == s.width {
		s.popOldest()
	}

	for _, f := range deduped {
		s.counts[f.ProcName]++
	}
	s.ticks.PushBack(deduped)
}

func (s *Sliding) popOldest() {
	front := s.ticks.Front()
	s.ticks.Remove(front)
	oldest := front.Value.(stackframe.Stacktrace)
	for _, f := range oldest {
		s.counts[f.ProcName]--
		if s.counts[f.ProcName] == 0 {
			delete(s.counts, f.ProcName)
		}
	}
}

// Len reports how many ticks are currently retained.
func (s *Sliding) Len() int {
	return s.ticks.Len()
}

// Top returns the n hottest names by ratio (count over the current window
// denominator), descending, ties broken lexically by name for determinism.
func (s *Sliding) Top(n int) []Top {
	denom := s.width
	if l := s.ticks.Len(); l < denom {
		denom = l
	}
	if denom == 0 {
		return nil
	}

	out := make([]Top, 0, len(s.counts))
	for name, count := range s.counts {
		out = append(out, Top{Ratio: float64(count) / float64(denom), Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ratio != out[j].Ratio {
			return out[i].Ratio > out[j].Ratio
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
