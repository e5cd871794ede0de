package sink

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"wat/pkg/demangle"
	"wat/pkg/stackframe"
	"wat/pkg/stats"
)

// clearScreen erases the terminal and homes the cursor. Only emitted when
// Out is actually a terminal, so piping a profiling session to a file or a
// test buffer doesn't litter it with escape codes.
const clearScreen = "\x1b[H\x1b[2J"

// ProfilingSink folds every tick's stacktraces into a Sliding statistic and
// periodically renders the top-30 hottest procedure names full-screen.
type ProfilingSink struct {
	out         io.Writer
	isTerminal  bool
	window      *stats.Sliding
	renderEvery int
	ticks       int
	info        []string
}

// NewProfilingSink creates a ProfilingSink with the given sliding-window
// width (in ticks) and a render cadence of one render every renderEvery
// ticks.
func NewProfilingSink(out io.Writer, windowTicks, renderEvery int) *ProfilingSink {
	isTerminal := false
	if f, ok := out.(*os.File); ok {
		isTerminal = term.IsTerminal(int(f.Fd()))
	}
	return &ProfilingSink{
		out:         out,
		isTerminal:  isTerminal,
		window:      stats.New(windowTicks),
		renderEvery: renderEvery,
	}
}

// Tick concatenates every thread's (already per-thread deduped) frames into
// one tick's worth of samples, pushes it into the sliding window, and
// renders every renderEvery ticks.
func (s *ProfilingSink) Tick(samples map[int]stackframe.Stacktrace) {
	var all stackframe.Stacktrace
	for _, frames := range samples {
		all = append(all, frames.DedupByName()...)
	}
	s.window.Push(all)

	s.ticks++
	if s.ticks%s.renderEvery == 0 {
		s.render()
	}
}

// InfoLine queues a per-sample failure for display under the next render's
// INFO: block.
func (s *ProfilingSink) InfoLine(msg string) {
	s.info = append(s.info, msg)
}

func (s *ProfilingSink) render() {
	var b []byte
	if s.isTerminal {
		b = append(b, clearScreen...)
	}
	for _, top := range s.window.Top(30) {
		b = fmt.Appendf(b, "%6.2f%% %s\n", top.Ratio*100, demangle.Display(top.Name))
	}
	if len(s.info) > 0 {
		b = append(b, '\n')
		b = append(b, "INFO:\n"...)
		for _, line := range s.info {
			b = fmt.Appendf(b, "%s\n", line)
		}
		s.info = nil
	}
	s.out.Write(b)
}
