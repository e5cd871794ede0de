package sink

import (
	"fmt"
	"io"
	"sort"

	"wat/pkg/stackframe"
)

// OneshotSink prints exactly one round of stacktraces, one thread at a
// time, and is used by the CLI's `-1` mode.
type OneshotSink struct {
	Out io.Writer
}

// NewOneshotSink creates a OneshotSink writing to out.
func NewOneshotSink(out io.Writer) *OneshotSink {
	return &OneshotSink{Out: out}
}

// Tick writes "Thread <tid>:" followed by "0x<hex IP> <procName>" for each
// frame, a blank line between threads. Threads are printed in ascending tid
// order so output is deterministic.
func (s *OneshotSink) Tick(samples map[int]stackframe.Stacktrace) {
	tids := make([]int, 0, len(samples))
	for tid := range samples {
		tids = append(tids, tid)
	}
	sort.Ints(tids)

	for i, tid := range tids {
		if i > 0 {
			fmt.Fprintln(s.Out)
		}
		fmt.Fprintf(s.Out, "Thread %d:\n", tid)
		for _, f := range samples[tid] {
			fmt.Fprintf(s.Out, "0x%x %s\n", f.IP, f.ProcName)
		}
	}
}

// InfoLine prints a per-sample failure directly; one-shot mode has no
// persistent display to append it to.
func (s *OneshotSink) InfoLine(msg string) {
	fmt.Fprintf(s.Out, "INFO: %s\n", msg)
}
