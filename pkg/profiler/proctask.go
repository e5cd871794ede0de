package profiler

import (
	"fmt"
	"os"
	"strconv"

	"wat/pkg/syserr"
)

// readTaskDir lists the thread ids currently listed under /proc/<pid>/task.
// Entries that fail to parse as an integer (there should be none) are
// skipped rather than failing the whole read. A pid that never existed (or
// has already fully exited) surfaces /proc's ENOENT, which is translated to
// ErrThreadGone here so it reads as an ESRCH-style outcome at the CLI.
func readTaskDir(pid int) ([]int, error) {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/task", pid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pid %d: %w", pid, syserr.ErrThreadGone)
		}
		return nil, err
	}
	tids := make([]int, 0, len(entries))
	for _, e := range entries {
		tid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		tids = append(tids, tid)
	}
	return tids, nil
}
