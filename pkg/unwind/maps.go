package unwind

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"wat/pkg/syserr"
)

// mapping is one executable region of /proc/<pid>/maps backed by a
// regular file (anonymous/[vdso]/[heap]/etc mappings are skipped: they
// carry no ELF symbol table worth loading).
type mapping struct {
	start uint64
	fileOffset uint64
	path  string
}

// readExecutableMappings parses /proc/<pid>/maps and returns the first
// (lowest-address) executable mapping for each distinct backing file, the
// one whose start address establishes that file's load bias.
func readExecutableMappings(pid int) ([]mapping, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("unwind: pid %d: %w", pid, syserr.ErrThreadGone)
		}
		return nil, fmt.Errorf("unwind: open maps for pid %d: %w", pid, err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	var out []mapping

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		perms := fields[1]
		if !strings.Contains(perms, "x") {
			continue
		}
		path := fields[5]
		if path == "" || strings.HasPrefix(path, "[") {
			continue
		}
		if seen[path] {
			continue
		}
		seen[path] = true

		addrRange := fields[0]
		startStr, _, ok := strings.Cut(addrRange, "-")
		if !ok {
			continue
		}
		start, err := strconv.ParseUint(startStr, 16, 64)
		if err != nil {
			continue
		}
		offset, err := strconv.ParseUint(fields[2], 16, 64)
		if err != nil {
			continue
		}
		out = append(out, mapping{start: start, fileOffset: offset, path: path})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("unwind: scan maps for pid %d: %w", pid, err)
	}
	return out, nil
}
