package unwind

import (
	"debug/elf"
	"fmt"
	"sort"
)

// symbol is one function symbol, in the tracee's address space (already
// adjusted for the mapping's load bias).
type symbol struct {
	addr uint64
	size uint64
	name string
}

// symTable resolves an instruction pointer to the enclosing function's
// name. Entries are kept sorted by addr so lookup is a binary search.
//
// There is no third-party ELF/DWARF symbolication library anywhere in the
// retrieved corpus, so this one piece of pkg/unwind is built on the
// standard library's debug/elf — see DESIGN.md for that justification.
type symTable struct {
	entries []symbol
}

func newSymTable() *symTable {
	return &symTable{}
}

// add inserts a symbol. Callers are expected to call finalize once after
// all symbols from all mapped objects have been added.
func (t *symTable) add(s symbol) {
	t.entries = append(t.entries, s)
}

func (t *symTable) finalize() {
	sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].addr < t.entries[j].addr })
}

// lookup finds the symbol whose [addr, addr+size) range contains ip. When
// size is unknown (0, common for stripped or partial symbol tables) it
// falls back to "the last symbol at or before ip", which is the best
// available guess and matches what a frame-pointer-based unwinder can
// offer without full DWARF line info.
func (t *symTable) lookup(ip uint64) (string, bool) {
	if len(t.entries) == 0 {
		return "", false
	}
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].addr > ip })
	if i == 0 {
		return "", false
	}
	cand := t.entries[i-1]
	if cand.size != 0 && ip >= cand.addr+cand.size {
		return "", false
	}
	return cand.name, true
}

// computeBias finds the PT_LOAD segment backing the mapping at fileOffset
// and returns the difference between where the loader actually placed it
// (mappingStart) and its link-time virtual address. For a non-PIE
// executable this is zero; for a PIE binary or shared object it is the
// runtime load address.
func computeBias(path string, fileOffset, mappingStart uint64) (uint64, error) {
	f, err := elf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("unwind: open %s: %w", path, err)
	}
	defer f.Close()

	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Off == fileOffset {
			return mappingStart - p.Vaddr, nil
		}
	}
	// No segment matched this offset exactly (unusual, but some linkers
	// page-align differently); fall back to assuming no relocation.
	return 0, nil
}

// loadELFSymbols parses path's symbol table (preferring .symtab, falling
// back to .dynsym for stripped binaries/shared objects) and adds every
// function symbol to t, shifted by bias (the difference between the
// symbol's link-time address and where the loader actually placed it —
// zero for a non-PIE executable, and for a PIE or shared object the
// mapping's start address minus the vaddr of the PT_LOAD segment at the
// mapping's file offset, as computeBias finds it).
func loadELFSymbols(t *symTable, path string, bias uint64) error {
	f, err := elf.Open(path)
	if err != nil {
		return fmt.Errorf("unwind: open %s: %w", path, err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil || len(syms) == 0 {
		syms, err = f.DynamicSymbols()
	}
	if err != nil {
		return fmt.Errorf("unwind: read symbols from %s: %w", path, err)
	}

	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 {
			continue
		}
		t.add(symbol{
			addr: s.Value + bias,
			size: s.Size,
			name: s.Name,
		})
	}
	return nil
}
