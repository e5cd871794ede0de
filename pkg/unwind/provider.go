// Package unwind is a thin typed binding over the external remote-unwind
// facility spec.md §6 describes as an opaque provider of init_remote, step,
// get_reg(IP|SP) and get_proc_name. No cgo/libunwind binding exists anywhere
// in the retrieved corpus (see DESIGN.md), so this package is itself the
// concrete provider: frame-pointer-based remote stack walking over ptrace,
// with symbols resolved from the tracee's mapped ELF files.
package unwind

import (
	"encoding/binary"
	"fmt"
	"syscall"
)

// Reg names the two registers the tracer needs per frame.
type Reg int

const (
	RegIP Reg = iota
	RegSP
)

// StepResult mirrors the external unwinder's step() contract: more frames
// remain, the walk ended normally, or the backend failed.
type StepResult int

const (
	StepMore StepResult = iota
	StepEnd
	StepError
)

// AddressSpace corresponds to create_addr_space/destroy_addr_space: one per
// target process, shared by every ThreadTracer's RemoteContext so the
// procedure-name cache and parsed symbol tables are shared too.
type AddressSpace struct {
	pid    int
	symtab *symTable
	cache  *nameCache
}

// NewAddressSpace parses the target's executable mappings and their ELF
// symbol tables once, up front.
func NewAddressSpace(pid int) (*AddressSpace, error) {
	mappings, err := readExecutableMappings(pid)
	if err != nil {
		return nil, err
	}

	st := newSymTable()
	for _, m := range mappings {
		bias, err := computeBias(m.path, m.fileOffset, m.start)
		if err != nil {
			// A mapped file we can't parse (deleted, permission
			// denied, not actually ELF) just contributes no
			// symbols; other mappings still resolve.
			continue
		}
		_ = loadELFSymbols(st, m.path, bias)
	}
	st.finalize()

	return &AddressSpace{pid: pid, symtab: st, cache: newNameCache()}, nil
}

// Close releases the address space. Our pure-Go provider holds no external
// resources, but the method exists to mirror destroy_addr_space and give
// callers one lifecycle to manage regardless of provider implementation.
func (a *AddressSpace) Close() {}

// RemoteContext corresponds to create_remote_context(tid)/destroy_remote_context:
// one per tracee thread, bound to a tid within the shared AddressSpace.
type RemoteContext struct {
	space *AddressSpace
	tid   int
}

// NewRemoteContext binds a remote unwind context to tid within this address
// space.
func (a *AddressSpace) NewRemoteContext(tid int) *RemoteContext {
	return &RemoteContext{space: a, tid: tid}
}

// Close mirrors destroy_remote_context.
func (c *RemoteContext) Close() {}

// Cursor corresponds to the unwinder's opaque cursor type: the current
// frame's registers, walked one step at a time. Cursor is not safe for use
// by any thread other than the one that holds the ptrace attachment for
// its tid — callers must invoke Init/Step from the ThreadTracer worker's
// own locked OS thread, exactly where every other ptrace call for that tid
// originates.
type Cursor struct {
	ctx *RemoteContext
	ip  uint64
	sp  uint64
	bp  uint64
}

// Init corresponds to init_remote(cursor, space, ctx): reads the tracee's
// current registers and starts a cursor at its innermost frame. The tracee
// must already be stopped (the ThreadTracer only calls this after observing
// the SIGSTOP it requested).
func (c *RemoteContext) Init() (*Cursor, error) {
	var regs syscall.PtraceRegs
	if err := syscall.PtraceGetRegs(c.tid, &regs); err != nil {
		return nil, fmt.Errorf("unwind: getregs tid %d: %w", c.tid, err)
	}
	return &Cursor{
		ctx: c,
		ip:  ipFromRegs(&regs),
		sp:  spFromRegs(&regs),
		bp:  bpFromRegs(&regs),
	}, nil
}

// GetReg corresponds to get_reg(cursor, IP|SP).
func (c *Cursor) GetReg(r Reg) uint64 {
	switch r {
	case RegIP:
		return c.ip
	case RegSP:
		return c.sp
	default:
		return 0
	}
}

// ProcName corresponds to get_proc_name(cursor): the name of the function
// enclosing the cursor's current IP, consulting and populating the shared
// process-wide cache described in spec.md §4.2.
func (c *Cursor) ProcName() (string, error) {
	if name, ok := c.ctx.space.cache.lookup(c.ip); ok {
		return name, nil
	}
	name, found := c.ctx.space.symtab.lookup(c.ip)
	if !found {
		name = unknownName
	}
	c.ctx.space.cache.store(c.ip, name)
	return name, nil
}

// Step corresponds to step(cursor): follows the saved-frame-pointer chain
// one frame outward. It returns StepEnd once the chain terminates (a zero
// frame pointer or a zero return address, both of which mark the bottom of
// a normal call stack) and StepError if the remote memory read fails
// (typically because the tracee raced us and exited, or the frame pointer
// chain is corrupt).
func (c *Cursor) Step() (StepResult, error) {
	if c.bp == 0 {
		return StepEnd, nil
	}

	buf := make([]byte, 16)
	n, err := syscall.PtracePeekData(c.ctx.tid, uintptr(c.bp), buf)
	if err != nil {
		return StepError, fmt.Errorf("unwind: peekdata tid %d at 0x%x: %w", c.ctx.tid, c.bp, err)
	}
	if n < len(buf) {
		return StepEnd, nil
	}

	savedBP := binary.LittleEndian.Uint64(buf[0:8])
	retAddr := binary.LittleEndian.Uint64(buf[8:16])
	if retAddr == 0 {
		return StepEnd, nil
	}

	c.ip = retAddr
	c.sp = c.bp + 16
	c.bp = savedBP
	return StepMore, nil
}
