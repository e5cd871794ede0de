//go:build arm64

package unwind

import "syscall"

// On arm64, x29 is the frame pointer and x30 the link register; the AAPCS64
// frame record at [fp] holds {saved_fp, saved_lr}, the same layout the
// generic frame-pointer walk in provider.go expects.
func ipFromRegs(r *syscall.PtraceRegs) uint64 { return r.Pc }
func spFromRegs(r *syscall.PtraceRegs) uint64 { return r.Sp }
func bpFromRegs(r *syscall.PtraceRegs) uint64 { return r.Regs[29] }
