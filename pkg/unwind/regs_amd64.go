//go:build amd64

package unwind

import "syscall"

func ipFromRegs(r *syscall.PtraceRegs) uint64 { return r.Rip }
func spFromRegs(r *syscall.PtraceRegs) uint64 { return r.Rsp }
func bpFromRegs(r *syscall.PtraceRegs) uint64 { return r.Rbp }
