// Package diag renders human-readable panic and segfault reasons: CR2,
// error code, faulting RIP, plus a disassembly of the faulting
// instruction via golang.org/x/arch/x86/x86asm. It also deduplicates
// repeated panics from the same call chain so the panic screen stays
// legible under a spinning fault.
package diag

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/arch/x86/x86asm"
)

// DecodeFault disassembles the single instruction at the faulting RIP
// (code must contain at least the bytes at and after rip; 15 bytes is the
// longest possible x86_64 instruction, so callers should supply that
// many when available) and renders it in Intel syntax for the panic
// screen. Returns a fallback string rather than an error if decoding
// fails; a panic path must never itself panic.
func DecodeFault(code []byte, rip uint64) string {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return fmt.Sprintf("<undecodable at %#x: %v>", rip, err)
	}
	return x86asm.IntelSyntax(inst, rip, nil)
}

// FaultReason formats the full panic-screen line for a kernel fault.
func FaultReason(cr2 uintptr, errorCode uint64, rip uint64, code []byte, why string) string {
	return fmt.Sprintf("kernel fault: cr2=%#x error=%#x rip=%#x [%s]: %s",
		cr2, errorCode, rip, DecodeFault(code, rip), why)
}

// DistinctCaller tracks whether a call chain (the sequence of return
// addresses above the caller) has been seen before, so repeated panics
// with the same call chain are deduplicated rather than flooding the
// panic screen.
type DistinctCaller struct {
	mu      sync.Mutex
	enabled bool
	seen    map[uintptr]bool
}

// NewDistinctCaller returns a tracker; enabled false makes Distinct
// always report (false, "").
func NewDistinctCaller(enabled bool) *DistinctCaller {
	return &DistinctCaller{enabled: enabled, seen: make(map[uintptr]bool)}
}

func pcHash(pcs []uintptr) uintptr {
	var h uintptr
	for _, pc := range pcs {
		h ^= pc*1103515245 + 12345
	}
	return h
}

// Distinct reports whether the call chain rooted at skip frames above its
// own caller has been seen before, returning a formatted stack trace the
// first time. Subsequent calls with the same chain return (false, "").
func (d *DistinctCaller) Distinct(skip int) (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enabled {
		return false, ""
	}

	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return false, ""
	}
	pcs = pcs[:n]

	h := pcHash(pcs)
	if d.seen[h] {
		return false, ""
	}
	d.seen[h] = true

	frames := runtime.CallersFrames(pcs)
	var trace string
	for {
		fr, more := frames.Next()
		if trace == "" {
			trace = fmt.Sprintf("%s (%s:%d)\n", fr.Function, fr.File, fr.Line)
		} else {
			trace += fmt.Sprintf("\t%s (%s:%d)\n", fr.Function, fr.File, fr.Line)
		}
		if !more || fr.Function == "runtime.goexit" {
			break
		}
	}
	return true, trace
}

// Len reports how many distinct call chains have been recorded.
func (d *DistinctCaller) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
