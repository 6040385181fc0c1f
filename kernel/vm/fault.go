package vm

import (
	"nanokern/kernel/defs"
	"nanokern/kernel/paging"
	"nanokern/kernel/physmem"
)

// Reason explains why a fault is unrecoverable, surfaced to the panic
// screen (kernel fault) or the Zombie reason string (user-mode segfault).
type Reason string

const (
	ReasonReservedBit   Reason = "reserved bit set in page-fault error code"
	ReasonKernelMode    Reason = "page fault in kernel mode"
	ReasonProtection    Reason = "protection violation: page already present"
	ReasonNoVMA         Reason = "no VMA contains the faulting address"
	ReasonCodeNotMapped Reason = "code VMA fault: code pages must be pre-mapped"
	ReasonOOM           Reason = "out of physical memory while resolving fault"
)

// Error-code bit layout the CPU pushes for a page fault (Intel SDM vol 3,
// §4.7): bit 0 = present, bit 2 = user, bit 3 = reserved-bit violation.
const (
	errPresent  uint64 = 1 << 0
	errUser     uint64 = 1 << 2
	errReserved uint64 = 1 << 3
)

// Classify inspects the CPU-pushed page-fault error code (and whether the
// faulting context was user or kernel mode) and decides whether the fault
// is a demand-pageable candidate. It is a pure function: no global state,
// no I/O, so the interrupt handler can call it before touching any lock.
//
// Classify returns (true, "") for a demand-pageable candidate, or
// (false, reason) for an unrecoverable fault.
func Classify(errorCode uint64, userMode bool) (demandPageable bool, reason Reason) {
	if errorCode&errReserved != 0 {
		return false, ReasonReservedBit
	}
	if !userMode {
		return false, ReasonKernelMode
	}
	if errorCode&errPresent != 0 {
		return false, ReasonProtection
	}
	return true, ""
}

// Resolve handles a demand-pageable fault at faultAddr against vma in the
// currently-active address space's page table (the CPU does not change
// CR3 during a fault, so tbl is necessarily the faulting process's own
// table). Only Anonymous VMAs may be resolved this way; Code pages are
// pre-mapped eagerly and a fault against one is a bug, not a recoverable
// condition. MapUserPage draws the frame from the buddy allocator tbl
// was built with; Resolve additionally zeroes it, so a fresh page always
// reads back as zero.
func Resolve(tbl *paging.Manager, vma VMA, faultAddr uintptr) defs.Err_t {
	if vma.Kind != Anonymous {
		return defs.EFAULT
	}
	page := faultAddr &^ (physmem.FrameSize - 1)
	frame, ok := tbl.MapUserPage(page, vma.Flags)
	if !ok {
		return defs.ENOMEM
	}
	physmem.Zero(frame, physmem.FrameSize)
	return 0
}
