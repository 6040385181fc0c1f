// Package physmem implements the kernel's physical memory management: the
// PhysOffset window and the BuddyAllocator layered over the UEFI memory
// map. Every other memory-adjacent package (slab, paging, vm) draws its
// frames from BuddyAllocator and reaches into physical memory only
// through PhysOffset.
package physmem

import (
	"sync/atomic"
	"unsafe"
)

// PhysAddr identifies a physical address. It is only meaningful translated
// through PhysOffset.
type PhysAddr uintptr

const (
	// FrameShift is the base-2 log of the page size.
	FrameShift = 12
	// FrameSize is the size in bytes of a single physical frame.
	FrameSize = 1 << FrameShift
)

var (
	physOffset     uint64
	physOffsetSeen uint32
)

// SetPhysOffset records the virtual base of the linear physical-memory
// window. It must be called exactly once, before any allocator or
// page-table operation touches a frame. A second call panics: PhysOffset
// is a one-shot value, not a reconfigurable setting.
func SetPhysOffset(v uintptr) {
	if !atomic.CompareAndSwapUint32(&physOffsetSeen, 0, 1) {
		panic("physmem: PhysOffset set twice")
	}
	atomic.StoreUint64(&physOffset, uint64(v))
}

// Offset returns the configured PhysOffset. Panics if SetPhysOffset has not
// run yet, since every caller that reaches this point has a bug: frames
// cannot be touched before the window exists.
func Offset() uintptr {
	if atomic.LoadUint32(&physOffsetSeen) == 0 {
		panic("physmem: PhysOffset read before init")
	}
	return uintptr(atomic.LoadUint64(&physOffset))
}

// Window maps phys into the PhysOffset region and returns it as a byte
// slice of length n.
func Window(phys PhysAddr, n int) []byte {
	va := Offset() + uintptr(phys)
	return unsafe.Slice((*byte)(unsafe.Pointer(va)), n)
}

// readLink/writeLink access the intrusive free-list pointer stored in a
// free block's first 8 bytes.
func readLink(addr PhysAddr) PhysAddr {
	p := (*uint64)(unsafe.Pointer(Offset() + uintptr(addr)))
	return PhysAddr(atomic.LoadUint64(p))
}

func writeLink(addr PhysAddr, next PhysAddr) {
	p := (*uint64)(unsafe.Pointer(Offset() + uintptr(addr)))
	atomic.StoreUint64(p, uint64(next))
}

// Zero fills n bytes at phys with 0. Used by the fault handler when
// resolving a demand-paged frame and by the page-table manager for fresh
// table and data frames.
func Zero(phys PhysAddr, n int) {
	w := Window(phys, n)
	for i := range w {
		w[i] = 0
	}
}
