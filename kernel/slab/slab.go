// Package slab implements the kernel's global heap: a slab allocator for
// small objects layered on physmem.BuddyAllocator. Each size class keeps
// a free list of fixed-size objects cut from 4 KiB frames; anything
// larger than the biggest class goes straight to the buddy allocator.
package slab

import (
	"sync"

	"nanokern/kernel/physmem"
)

// sizeClasses are the object sizes the small-object path serves. All are
// powers of two and all are <= physmem.FrameSize; both properties are
// asserted at init time.
var sizeClasses = [...]int{8, 16, 32, 64, 128, 256, 512, 1024, 2048}

const largeThreshold = 2048

func init() {
	for i, sz := range sizeClasses {
		if sz&(sz-1) != 0 {
			panic("slab: size class not a power of two")
		}
		if sz > physmem.FrameSize {
			panic("slab: size class exceeds frame size")
		}
		if i > 0 && sizeClasses[i-1] >= sz {
			panic("slab: size classes must be strictly increasing")
		}
	}
}

// noObj marks an empty free list. Links are stored as raw addresses (not
// live Go pointers) in the first 8 bytes of each free object, the same
// trick physmem.BuddyAllocator uses for its free blocks; object memory
// is plain backing storage the Go GC does not walk as a pointer graph.
const noObj = ^uintptr(0)

// class holds the free list and frame bookkeeping for one size class.
type class struct {
	mu       sync.Mutex
	size     int
	freeHead uintptr
	used     int
	total    int
}

// Allocator is the global heap. It serves any (size, align) request: small
// requests are rounded up to a size class and served from that class's
// free list; large requests go straight to the buddy allocator.
type Allocator struct {
	buddy   *physmem.BuddyAllocator
	classes [len(sizeClasses)]class
	debug   bool
}

// NewAllocator builds a slab allocator backed by buddy. debug enables
// 0xAA/0xDD poisoning of objects on allocate/deallocate to catch
// use-after-free.
func NewAllocator(buddy *physmem.BuddyAllocator, debug bool) *Allocator {
	a := &Allocator{buddy: buddy, debug: debug}
	for i, sz := range sizeClasses {
		a.classes[i].size = sz
		a.classes[i].freeHead = noObj
	}
	return a
}

func classFor(size, align int) int {
	need := size
	if align > need {
		need = align
	}
	for i, sz := range sizeClasses {
		if sz >= need {
			return i
		}
	}
	return -1
}

func orderFor(size int) int {
	pages := (size + physmem.FrameSize - 1) / physmem.FrameSize
	order := physmem.MinOrder
	for (1 << uint(order-physmem.MinOrder)) < pages {
		order++
	}
	return order
}

// Allocate serves a (size, align) request. size <= 2048 is rounded up to
// the smallest size class >= max(size, align) and drawn from that class's
// free list. Larger requests go directly to the buddy allocator at
// order = 12 + ceil(log2(ceil(size/4096))), the same order Deallocate
// computes, so the pair always speak to the same buddy block.
func (a *Allocator) Allocate(size, align int) (uintptr, bool) {
	if size <= 0 {
		panic("slab: bad size")
	}
	if size > largeThreshold {
		order := orderFor(size)
		addr, ok := a.buddy.Allocate(order)
		if !ok {
			return 0, false
		}
		return uintptr(physmem.Offset()) + uintptr(addr), true
	}

	ci := classFor(size, align)
	if ci < 0 {
		panic("slab: no size class fits request")
	}
	c := &a.classes[ci]
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.freeHead == noObj {
		if !a.refill(c) {
			return 0, false
		}
	}
	va := c.freeHead
	c.freeHead = readNext(va)
	c.used++
	if a.debug {
		poison(va, c.size, 0xAA)
	}
	return va, true
}

// refill requests one frame from the buddy allocator (order 12) and chops
// it into N objects of the class size, pushing all N onto the free list;
// Allocate's caller-side pop then claims one.
func (a *Allocator) refill(c *class) bool {
	frame, ok := a.buddy.Allocate(physmem.MinOrder)
	if !ok {
		return false
	}
	base := uintptr(physmem.Offset()) + uintptr(frame)
	n := physmem.FrameSize / c.size
	c.total += n
	for i := 0; i < n; i++ {
		obj := base + uintptr(i*c.size)
		writeNext(obj, c.freeHead)
		c.freeHead = obj
	}
	return true
}

// Deallocate returns a previously allocated pointer to the allocator. The
// caller must supply the same (size, align) used at allocation time so
// the order computed for a large allocation matches the order computed
// at allocate time (see orderFor).
func (a *Allocator) Deallocate(addr uintptr, size, align int) {
	if size > largeThreshold {
		order := orderFor(size)
		phys := physmem.PhysAddr(addr - uintptr(physmem.Offset()))
		a.buddy.Deallocate(phys, order)
		return
	}
	ci := classFor(size, align)
	if ci < 0 {
		panic("slab: no size class fits request")
	}
	c := &a.classes[ci]
	c.mu.Lock()
	defer c.mu.Unlock()
	if a.debug {
		poison(addr, c.size, 0xDD)
	}
	writeNext(addr, c.freeHead)
	c.freeHead = addr
	c.used--
	if c.used < 0 {
		panic("slab: used_objects underflow, double free?")
	}
}

// UsedObjects reports the number of outstanding allocations in the class
// that fits (size, align); used by the "no leak" test.
func (a *Allocator) UsedObjects(size, align int) int {
	ci := classFor(size, align)
	if ci < 0 {
		return 0
	}
	c := &a.classes[ci]
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// ClassUsage is one size class's bookkeeping snapshot.
type ClassUsage struct {
	Size  int
	Used  int
	Total int
}

// Classes snapshots every size class's object counts, for the /dev/prof
// exporter and for tests.
func (a *Allocator) Classes() []ClassUsage {
	out := make([]ClassUsage, len(a.classes))
	for i := range a.classes {
		c := &a.classes[i]
		c.mu.Lock()
		out[i] = ClassUsage{Size: c.size, Used: c.used, Total: c.total}
		c.mu.Unlock()
	}
	return out
}

// Invariant checks that used + free == total for every class; exposed for
// tests and for a debug-mode consistency sweep.
func (a *Allocator) Invariant() bool {
	for i := range a.classes {
		c := &a.classes[i]
		c.mu.Lock()
		free := 0
		for o := c.freeHead; o != noObj; o = readNext(o) {
			free++
		}
		ok := c.used+free == c.total
		c.mu.Unlock()
		if !ok {
			return false
		}
	}
	return true
}
