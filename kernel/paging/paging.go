// Package paging implements the per-process owner of a 4-level x86_64
// page table. All mapping happens through the PhysOffset window, so a
// table can be built and modified without ever being loaded into CR3.
package paging

import (
	"sync"
	"unsafe"

	"nanokern/kernel/physmem"
)

// Entry counts and shifts for a standard 4-level (PML4/PDPT/PD/PT) x86_64
// page table.
const (
	entriesPerTable = 512
	levelShift      = 9 // bits consumed per table level
)

// PTE flag bits.
const (
	PTE_P    uint64 = 1 << 0 // present
	PTE_W    uint64 = 1 << 1 // writable
	PTE_U    uint64 = 1 << 2 // user-accessible
	PTE_PS   uint64 = 1 << 7 // large page
	PTE_ADDR uint64 = 0x000f_ffff_ffff_f000
)

// Table is one level of the page table, a raw array of 512 PTEs living in
// a physical frame. It is only ever addressed through the PhysOffset
// window; there is no temporary-mapping step.
type Table [entriesPerTable]uint64

// pml4Index, pdptIndex, pdIndex, and ptIndex decompose a canonical 48-bit
// virtual address into its four 9-bit table indices.
func pml4Index(va uintptr) int { return int((va >> 39) & 0x1ff) }
func pdptIndex(va uintptr) int { return int((va >> 30) & 0x1ff) }
func pdIndex(va uintptr) int   { return int((va >> 21) & 0x1ff) }
func ptIndex(va uintptr) int   { return int((va >> 12) & 0x1ff) }

// PML4 entries whose index falls in [userPML4Lo, userPML4Hi) are the user
// range, left empty on every new address space so that each process
// builds its own intermediate tables and no two processes alias a shared
// subtree. Everything else (kernel, PhysOffset window, framebuffer,
// PIT/PIC mappings) is shared skeleton copied verbatim from the kernel
// root. The user range starts at index 0: the user code base 0x40_0000
// lives under PML4 entry 0 and must be per-process like the rest.
const (
	userPML4Lo = 0
	userPML4Hi = 256 // below the canonical-hole / kernel-half entries
)

// Manager owns one process's root page table frame, carved from a
// physmem.BuddyAllocator, and knows how to map user pages into it without
// ever activating it.
type Manager struct {
	mu    sync.Mutex
	buddy *physmem.BuddyAllocator
	root  physmem.PhysAddr
}

// activeCR3 models the hardware CR3 register. There is exactly one per
// logical CPU and this kernel assumes one CPU, so it is package state
// shared by every Manager's Activate call.
var activeCR3 physmem.PhysAddr = physmem.PhysAddr(^uint64(0))

// kernelRoot is the template root table new address spaces copy their
// shared (non-user-range) entries from. SetKernelRoot must run once during
// boot, before any NewUserManager call.
var kernelRoot physmem.PhysAddr
var kernelRootSet bool

// SetKernelRoot records the physical frame of the kernel's own root page
// table, built by the bootloader/init sequence. NewUserManager copies its
// non-user-range entries into every process root it creates.
func SetKernelRoot(root physmem.PhysAddr) {
	kernelRoot = root
	kernelRootSet = true
}

func tableAt(phys physmem.PhysAddr) *Table {
	return (*Table)(unsafe.Pointer(physmem.Offset() + uintptr(phys)))
}

// NewUserManager allocates and zeroes a new root frame, then copies every
// non-empty kernel root entry outside the user-address range so kernel
// code, the PhysOffset window, the framebuffer, and PIT/PIC mappings stay
// visible. Entries in the user range are left empty: the process builds
// its own intermediate tables on first mapping.
func NewUserManager(buddy *physmem.BuddyAllocator) (*Manager, bool) {
	if !kernelRootSet {
		panic("paging: kernel root not set")
	}
	frame, ok := buddy.Allocate(physmem.MinOrder)
	if !ok {
		return nil, false
	}
	physmem.Zero(frame, physmem.FrameSize)

	dst := tableAt(frame)
	src := tableAt(kernelRoot)
	for i := 0; i < entriesPerTable; i++ {
		if i >= userPML4Lo && i < userPML4Hi {
			continue
		}
		if src[i]&PTE_P != 0 {
			dst[i] = src[i]
		}
	}
	return &Manager{buddy: buddy, root: frame}, true
}

// RootPhys returns the physical address of this manager's root table, the
// value an activation would write into CR3.
func (m *Manager) RootPhys() physmem.PhysAddr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root
}

// Activate writes CR3, modeled here as updating the shared activeCR3 cell.
// It is a no-op when this manager's root is already the active one,
// sparing the full TLB flush a CR3 write implies.
func (m *Manager) Activate() (flushed bool) {
	m.mu.Lock()
	root := m.root
	m.mu.Unlock()
	if activeCR3 == root {
		return false
	}
	activeCR3 = root
	return true
}

// walkCreate returns the leaf page table entry for va, allocating any
// missing intermediate tables from the buddy allocator along the way.
// Returns ok=false only on allocator OOM.
func (m *Manager) walkCreate(va uintptr) (*uint64, bool) {
	next := func(tbl *Table, idx int) (*Table, bool) {
		if tbl[idx]&PTE_P == 0 {
			frame, ok := m.buddy.Allocate(physmem.MinOrder)
			if !ok {
				return nil, false
			}
			physmem.Zero(frame, physmem.FrameSize)
			tbl[idx] = uint64(frame) | PTE_P | PTE_W | PTE_U
		}
		return tableAt(physmem.PhysAddr(tbl[idx] & PTE_ADDR)), true
	}

	pml4 := tableAt(m.root)
	pdpt, ok := next(pml4, pml4Index(va))
	if !ok {
		return nil, false
	}
	pd, ok := next(pdpt, pdptIndex(va))
	if !ok {
		return nil, false
	}
	pt, ok := next(pd, pdIndex(va))
	if !ok {
		return nil, false
	}
	return &pt[ptIndex(va)], true
}

// MapUserPage allocates a 4 KiB data frame, zeroes it, and maps it at the
// page-aligned virtual address page with the given PTE flags (PTE_U is
// always added; every mapping this manager installs is a user page).
// Allocates any missing intermediate tables from the buddy as needed. All
// work happens through the PhysOffset window; the table need not be
// active. Returns the mapped frame's physical address and ok=false only on
// OOM.
func (m *Manager) MapUserPage(page uintptr, flags uint64) (physmem.PhysAddr, bool) {
	if page%physmem.FrameSize != 0 {
		panic("paging: unaligned page")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	frame, ok := m.buddy.Allocate(physmem.MinOrder)
	if !ok {
		return 0, false
	}
	physmem.Zero(frame, physmem.FrameSize)

	pte, ok := m.walkCreate(page)
	if !ok {
		m.buddy.Deallocate(frame, physmem.MinOrder)
		return 0, false
	}
	*pte = uint64(frame) | flags | PTE_P | PTE_U
	return frame, true
}

// Lookup returns the PTE for va if one is present, without creating any
// intermediate table. Used by the syscall-path user-memory walk
// (vm.AddressSpace.pageFrame) to check whether a page is already mapped
// before demand-paging it in.
func (m *Manager) Lookup(va uintptr) (pte uint64, present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	walk := func(tbl *Table, idx int) (*Table, bool) {
		if tbl[idx]&PTE_P == 0 {
			return nil, false
		}
		return tableAt(physmem.PhysAddr(tbl[idx] & PTE_ADDR)), true
	}
	pml4 := tableAt(m.root)
	pdpt, ok := walk(pml4, pml4Index(va))
	if !ok {
		return 0, false
	}
	pd, ok := walk(pdpt, pdptIndex(va))
	if !ok {
		return 0, false
	}
	pt, ok := walk(pd, pdIndex(va))
	if !ok {
		return 0, false
	}
	e := pt[ptIndex(va)]
	return e, e&PTE_P != 0
}
