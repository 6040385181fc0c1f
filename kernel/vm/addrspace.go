package vm

import (
	"nanokern/kernel/defs"
	"nanokern/kernel/paging"
	"nanokern/kernel/physmem"
)

// AddressSpace couples a page table to its VMA list: the unit of
// isolation between processes. Mutation of the VMA list is only safe
// while the owning process is not yet Running (it is built once at
// process creation) or from the fault handler while that same process is
// the one Running; those events are sequentially consistent with each
// other on a single logical CPU, so AddressSpace itself needs no lock.
type AddressSpace struct {
	Table *paging.Manager
	Vmas  VmaList
}

// NewAddressSpace allocates a fresh root page table (sharing the kernel
// skeleton per paging.NewUserManager) and an empty VMA list.
func NewAddressSpace(buddy *physmem.BuddyAllocator) (*AddressSpace, bool) {
	tbl, ok := paging.NewUserManager(buddy)
	if !ok {
		return nil, false
	}
	return &AddressSpace{Table: tbl}, true
}

// Activate forwards to the page table manager; see paging.Manager.Activate.
func (as *AddressSpace) Activate() bool { return as.Table.Activate() }

// AddVMA registers a new VMA, forwarding to the embedded VmaList.
func (as *AddressSpace) AddVMA(v VMA) defs.Err_t { return as.Vmas.Add(v) }

// FindVMA looks up the VMA containing addr.
func (as *AddressSpace) FindVMA(addr uintptr) (VMA, bool) { return as.Vmas.Lookup(addr) }
