package vm

import (
	"nanokern/kernel/defs"
	"nanokern/kernel/paging"
	"nanokern/kernel/physmem"
)

// UserSpaceEnd bounds user virtual addresses; everything at or above it
// is kernel space.
const UserSpaceEnd = 0x0000_8000_0000_0000

// ValidateUserRange checks the three conditions every syscall handler
// must verify before dereferencing a user pointer: non-null, addr+size
// doesn't overflow, and the range doesn't cross into kernel space.
func ValidateUserRange(addr uintptr, size int) defs.Err_t {
	if addr == 0 {
		return defs.EFAULT
	}
	if size < 0 {
		return defs.EINVAL
	}
	end := addr + uintptr(size)
	if end < addr || end > UserSpaceEnd {
		return defs.EFAULT
	}
	return 0
}

// pageFrame resolves the physical frame backing the page containing va,
// demand-paging it in first if its VMA is Anonymous and not yet mapped.
// This is the syscall path faulting on behalf of the user: Resolve is
// invoked directly rather than through the page-fault interrupt since no
// actual CPU fault occurred here.
func (as *AddressSpace) pageFrame(va uintptr) (physmem.PhysAddr, defs.Err_t) {
	page := va &^ (physmem.FrameSize - 1)
	if pte, present := as.Table.Lookup(page); present {
		return physmem.PhysAddr(pte & paging.PTE_ADDR), 0
	}
	vma, ok := as.FindVMA(va)
	if !ok {
		return 0, defs.EFAULT
	}
	if err := Resolve(as.Table, vma, va); err != 0 {
		return 0, err
	}
	pte, _ := as.Table.Lookup(page)
	return physmem.PhysAddr(pte & paging.PTE_ADDR), 0
}

// CopyFromUser reads size bytes starting at addr out of as, validating the
// range first and walking (and, for Anonymous VMAs, demand-paging) one
// page at a time since physical frames backing consecutive user pages are
// not contiguous.
func (as *AddressSpace) CopyFromUser(addr uintptr, size int) ([]byte, defs.Err_t) {
	if err := ValidateUserRange(addr, size); err != 0 {
		return nil, err
	}
	out := make([]byte, size)
	copied := 0
	for copied < size {
		va := addr + uintptr(copied)
		page := va &^ (physmem.FrameSize - 1)
		frame, err := as.pageFrame(va)
		if err != 0 {
			return nil, err
		}
		off := int(va - page)
		n := physmem.FrameSize - off
		if rem := size - copied; n > rem {
			n = rem
		}
		copy(out[copied:copied+n], physmem.Window(frame, physmem.FrameSize)[off:off+n])
		copied += n
	}
	return out, 0
}

// CopyToUser writes data into as starting at addr, with the same
// page-at-a-time, demand-paging-aware walk as CopyFromUser.
func (as *AddressSpace) CopyToUser(addr uintptr, data []byte) defs.Err_t {
	if err := ValidateUserRange(addr, len(data)); err != 0 {
		return err
	}
	copied := 0
	for copied < len(data) {
		va := addr + uintptr(copied)
		page := va &^ (physmem.FrameSize - 1)
		frame, err := as.pageFrame(va)
		if err != 0 {
			return err
		}
		off := int(va - page)
		n := physmem.FrameSize - off
		if rem := len(data) - copied; n > rem {
			n = rem
		}
		copy(physmem.Window(frame, physmem.FrameSize)[off:off+n], data[copied:copied+n])
		copied += n
	}
	return 0
}
