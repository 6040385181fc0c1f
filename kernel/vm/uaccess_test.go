package vm

import (
	"testing"

	"nanokern/kernel/physmem"
)

func TestValidateUserRangeRejectsNull(t *testing.T) {
	if err := ValidateUserRange(0, 8); err == 0 {
		t.Fatal("expected EFAULT for null address")
	}
}

func TestValidateUserRangeRejectsOverflow(t *testing.T) {
	if err := ValidateUserRange(^uintptr(0)-4, 16); err == 0 {
		t.Fatal("expected EFAULT for overflowing range")
	}
}

func TestValidateUserRangeRejectsKernelCrossing(t *testing.T) {
	if err := ValidateUserRange(UserSpaceEnd-4, 16); err == 0 {
		t.Fatal("expected EFAULT for a range crossing into kernel space")
	}
}

func TestValidateUserRangeAccepts(t *testing.T) {
	if err := ValidateUserRange(0x40_0000, 64); err != 0 {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCopyToUserThenFromUserRoundTrips(t *testing.T) {
	as, _ := newTestAddressSpace(t, 64)
	vma := VMA{Start: 0x7100_0000_0000, PageCount: 4, Flags: 0, Kind: Anonymous}
	if err := as.AddVMA(vma); err != 0 {
		t.Fatalf("add vma: %v", err)
	}

	payload := []byte("DEADBEEF")
	if err := as.CopyToUser(vma.Start+0x10, payload); err != 0 {
		t.Fatalf("copy to user: %v", err)
	}
	got, err := as.CopyFromUser(vma.Start+0x10, len(payload))
	if err != 0 {
		t.Fatalf("copy from user: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q want %q", got, payload)
	}

	// The copy touched one page, so exactly one page of the VMA should
	// have been demand-paged in.
	mapped := 0
	for i := 0; i < vma.PageCount; i++ {
		if _, present := as.Table.Lookup(vma.Start + uintptr(i)*physmem.FrameSize); present {
			mapped++
		}
	}
	if mapped != 1 {
		t.Fatalf("%d pages mapped in the VMA range, want exactly 1", mapped)
	}
}

func TestCopyFromUserOutsideVMAFails(t *testing.T) {
	as, _ := newTestAddressSpace(t, 64)
	if _, err := as.CopyFromUser(0x9999_0000, 8); err == 0 {
		t.Fatal("expected EFAULT for address outside any VMA")
	}
}
