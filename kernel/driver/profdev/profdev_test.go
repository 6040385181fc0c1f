package profdev

import (
	"testing"
	"unsafe"

	"github.com/google/pprof/profile"

	"nanokern/kernel/fdtable"
	"nanokern/kernel/physmem"
	"nanokern/kernel/slab"
)

func TestReadRendersAllocatorProfile(t *testing.T) {
	backing := make([]byte, 64*physmem.FrameSize)
	physmem.SetPhysOffsetForTest(uintptr(unsafe.Pointer(&backing[0])))
	b := physmem.NewBuddyAllocator(true)
	b.AddRegion(0, physmem.PhysAddr(len(backing)))
	s := slab.NewAllocator(b, true)
	if _, ok := s.Allocate(64, 8); !ok {
		t.Fatal("slab allocate")
	}
	SetCounters(&Counters{Buddy: b, Slab: s})
	t.Cleanup(func() {
		SetCounters(nil)
		_ = backing[len(backing)-1]
	})

	h, err := fdtable.Registry.Open(fdtable.PathProf)
	if err != 0 {
		t.Fatalf("open: %v", err)
	}
	out := make([]byte, 1<<16)
	n, rerr := h.Read(out)
	if rerr != 0 || n == 0 {
		t.Fatalf("read: n=%d err=%v", n, rerr)
	}

	prof, perr := profile.ParseData(out[:n])
	if perr != nil {
		t.Fatalf("parse profile: %v", perr)
	}
	var sawBuddy, sawSlab bool
	for _, smp := range prof.Sample {
		if len(smp.Label["counter"]) == 0 {
			continue
		}
		switch smp.Label["counter"][0] {
		case "buddy_outstanding_bytes":
			sawBuddy = true
		case "slab_used_bytes":
			sawSlab = true
		}
	}
	if !sawBuddy || !sawSlab {
		t.Fatalf("expected buddy and slab samples, got buddy=%v slab=%v", sawBuddy, sawSlab)
	}
}
