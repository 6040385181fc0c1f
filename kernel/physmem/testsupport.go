package physmem

import "sync/atomic"

// SetPhysOffsetForTest overrides PhysOffset without the one-shot panic
// guard SetPhysOffset enforces in production. It exists only so that
// other packages' tests (paging, vm, ...) can point the PhysOffset
// window at a Go byte slice standing in for physical memory; production
// code must still call SetPhysOffset exactly once.
func SetPhysOffsetForTest(v uintptr) {
	atomic.StoreUint32(&physOffsetSeen, 0)
	SetPhysOffset(v)
}
