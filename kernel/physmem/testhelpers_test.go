package physmem

import (
	"sync/atomic"
	"unsafe"
)

// simulateBackingStore sets PhysOffset to point at a freshly allocated Go
// byte slice so tests can exercise the intrusive free-list links without
// real physical memory.
func simulateBackingStore(tb testingTB, size int) uintptr {
	tb.Helper()
	backing := make([]byte, size)
	base := uintptr(unsafe.Pointer(&backing[0]))
	atomic.StoreUint32(&physOffsetSeen, 0)
	SetPhysOffset(base)
	tb.Cleanup(func() {
		atomic.StoreUint32(&physOffsetSeen, 0)
		runtimeKeepAlive(backing)
	})
	return base
}

// testingTB is the subset of *testing.T used above, avoiding an import
// cycle concern between test helper files; kept minimal on purpose.
type testingTB interface {
	Helper()
	Cleanup(func())
}

func runtimeKeepAlive(b []byte) {
	_ = b[len(b)-1]
}
