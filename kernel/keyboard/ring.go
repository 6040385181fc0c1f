// Package keyboard implements a single-producer/single-consumer
// lock-free ring of decoded keycodes, the producer being the PS/2 IRQ
// handler and the consumer the shell process. The ring crosses
// IRQ/process context, so it uses a release/acquire atomic protocol
// instead of a mutex; the producer must never wait on a lock the
// consumer holds.
package keyboard

import "sync/atomic"

// Capacity is the ring's fixed entry count.
const Capacity = 128

// Ring is a fixed-capacity SPSC ring of scancodes. The only shared
// mutation is the slot at writeIndex: the producer writes it, then
// publishes the new writeIndex with release ordering; the consumer reads
// writeIndex with acquire ordering before touching the slot. This gives
// lock-freedom between the keyboard IRQ and the shell process without
// disabling interrupts.
type Ring struct {
	slots      [Capacity]uint32
	writeIndex atomic.Uint64 // published with release ordering by the producer
	readIndex  uint64        // owned by the single consumer
}

// Push is called only from the keyboard IRQ handler (single producer).
// Returns false if the ring is full; the scancode is dropped rather than
// blocking, since the producer runs in interrupt context and must not
// wait.
func (r *Ring) Push(code uint32) bool {
	w := r.writeIndex.Load()
	if w-r.readSnapshot() >= Capacity {
		return false
	}
	r.slots[w%Capacity] = code
	r.writeIndex.Store(w + 1) // release: publishes the slot write above
	return true
}

// readSnapshot is only ever called from Push (producer side); readIndex
// is only ever written by the consumer, so this load affects drop-rate
// accuracy, not correctness. A stale value only makes Push conservative.
func (r *Ring) readSnapshot() uint64 { return atomic.LoadUint64(&r.readIndex) }

// Pop is called only from the consumer (the shell process). Returns
// false if the ring is empty.
func (r *Ring) Pop() (uint32, bool) {
	w := r.writeIndex.Load() // acquire: synchronizes with Push's release store
	if r.readIndex >= w {
		return 0, false
	}
	v := r.slots[r.readIndex%Capacity]
	atomic.StoreUint64(&r.readIndex, r.readIndex+1)
	return v, true
}
