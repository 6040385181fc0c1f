package proc

import (
	"sync"
	"sync/atomic"
)

// Accnt is a per-process accounting record. Userticks and Systicks are
// counted in scheduler ticks rather than nanoseconds since this kernel
// has no wall-clock source outside the PIT tick count.
type Accnt struct {
	mu        sync.Mutex
	Userticks int64
	Systicks  int64
}

// AddUserTick records one tick of time spent Running in user mode.
func (a *Accnt) AddUserTick() { atomic.AddInt64(&a.Userticks, 1) }

// AddSysTick records one tick of time spent Running in kernel mode
// (handling a syscall or fault on this process's behalf).
func (a *Accnt) AddSysTick() { atomic.AddInt64(&a.Systicks, 1) }

// Snapshot returns a consistent (Userticks, Systicks) pair.
func (a *Accnt) Snapshot() (user, sys int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return atomic.LoadInt64(&a.Userticks), atomic.LoadInt64(&a.Systicks)
}

// Merge folds another record's counts into this one, e.g. a parent
// collecting a reaped child's usage once wait() exists.
func (a *Accnt) Merge(o *Accnt) {
	ou, os := o.Snapshot()
	a.mu.Lock()
	a.Userticks += ou
	a.Systicks += os
	a.mu.Unlock()
}
