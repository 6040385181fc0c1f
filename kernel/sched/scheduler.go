// Package sched implements the preemptive scheduler: eleven priority run
// queues holding only Ready processes, one wait queue for Blocked and
// Zombie processes, a single Running slot, time-sliced preemption with
// priority decay and aging, and the kill/context-switch operations the
// interrupt and syscall-dispatch layers drive. The scheduler is the sole
// owner of every Process value; every other component reaches a process
// only through its Pid, so no back-pointer cycles form.
package sched

import (
	"sync"

	"nanokern/kernel/cpu"
	"nanokern/kernel/defs"
	"nanokern/kernel/proc"
	"nanokern/kernel/stats"
	"nanokern/kernel/vm"
)

// Counters holds the scheduler's compile-time-gated diagnostic counters.
// The scheduler sits on the tick path, so it is where counting pays for
// itself. Zero-cost when stats.Enabled is false.
type Counters struct {
	Ticks     stats.Counter_t
	AgingRuns stats.Counter_t
	Switches  stats.Counter_t
	Kills     stats.Counter_t
}

// String renders the counters via the reflection-based stats dumper.
func (c Counters) String() string {
	return stats.Stats2String(c)
}

// NumPriorities is the number of run queues: 0 (idle-only) through 10.
const NumPriorities = 11

// Scheduling parameters. A process's quantum grows with its effective
// priority; aging runs once per epoch.
const (
	BaseQuantum          = 2
	QuantumBonus         = 1
	AgingEpoch           = 50
	MinEffectivePriority = 1
	IdlePriority         = 0
)

// Quantum returns the number of ticks a process at effectivePriority is
// granted before preemption: BASE_QUANTUM + effective_priority * BONUS.
func Quantum(effectivePriority int) int {
	return BaseQuantum + effectivePriority*QuantumBonus
}

// Scheduler holds all scheduling state. A single mutex covers it, always
// acquired last in lock-ordering terms; callers that also hold an
// interrupt-disable ("cli") region must drop it only after releasing
// this lock.
type Scheduler struct {
	mu sync.Mutex

	runQueues [NumPriorities][]*proc.Process
	waitQueue map[defs.Pid_t]*proc.Process
	all       map[defs.Pid_t]*proc.Process

	running *proc.Process

	remainingTicks int
	tickCount      uint64
	nextPid        defs.Pid_t

	// tss receives the kernel stack pointer of whichever process becomes
	// Running; RSP0 is rewritten on every context switch. Nil is
	// permitted (useful in unit tests that don't care about the TSS
	// side effect).
	tss *cpu.TSS

	counters Counters
}

// Stats returns a snapshot of the scheduler's diagnostic counters.
func (s *Scheduler) Stats() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// New constructs an empty scheduler. tss may be nil.
func New(tss *cpu.TSS) *Scheduler {
	return &Scheduler{
		waitQueue: make(map[defs.Pid_t]*proc.Process),
		all:       make(map[defs.Pid_t]*proc.Process),
		tss:       tss,
		nextPid:   1,
	}
}

// Spawn creates an Embryo process, immediately marks it Ready, and enqueues
// it at its base priority (effective priority starts equal to base
// priority). Returns its Pid.
func (s *Scheduler) Spawn(name string, priv proc.Privilege, basePriority int, as *vm.AddressSpace, kernelStackTop uintptr) defs.Pid_t {
	if basePriority < IdlePriority || basePriority >= NumPriorities {
		panic("sched: priority out of range")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pid := s.nextPid
	s.nextPid++

	p := proc.New(pid, name, priv, basePriority, as)
	p.KernelStackTop = kernelStackTop
	p.State = proc.Ready

	s.all[pid] = p
	s.runQueues[basePriority] = append(s.runQueues[basePriority], p)
	return pid
}

// CurrentPid returns the PID of the Running process, or (0, false) if none
// is running (e.g. before the first switch).
func (s *Scheduler) CurrentPid() (defs.Pid_t, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == nil {
		return 0, false
	}
	return s.running.Pid, true
}

// FindCurrentVMA looks up addr in the Running process's AddressSpace.
// This is the one bridge between the process and memory layers; the
// page-fault handler calls it between classifying and resolving a fault.
func (s *Scheduler) FindCurrentVMA(addr uintptr) (vm.VMA, defs.Pid_t, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == nil {
		return vm.VMA{}, 0, false
	}
	v, ok := s.running.AddressSpace.FindVMA(addr)
	return v, s.running.Pid, ok
}

// RunningProcess returns the currently Running process, or nil.
func (s *Scheduler) RunningProcess() *proc.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tick is called from the timer IRQ once per hardware tick. It advances
// the global tick counter, charges the tick to whichever process is
// Running (user or system time, per its privilege), ages Ready processes
// every AgingEpoch ticks, and decrements the remaining quantum. Returns
// true when the Running process's quantum has been exhausted and a
// switch is due.
func (s *Scheduler) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickCount++
	s.counters.Ticks.Inc()
	if s.running != nil {
		if s.running.Privilege == proc.User {
			s.running.Accnt.AddUserTick()
		} else {
			s.running.Accnt.AddSysTick()
		}
	}
	if s.tickCount%AgingEpoch == 0 {
		s.ageReadyLocked()
		s.counters.AgingRuns.Inc()
	}
	s.remainingTicks--
	return s.remainingTicks <= 0
}

// ageReadyLocked raises every Ready process's effective priority by one
// toward its base priority. Iterating priorities high-to-low guarantees
// a promotion out of queue pri lands in queue pri+1, a slot this pass
// has already visited and will not revisit; a single process is promoted
// at most once per call, regardless of how much higher its base priority
// still is.
func (s *Scheduler) ageReadyLocked() {
	for pri := NumPriorities - 1; pri >= 0; pri-- {
		q := s.runQueues[pri]
		var stay []*proc.Process
		for _, p := range q {
			if p.EffectivePriority < p.BasePriority {
				p.EffectivePriority++
				s.runQueues[p.EffectivePriority] = append(s.runQueues[p.EffectivePriority], p)
				continue
			}
			stay = append(stay, p)
		}
		s.runQueues[pri] = stay
	}
}

// popHighestLocked scans the run queues from priority 10 down to 0 and
// dequeues the head of the first non-empty one.
func (s *Scheduler) popHighestLocked() *proc.Process {
	for pri := NumPriorities - 1; pri >= 0; pri-- {
		q := s.runQueues[pri]
		if len(q) == 0 {
			continue
		}
		p := q[0]
		s.runQueues[pri] = q[1:]
		return p
	}
	return nil
}

// Switch performs a context switch: it files the outgoing process's
// register snapshot, re-queues it (or moves it to the wait queue), picks
// the next Ready process, activates its address space, writes its kernel
// stack top into the TSS, sets its quantum, and returns its TrapFrame,
// the address the trampoline resumes into. incomingSnapshot is the
// register state the trampoline captured for whichever process was
// Running; if nil (no process was running yet, e.g. at boot) the save is
// skipped.
func (s *Scheduler) Switch(incomingSnapshot *proc.TrapFrame) *proc.TrapFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running != nil {
		if incomingSnapshot != nil {
			s.running.TrapFrame = *incomingSnapshot
		}
		s.requeueOutgoingLocked(s.running)
	}

	next := s.popHighestLocked()
	if next == nil {
		panic("sched: no Ready process to switch to")
	}
	s.running = next
	next.State = proc.Running
	next.AddressSpace.Activate()
	if s.tss != nil {
		s.tss.SetKernelStack(next.KernelStackTop)
	}
	s.remainingTicks = Quantum(next.EffectivePriority)
	s.counters.Switches.Inc()
	return &next.TrapFrame
}

// requeueOutgoingLocked sends a preempted process back to its run queue
// with its effective priority decayed by one (bounded below by
// MinEffectivePriority, idle exempt); a Zombie or Blocked one goes to
// the wait queue instead.
func (s *Scheduler) requeueOutgoingLocked(p *proc.Process) {
	if p.State == proc.Zombie || p.State == proc.Blocked {
		s.waitQueue[p.Pid] = p
		return
	}
	if p.EffectivePriority > IdlePriority {
		p.EffectivePriority--
		if p.EffectivePriority < MinEffectivePriority {
			p.EffectivePriority = MinEffectivePriority
		}
	}
	p.State = proc.Ready
	s.runQueues[p.EffectivePriority] = append(s.runQueues[p.EffectivePriority], p)
}

// Block moves the Running process to Blocked. Nothing in this kernel
// blocks yet (read on a pipe would), but kill/switch share the
// wait-queue path this exercises.
func (s *Scheduler) Block() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != nil {
		s.running.State = proc.Blocked
	}
}

// KillCurrent moves the Running process to Zombie with the given reason
// but does not yet pick a replacement; KillAndSwitch does both in one
// step, which is what every caller in this kernel actually wants.
func (s *Scheduler) KillCurrent(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == nil {
		return
	}
	s.running.State = proc.Zombie
	s.running.ZombieReason = reason
	s.waitQueue[s.running.Pid] = s.running
	s.running = nil
	s.counters.Kills.Inc()
}

// KillAndSwitch moves the Running process to Zombie and returns the
// TrapFrame of the next Ready process, so the page-fault or exception
// handler can overwrite the exception-pushed iret frame in place.
func (s *Scheduler) KillAndSwitch(reason string) *proc.TrapFrame {
	s.mu.Lock()
	if s.running != nil {
		s.running.State = proc.Zombie
		s.running.ZombieReason = reason
		s.waitQueue[s.running.Pid] = s.running
		s.running = nil
		s.counters.Kills.Inc()
	}
	next := s.popHighestLocked()
	if next == nil {
		s.mu.Unlock()
		panic("sched: no Ready process to switch to after kill")
	}
	s.running = next
	next.State = proc.Running
	next.AddressSpace.Activate()
	if s.tss != nil {
		s.tss.SetKernelStack(next.KernelStackTop)
	}
	s.remainingTicks = Quantum(next.EffectivePriority)
	s.counters.Switches.Inc()
	s.mu.Unlock()
	return &next.TrapFrame
}

// Process returns the process record for pid. Used by syscall handlers
// (to reach the Running process's file table and address space) and by
// tests; no component holds a Process pointer of its own.
func (s *Scheduler) Process(pid defs.Pid_t) (*proc.Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.all[pid]
	return p, ok
}
