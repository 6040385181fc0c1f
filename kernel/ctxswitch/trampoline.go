// Package ctxswitch owns the contract between the context-switch
// trampoline and the Go handlers it calls. The trampoline is the short
// assembly entry shared by the timer IRQ and any preempting exception:
// it turns the interrupted register state into a proc.TrapFrame, calls
// into Go with it, and iretq's into whatever TrapFrame the handler
// selects next. The push/pop/iretq machine code itself cannot run under
// a hosted build; the handler-facing contract here is what every other
// package programs against.
package ctxswitch

import "nanokern/kernel/proc"

// Handler receives the just-interrupted TrapFrame and returns the
// TrapFrame the trampoline should resume into, possibly the same one (no
// switch occurred) or a different process's.
type Handler func(incoming *proc.TrapFrame) (next *proc.TrapFrame)

// Enter is the Go-level model of the trampoline's middle steps: call the
// handler with rsp, load rsp from its return value. The register
// push/pop and the iretq itself have no Go representation; by the time a
// handler in this kernel runs, the register state already lives in a
// proc.TrapFrame value, and resuming into one is simply installing it as
// the Running process's TrapFrame (see kernel/sched.Scheduler).
func Enter(incoming *proc.TrapFrame, h Handler) *proc.TrapFrame {
	return h(incoming)
}

// JumpToTrapFrame is the tail used at boot to start the first process
// and, conceptually, after Enter returns: set rsp = tf, pop, iretq. At
// the Go level that collapses to "this TrapFrame is now the one that
// runs". There is no separate kernel-to-kernel context swapper; every
// switch flows through this same tail.
func JumpToTrapFrame(tf *proc.TrapFrame) *proc.TrapFrame { return tf }
