// Package syscall implements the software-interrupt (int 0x80) entry
// point. Calling convention matches Linux x86_64: syscall number in rax,
// arguments in rdi/rsi/rdx/r10/r8/r9, return value (negative = -errno)
// in rax. The trampoline pushes registers, calls Dispatch with the
// TrapFrame, and the returned int64 is written back into rax before
// iretq.
package syscall

import (
	"nanokern/kernel/defs"
	"nanokern/kernel/fdtable"
	"nanokern/kernel/proc"
	"nanokern/kernel/sched"
	"nanokern/kernel/vm"
)

// Dispatcher holds the one collaborator every syscall handler needs: the
// scheduler (for the Running process's FileTable/AddressSpace, and for
// yield/exit). The driver registry is reached through fdtable.Registry,
// a package-level singleton keyed by path.
type Dispatcher struct {
	Scheduler *sched.Scheduler
}

// New builds a Dispatcher bound to s.
func New(s *sched.Scheduler) *Dispatcher { return &Dispatcher{Scheduler: s} }

// Dispatch is the Rust/C-trampoline-facing entry: it reads the syscall
// number and arguments out of tf (rax and rdi/rsi/rdx/r10/r8/r9) and
// returns the value to write back into rax. Every handler acquires no
// kernel lock before (conceptually) disabling interrupts; in this
// single-goroutine-per-dispatch model that ordering is enforced by the
// caller of Dispatch, not by this function.
func (d *Dispatcher) Dispatch(tf *proc.TrapFrame) int64 {
	switch tf.RAX {
	case defs.SYS_READ:
		return d.sysRead(int(tf.RDI), uintptr(tf.RSI), int(tf.RDX))
	case defs.SYS_WRITE:
		return d.sysWrite(int(tf.RDI), uintptr(tf.RSI), int(tf.RDX))
	case defs.SYS_OPEN:
		return d.sysOpen(uintptr(tf.RDI), int(tf.RSI))
	case defs.SYS_CLOSE:
		return d.sysClose(int(tf.RDI))
	case defs.SYS_YIELD:
		return d.sysYield()
	case defs.SYS_GETPID:
		return d.sysGetpid()
	case defs.SYS_EXIT:
		return d.sysExit(int(tf.RDI))
	default:
		return int64(defs.ENOSYS)
	}
}

func (d *Dispatcher) currentProcess() (*proc.Process, defs.Err_t) {
	pid, ok := d.Scheduler.CurrentPid()
	if !ok {
		return nil, defs.ESRCH
	}
	p, ok := d.Scheduler.Process(pid)
	if !ok {
		return nil, defs.ESRCH
	}
	return p, 0
}

// sysRead implements read(fd, buf, n): looks up fd in the current
// process's FileTable, validates the user buffer, reads into a kernel
// staging buffer, and copies it out to user memory.
func (d *Dispatcher) sysRead(fd int, userBuf uintptr, n int) int64 {
	p, err := d.currentProcess()
	if err != 0 {
		return int64(err)
	}
	h, err := p.Files.Get(fd)
	if err != 0 {
		return int64(err)
	}
	if err := validateForHandle(p, userBuf, n); err != 0 {
		return int64(err)
	}
	staging := make([]byte, n)
	got, herr := h.Read(staging)
	if herr != 0 {
		return int64(herr)
	}
	if cerr := p.AddressSpace.CopyToUser(userBuf, staging[:got]); cerr != 0 {
		return int64(cerr)
	}
	return int64(got)
}

// sysWrite implements write(fd, buf, n): validates the user buffer, reads
// it into a kernel staging buffer, and forwards it to the fd's handle.
func (d *Dispatcher) sysWrite(fd int, userBuf uintptr, n int) int64 {
	p, err := d.currentProcess()
	if err != 0 {
		return int64(err)
	}
	h, err := p.Files.Get(fd)
	if err != 0 {
		return int64(err)
	}
	if err := validateForHandle(p, userBuf, n); err != 0 {
		return int64(err)
	}
	staging, cerr := p.AddressSpace.CopyFromUser(userBuf, n)
	if cerr != 0 {
		return int64(cerr)
	}
	got, herr := h.Write(staging)
	if herr != 0 {
		return int64(herr)
	}
	return int64(got)
}

// validateForHandle checks the user pointer contract before any handler
// touches memory: non-null, no overflow, no kernel-boundary crossing. p
// is unused directly (the check is address-space-independent) but kept
// in the signature so call sites read "validate this process's pointer".
func validateForHandle(p *proc.Process, addr uintptr, n int) defs.Err_t {
	return vm.ValidateUserRange(addr, n)
}

// sysOpen implements open(path, flags): reads the NUL-free path string
// out of user memory (capped to a sane length), looks it up in the
// DriverRegistry, and installs the resulting handle at the lowest free fd.
func (d *Dispatcher) sysOpen(userPath uintptr, flags int) int64 {
	p, err := d.currentProcess()
	if err != 0 {
		return int64(err)
	}
	const maxPathLen = 256
	raw, cerr := p.AddressSpace.CopyFromUser(userPath, maxPathLen)
	if cerr != 0 {
		return int64(cerr)
	}
	end := 0
	for end < len(raw) && raw[end] != 0 {
		end++
	}
	path := string(raw[:end])

	h, rerr := fdtable.Registry.Open(path)
	if rerr != 0 {
		return int64(rerr)
	}
	fd, ierr := p.Files.Install(h)
	if ierr != 0 {
		h.Close()
		return int64(ierr)
	}
	return int64(fd)
}

// sysClose implements close(fd).
func (d *Dispatcher) sysClose(fd int) int64 {
	p, err := d.currentProcess()
	if err != 0 {
		return int64(err)
	}
	if cerr := p.Files.Close(fd); cerr != 0 {
		return int64(cerr)
	}
	return 0
}

// sysYield implements yield(): accepted but currently a no-op; a
// voluntary context-switch hook would land here.
func (d *Dispatcher) sysYield() int64 { return 0 }

// sysGetpid implements getpid().
func (d *Dispatcher) sysGetpid() int64 {
	pid, ok := d.Scheduler.CurrentPid()
	if !ok {
		return int64(defs.ESRCH)
	}
	return int64(pid)
}

// sysExit implements exit(status): moves the Running process to Zombie
// and switches to the next Ready process in one step.
func (d *Dispatcher) sysExit(status int) int64 {
	d.Scheduler.KillAndSwitch("exit: " + itoa(status))
	return 0
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
