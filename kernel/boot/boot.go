// Package boot implements the kernel's init orchestrator: the single
// sequenced path from the bootloader handshake to the first process
// switch. One exported entry point, printed progress lines, and a panic
// on anything the bootloader handshake got wrong; there is nothing to
// recover to this early.
package boot

import (
	"fmt"

	"nanokern/kernel/cpu"
	"nanokern/kernel/ctxswitch"
	"nanokern/kernel/diag"
	_ "nanokern/kernel/driver" // links every device driver's self-registering init()
	"nanokern/kernel/driver/fbcons"
	"nanokern/kernel/driver/profdev"
	"nanokern/kernel/interrupt"
	"nanokern/kernel/ioport"
	"nanokern/kernel/keyboard"
	"nanokern/kernel/paging"
	"nanokern/kernel/physmem"
	"nanokern/kernel/proc"
	"nanokern/kernel/sched"
	"nanokern/kernel/slab"
	"nanokern/kernel/syscall"
	"nanokern/kernel/vm"
)

// MemoryRegion is one entry of the bootloader's usable-RAM map.
type MemoryRegion struct {
	Start, End physmem.PhysAddr
}

// BootInfo is the bootloader handshake: everything Init needs arrives as
// a struct literal, never a config file.
type BootInfo struct {
	Regions        []MemoryRegion
	Framebuffer    fbcons.Descriptor
	KernelStackTop uintptr
	// InitProcesses lists the user images to Spawn once scheduling is
	// live; each entry just needs a name and a base priority since
	// there is no loader yet.
	InitProcesses []InitProcess
}

// InitProcess names one process Init should Spawn before the first
// Switch.
type InitProcess struct {
	Name         string
	BasePriority int
}

// ps2DataPort is the PS/2 controller's data register; the keyboard IRQ
// handler reads a scancode from it.
const ps2DataPort = 0x60

// Kernel bundles every long-lived subsystem handle Init constructs: the
// timer and syscall vectors registered against Interrupts close over
// Scheduler (Tick/Switch) and a syscall.Dispatcher respectively.
type Kernel struct {
	Buddy      *physmem.BuddyAllocator
	Slab       *slab.Allocator
	GDT        *cpu.GDT
	Interrupts *interrupt.Table
	Scheduler  *sched.Scheduler
	Keyboard   *keyboard.Ring

	// Panics dedups repeated kernel-fault panics from the same call
	// chain; the panic screen has to stay legible under a spinning
	// fault, not just format one correctly.
	Panics *diag.DistinctCaller

	// FirstFrame is the TrapFrame the first process starts from, the
	// value the boot tail hands to the iretq trampoline.
	FirstFrame *proc.TrapFrame
}

// Init runs the sequenced boot: framebuffer, then memory, then the TSS,
// then interrupts, then processes, then the first switch. Each
// step panics on failure; there is no recovery path before the scheduler
// exists to kill anything.
func Init(info BootInfo) *Kernel {
	initFramebuffer(info)
	buddy := initMemory(info)
	slabAlloc := slab.NewAllocator(buddy, true)
	profdev.SetCounters(&profdev.Counters{Buddy: buddy, Slab: slabAlloc})

	tss := new(cpu.TSS)
	tss.SetKernelStack(info.KernelStackTop)
	installDoubleFaultStack(tss, buddy)
	gdt := cpu.NewGDT(tss)

	panics := diag.NewDistinctCaller(true)
	idt := initInterrupts(panics)
	s := sched.New(tss)
	wireFaultHandler(idt, s, panics)
	wireTimer(idt, s)
	wireSyscall(idt, s)

	ring := new(keyboard.Ring)
	idt.Register(interrupt.VectorKeyboard, func(int, interrupt.Frame) {
		ring.Push(uint32(ioport.In(ps2DataPort)))
	}, uint16(cpu.SelKCode), 0, 0)

	spawnInitProcesses(s, buddy, info)

	fmt.Printf("boot: %d process(es) ready, switching in%s\n", len(info.InitProcesses), s.Stats())
	first := ctxswitch.JumpToTrapFrame(s.Switch(nil))

	return &Kernel{
		Buddy:      buddy,
		Slab:       slabAlloc,
		GDT:        gdt,
		Interrupts: idt,
		Scheduler:  s,
		Keyboard:   ring,
		Panics:     panics,
		FirstFrame: first,
	}
}

// installDoubleFaultStack gives the double-fault vector its own IST
// stack. The vector's whole point is surviving a blown kernel stack, so
// RSP0 cannot serve it; without a dedicated stack installed here the CPU
// would push the exception frame onto the bad stack and triple-fault.
func installDoubleFaultStack(tss *cpu.TSS, buddy *physmem.BuddyAllocator) {
	frame, ok := buddy.Allocate(physmem.MinOrder)
	if !ok {
		panic("boot: cannot allocate the double fault IST stack")
	}
	tss.SetIST(doubleFaultIST, physmem.Offset()+uintptr(frame)+physmem.FrameSize)
}

// doubleFaultIST is the IST slot the double-fault vector runs on.
const doubleFaultIST = 1

// initFramebuffer installs the bootloader's framebuffer descriptor before
// anything else runs, so a panic anywhere later in Init has somewhere to
// print to.
func initFramebuffer(info BootInfo) {
	fbcons.SetDescriptor(&info.Framebuffer)
	fmt.Printf("boot: framebuffer %dx%d stride=%d\n", info.Framebuffer.Width, info.Framebuffer.Height, info.Framebuffer.Stride)
}

// initMemory builds the BuddyAllocator from the bootloader's memory map
// and carves out the kernel's root page table.
func initMemory(info BootInfo) *physmem.BuddyAllocator {
	if len(info.Regions) == 0 {
		panic("boot: bootloader handshake carries no usable memory regions")
	}
	b := physmem.NewBuddyAllocator(true)
	var total uint64
	for _, r := range info.Regions {
		b.AddRegion(r.Start, r.End)
		total += uint64(r.End - r.Start)
	}
	kroot, ok := b.Allocate(physmem.MinOrder)
	if !ok {
		panic("boot: cannot allocate a frame for the kernel page table root")
	}
	physmem.Zero(kroot, physmem.FrameSize)
	paging.SetKernelRoot(kroot)
	fmt.Printf("boot: %d MiB of physical memory across %d region(s)\n", total>>20, len(info.Regions))
	return b
}

// initInterrupts builds the InterruptTable and registers the one vector
// every boot needs regardless of what Init's caller asked for: the
// double fault, which runs on the IST stack installDoubleFaultStack set
// up since by definition something has already gone wrong with the
// current one.
func initInterrupts(panics *diag.DistinctCaller) *interrupt.Table {
	idt := new(interrupt.Table)
	idt.RegisterDoubleFault(func(int, interrupt.Frame) {
		if distinct, trace := panics.Distinct(1); distinct {
			panic("boot: double fault\n" + trace)
		}
		panic("boot: double fault (repeat)")
	}, uint16(cpu.SelKCode), doubleFaultIST)
	return idt
}

// wireFaultHandler registers the page-fault vector against the
// scheduler's Running process, the one place that unites the memory
// layer (VmaList/page tables) and the process layer (Scheduler):
// classify the fault, then either resolve it (demand page in) or kill
// the offending process and hand control to the next Ready one.
//
// The real trampoline pushes CR2 (the faulting linear address) and the
// hardware error code onto the stack before calling the vector's
// handler; interrupt.Frame carries both through to this closure, so the
// classify/resolve pair below runs against the actual faulting address
// rather than a placeholder.
func wireFaultHandler(idt *interrupt.Table, s *sched.Scheduler, panics *diag.DistinctCaller) {
	idt.Register(interrupt.VectorPageFault, func(_ int, frame interrupt.Frame) {
		p := s.RunningProcess()
		if p == nil {
			panic("boot: page fault with no Running process")
		}
		tf := &p.TrapFrame
		userMode := tf.UserMode()
		demandPageable, reason := vm.Classify(frame.ErrorCode, userMode)
		if !demandPageable {
			if !userMode {
				msg := diag.FaultReason(frame.CR2, frame.ErrorCode, tf.RIP, nil, string(reason))
				if distinct, trace := panics.Distinct(1); distinct {
					panic(msg + "\n" + trace)
				}
				panic(msg)
			}
			s.KillAndSwitch("page fault: " + string(reason))
			return
		}
		vma, _, ok := s.FindCurrentVMA(frame.CR2)
		if !ok {
			s.KillAndSwitch("page fault: " + string(vm.ReasonNoVMA))
			return
		}
		if err := vm.Resolve(p.AddressSpace.Table, vma, frame.CR2); err != 0 {
			reason := vm.ReasonOOM
			if vma.Kind != vm.Anonymous {
				reason = vm.ReasonCodeNotMapped
			}
			s.KillAndSwitch("page fault: " + string(reason))
		}
	}, uint16(cpu.SelKCode), 0, 0)
}

// wireTimer registers the PIT vector (32): every tick asks the scheduler
// whether the Running process's quantum is exhausted and, if so, runs
// the switch through the trampoline contract: the current TrapFrame in,
// the next process's TrapFrame out.
func wireTimer(idt *interrupt.Table, s *sched.Scheduler) {
	idt.Register(interrupt.VectorTimer, func(int, interrupt.Frame) {
		if !s.Tick() {
			return
		}
		p := s.RunningProcess()
		if p == nil {
			return
		}
		ctxswitch.Enter(&p.TrapFrame, func(incoming *proc.TrapFrame) *proc.TrapFrame {
			return s.Switch(incoming)
		})
	}, uint16(cpu.SelKCode), 0, 0)
}

// wireSyscall registers int 0x80 at DPL 3 so user-mode code can invoke
// it directly, the only vector with that privilege level. The
// dispatcher's return value is written back into the Running process's
// saved rax, which is where iretq leaves it for the caller.
func wireSyscall(idt *interrupt.Table, s *sched.Scheduler) {
	dispatcher := syscall.New(s)
	idt.Register(interrupt.VectorSyscall, func(int, interrupt.Frame) {
		p := s.RunningProcess()
		if p == nil {
			panic("boot: syscall with no Running process")
		}
		ret := dispatcher.Dispatch(&p.TrapFrame)
		p.TrapFrame.RAX = uint64(ret)
	}, uint16(cpu.SelKCode), 3, 0)
}

// spawnInitProcesses builds an AddressSpace per entry in info.InitProcesses
// and hands it to the scheduler. There is no loader, so each process gets
// only its demand-paged Anonymous stack VMA and a kernel stack frame.
func spawnInitProcesses(s *sched.Scheduler, buddy *physmem.BuddyAllocator, info BootInfo) {
	if len(info.InitProcesses) == 0 {
		panic("boot: no init processes to spawn")
	}

	const stackBase = 0x7100_0000_0000
	const stackPages = 16

	for i, ip := range info.InitProcesses {
		as, ok := vm.NewAddressSpace(buddy)
		if !ok {
			panic("boot: cannot build an address space for " + ip.Name)
		}
		stack := vm.VMA{Start: stackBase, PageCount: stackPages, Flags: paging.PTE_W, Kind: vm.Anonymous}
		if err := as.AddVMA(stack); err != 0 {
			panic("boot: cannot install stack VMA for " + ip.Name)
		}
		kstack, ok := buddy.Allocate(physmem.MinOrder)
		if !ok {
			panic("boot: cannot allocate a kernel stack for " + ip.Name)
		}
		top := uintptr(kstack) + physmem.FrameSize
		pid := s.Spawn(ip.Name, proc.User, ip.BasePriority, as, top)
		fmt.Printf("boot: spawned %q as pid %d (%d/%d)\n", ip.Name, pid, i+1, len(info.InitProcesses))
	}
}
