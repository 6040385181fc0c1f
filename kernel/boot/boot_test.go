package boot

import (
	"testing"
	"unsafe"

	"nanokern/kernel/cpu"
	"nanokern/kernel/driver/fbcons"
	"nanokern/kernel/interrupt"
	"nanokern/kernel/physmem"
)

func TestInitSequencesBootAndSwitchesIn(t *testing.T) {
	buf := make([]byte, 512*physmem.FrameSize)
	physmem.SetPhysOffsetForTest(uintptr(unsafe.Pointer(&buf[0])))

	info := BootInfo{
		Regions:        []MemoryRegion{{Start: 0, End: physmem.PhysAddr(len(buf))}},
		KernelStackTop: 0x9000,
		Framebuffer:    fbcons.Descriptor{Base: make([]byte, 64), Width: 8, Height: 8, Stride: 8, BytesPerPixel: 1},
		InitProcesses: []InitProcess{
			{Name: "init", BasePriority: 5},
			{Name: "shell", BasePriority: 3},
		},
	}

	k := Init(info)

	pid, ok := k.Scheduler.CurrentPid()
	if !ok {
		t.Fatal("expected a Running process after Init")
	}
	p, ok := k.Scheduler.Process(pid)
	if !ok || p.Name != "init" {
		t.Fatalf("expected the higher-priority process %q to run first, got %+v", "init", p)
	}

	if _, ok := k.Interrupts.Lookup(interrupt.VectorDoubleFault); !ok {
		t.Fatal("expected the double fault vector to be registered")
	}
	if _, ok := k.Interrupts.Lookup(interrupt.VectorPageFault); !ok {
		t.Fatal("expected the page fault vector to be registered")
	}
	if _, ok := k.Interrupts.Lookup(interrupt.VectorKeyboard); !ok {
		t.Fatal("expected the keyboard vector to be registered")
	}
	timerEntry, ok := k.Interrupts.Lookup(interrupt.VectorTimer)
	if !ok {
		t.Fatal("expected the timer vector to be registered")
	}
	syscallEntry, ok := k.Interrupts.Lookup(interrupt.VectorSyscall)
	if !ok {
		t.Fatal("expected the syscall vector to be registered")
	}
	if syscallEntry.DPL != 3 {
		t.Fatalf("expected the syscall vector's DPL to be 3, got %d", syscallEntry.DPL)
	}

	dfEntry, _ := k.Interrupts.Lookup(interrupt.VectorDoubleFault)
	if dfEntry.IST == 0 {
		t.Fatal("expected the double fault vector to use an IST stack")
	}
	if k.GDT.TSS.IST[dfEntry.IST-1] == 0 {
		t.Fatal("expected the double fault IST stack to be installed in the TSS")
	}

	if k.FirstFrame != &p.TrapFrame {
		t.Fatal("expected FirstFrame to be the first Running process's TrapFrame")
	}

	// getpid() through the syscall vector: rax=39, return value lands
	// back in the Running process's saved rax.
	p, _ = k.Scheduler.Process(pid)
	p.TrapFrame.RAX = 39
	syscallEntry.Handler(interrupt.VectorSyscall, interrupt.Frame{})
	p, _ = k.Scheduler.Process(pid)
	if p.TrapFrame.RAX != uint64(pid) {
		t.Fatalf("expected getpid() to return %d in rax, got %d", pid, p.TrapFrame.RAX)
	}

	// A tick shorter than the quantum must not trigger a switch.
	timerEntry.Handler(interrupt.VectorTimer, interrupt.Frame{})
	if cur, _ := k.Scheduler.CurrentPid(); cur != pid {
		t.Fatalf("expected %d to still be Running after one tick, got %d", pid, cur)
	}
}

func TestPageFaultHandlerDemandPagesTheRealFaultingAddress(t *testing.T) {
	buf := make([]byte, 512*physmem.FrameSize)
	physmem.SetPhysOffsetForTest(uintptr(unsafe.Pointer(&buf[0])))

	info := BootInfo{
		Regions:        []MemoryRegion{{Start: 0, End: physmem.PhysAddr(len(buf))}},
		KernelStackTop: 0x9000,
		Framebuffer:    fbcons.Descriptor{Base: make([]byte, 64), Width: 8, Height: 8, Stride: 8, BytesPerPixel: 1},
		InitProcesses:  []InitProcess{{Name: "init", BasePriority: 5}},
	}
	k := Init(info)

	pid, _ := k.Scheduler.CurrentPid()
	p, _ := k.Scheduler.Process(pid)
	// The real trampoline would have pushed a user-mode CS; stand that up
	// so Classify treats this as a demand-pageable user fault.
	p.TrapFrame.CS = uint64(cpu.SelUCode)

	pageFaultEntry, ok := k.Interrupts.Lookup(interrupt.VectorPageFault)
	if !ok {
		t.Fatal("expected the page fault vector to be registered")
	}

	const stackBase = 0x7100_0000_0000
	faultAddr := uintptr(stackBase + 0x100)
	pageFaultEntry.Handler(interrupt.VectorPageFault, interrupt.Frame{CR2: faultAddr})

	if cur, _ := k.Scheduler.CurrentPid(); cur != pid {
		t.Fatalf("expected the faulting process %d to still be Running after a resolvable fault, got %d", pid, cur)
	}
	page := faultAddr &^ (physmem.FrameSize - 1)
	if _, present := p.AddressSpace.Table.Lookup(page); !present {
		t.Fatal("expected the faulting page to be mapped after the handler ran")
	}
}

func TestPageFaultHandlerKillsOnAddressOutsideAnyVMA(t *testing.T) {
	buf := make([]byte, 512*physmem.FrameSize)
	physmem.SetPhysOffsetForTest(uintptr(unsafe.Pointer(&buf[0])))

	info := BootInfo{
		Regions:        []MemoryRegion{{Start: 0, End: physmem.PhysAddr(len(buf))}},
		KernelStackTop: 0x9000,
		Framebuffer:    fbcons.Descriptor{Base: make([]byte, 64), Width: 8, Height: 8, Stride: 8, BytesPerPixel: 1},
		InitProcesses: []InitProcess{
			{Name: "init", BasePriority: 5},
			{Name: "shell", BasePriority: 3},
		},
	}
	k := Init(info)

	pid, _ := k.Scheduler.CurrentPid()
	p, _ := k.Scheduler.Process(pid)
	p.TrapFrame.CS = uint64(cpu.SelUCode)

	pageFaultEntry, _ := k.Interrupts.Lookup(interrupt.VectorPageFault)
	pageFaultEntry.Handler(interrupt.VectorPageFault, interrupt.Frame{CR2: 0x1234})

	cur, ok := k.Scheduler.CurrentPid()
	if !ok || cur == pid {
		t.Fatalf("expected a fault outside any VMA to kill %d and switch away, got %d ok=%v", pid, cur, ok)
	}
}

func TestPageFaultHandlerPanicsOnKernelModeFault(t *testing.T) {
	buf := make([]byte, 512*physmem.FrameSize)
	physmem.SetPhysOffsetForTest(uintptr(unsafe.Pointer(&buf[0])))

	info := BootInfo{
		Regions:        []MemoryRegion{{Start: 0, End: physmem.PhysAddr(len(buf))}},
		KernelStackTop: 0x9000,
		Framebuffer:    fbcons.Descriptor{Base: make([]byte, 64), Width: 8, Height: 8, Stride: 8, BytesPerPixel: 1},
		InitProcesses:  []InitProcess{{Name: "init", BasePriority: 5}},
	}
	k := Init(info)

	pid, _ := k.Scheduler.CurrentPid()
	p, _ := k.Scheduler.Process(pid)
	// A ring-0 CS means the fault happened in kernel code; kernel bugs do
	// not demand-page.
	p.TrapFrame.CS = uint64(cpu.SelKCode)

	pageFaultEntry, _ := k.Interrupts.Lookup(interrupt.VectorPageFault)
	defer func() {
		if recover() == nil {
			t.Fatal("expected a kernel-mode page fault to panic")
		}
	}()
	pageFaultEntry.Handler(interrupt.VectorPageFault, interrupt.Frame{CR2: 0xfff0_0000_0000})
}

func TestInitPanicsWithNoMemoryRegions(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Init to panic with no usable memory regions")
		}
	}()
	Init(BootInfo{InitProcesses: []InitProcess{{Name: "x", BasePriority: 1}}})
}

func TestInitPanicsWithNoInitProcesses(t *testing.T) {
	buf := make([]byte, 512*physmem.FrameSize)
	physmem.SetPhysOffsetForTest(uintptr(unsafe.Pointer(&buf[0])))

	defer func() {
		if recover() == nil {
			t.Fatal("expected Init to panic with no init processes")
		}
	}()
	Init(BootInfo{Regions: []MemoryRegion{{Start: 0, End: physmem.PhysAddr(len(buf))}}})
}
