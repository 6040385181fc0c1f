package interrupt

import "testing"

func TestRegisterAndDispatch(t *testing.T) {
	var tbl Table
	called := false
	tbl.Register(VectorTimer, func(v int, f Frame) {
		called = true
		if v != VectorTimer {
			t.Fatalf("vector = %d want %d", v, VectorTimer)
		}
	}, 0x08, 0, 0)

	tbl.Dispatch(VectorTimer, Frame{})
	if !called {
		t.Fatal("handler not invoked")
	}
}

func TestDispatchPassesFrame(t *testing.T) {
	var tbl Table
	var got Frame
	tbl.Register(VectorPageFault, func(v int, f Frame) {
		got = f
	}, 0x08, 0, 0)

	want := Frame{CR2: 0x7100_0000_1000, ErrorCode: 0x2}
	tbl.Dispatch(VectorPageFault, want)
	if got != want {
		t.Fatalf("frame = %+v want %+v", got, want)
	}
}

func TestDispatchUnregisteredPanics(t *testing.T) {
	var tbl Table
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unregistered vector")
		}
	}()
	tbl.Dispatch(VectorKeyboard, Frame{})
}

func TestDoubleFaultRequiresIST(t *testing.T) {
	var tbl Table
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when IST is 0 for double fault")
		}
	}()
	tbl.RegisterDoubleFault(func(int, Frame) {}, 0x08, 0)
}

func TestDoubleFaultWithIST(t *testing.T) {
	var tbl Table
	tbl.RegisterDoubleFault(func(int, Frame) {}, 0x08, 1)
	e, ok := tbl.Lookup(VectorDoubleFault)
	if !ok || e.IST != 1 {
		t.Fatalf("entry = %+v ok=%v", e, ok)
	}
}

func TestSyscallVectorDPL3(t *testing.T) {
	var tbl Table
	tbl.Register(VectorSyscall, func(int, Frame) {}, 0x08, 3, 0)
	e, _ := tbl.Lookup(VectorSyscall)
	if e.DPL != 3 {
		t.Fatalf("DPL = %d want 3", e.DPL)
	}
}
