package cpu

import "testing"

func TestSetKernelStack(t *testing.T) {
	var tss TSS
	tss.SetKernelStack(0xdead_0000)
	if tss.RSP0 != 0xdead_0000 {
		t.Fatalf("RSP0 = %#x", tss.RSP0)
	}
}

func TestSetISTRange(t *testing.T) {
	var tss TSS
	tss.SetIST(1, 0x1000)
	tss.SetIST(7, 0x7000)
	if tss.IST[0] != 0x1000 || tss.IST[6] != 0x7000 {
		t.Fatalf("IST = %+v", tss.IST)
	}
}

func TestSetISTOutOfRangePanics(t *testing.T) {
	var tss TSS
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	tss.SetIST(0, 0x1000)
}

func TestUserSelectorsCarryRPL3(t *testing.T) {
	if SelUCode&3 != 3 || SelUData&3 != 3 {
		t.Fatal("user selectors must request RPL 3")
	}
	if SelKCode&3 != 0 || SelKData&3 != 0 {
		t.Fatal("kernel selectors must request RPL 0")
	}
}
