package console

import (
	"testing"

	"nanokern/kernel/fdtable"
	"nanokern/kernel/ioport"
)

// TestWriteSendsBytesToCOM1 checks that writing "hello" through the
// console device sends exactly those bytes out COM1.
func TestWriteSendsBytesToCOM1(t *testing.T) {
	ioport.Sim.Reset()
	ioport.Sim.SetReadValue(COM1+lineStatusOffset, txReadyBit)

	h, err := fdtable.Registry.Open(fdtable.PathConsole)
	if err != 0 {
		t.Fatalf("open console: %v", err)
	}
	n, err := h.Write([]byte("hello"))
	if err != 0 || n != 5 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}

	got := ioport.Sim.Written(COM1)
	want := "hello"
	if string(got) != want {
		t.Fatalf("COM1 received %q want %q", got, want)
	}
}
