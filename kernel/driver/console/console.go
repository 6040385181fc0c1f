// Package console implements /dev/console, a serial console FileHandle
// that writes to COM1 (0x3F8) one byte at a time through the kernel's
// port-I/O seam.
package console

import (
	"nanokern/kernel/defs"
	"nanokern/kernel/fdtable"
	"nanokern/kernel/ioport"
)

// COM1 is the standard PC serial port base I/O address.
const COM1 = 0x3F8

const lineStatusOffset = 5
const txReadyBit = 0x20

type handle struct{}

// Read from the console is unsupported in this kernel: there is no
// keyboard-backed stdin wiring at the FileHandle level, scancodes arrive
// via the keyboard ring instead.
func (handle) Read(buf []byte) (int, defs.Err_t) { return 0, defs.ENOSYS }

// Write sends each byte out COM1, polling the line-status register's
// transmit-ready bit before each byte, the conventional PC serial
// handshake.
func (handle) Write(buf []byte) (int, defs.Err_t) {
	for _, b := range buf {
		for ioport.In(COM1+lineStatusOffset)&txReadyBit == 0 {
		}
		ioport.Out(COM1, b)
	}
	return len(buf), 0
}

func (handle) Close() defs.Err_t { return 0 }
func (handle) Name() string      { return fdtable.PathConsole }

func init() {
	fdtable.Registry.Register(fdtable.PathConsole, func() fdtable.FileHandle { return handle{} })
}
