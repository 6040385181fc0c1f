// Package zero implements /dev/zero: reads fill the caller's buffer with
// zero bytes, writes are discarded.
package zero

import (
	"nanokern/kernel/defs"
	"nanokern/kernel/fdtable"
)

type handle struct{}

func (handle) Read(buf []byte) (int, defs.Err_t) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), 0
}

func (handle) Write(buf []byte) (int, defs.Err_t) { return len(buf), 0 }
func (handle) Close() defs.Err_t                  { return 0 }
func (handle) Name() string                       { return fdtable.PathZero }

func init() {
	fdtable.Registry.Register(fdtable.PathZero, func() fdtable.FileHandle { return handle{} })
}
