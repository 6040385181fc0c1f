// Package null implements /dev/null: writes are discarded, reads return
// EOF (0 bytes, no error).
package null

import (
	"nanokern/kernel/defs"
	"nanokern/kernel/fdtable"
)

type handle struct{}

func (handle) Read(buf []byte) (int, defs.Err_t)  { return 0, 0 }
func (handle) Write(buf []byte) (int, defs.Err_t) { return len(buf), 0 }
func (handle) Close() defs.Err_t                  { return 0 }
func (handle) Name() string                       { return fdtable.PathNull }

func init() {
	fdtable.Registry.Register(fdtable.PathNull, func() fdtable.FileHandle { return handle{} })
}
