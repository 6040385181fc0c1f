// Package fdtable implements the per-process file descriptor table and
// the static device driver registry: a fixed-size array of open handles
// plus a (path -> constructor) table.
package fdtable

import "nanokern/kernel/defs"

// FileHandle is the capability set a device exposes: anything supporting
// read, write, and close can sit in a descriptor slot.
type FileHandle interface {
	Read(buf []byte) (int, defs.Err_t)
	Write(buf []byte) (int, defs.Err_t)
	Close() defs.Err_t
	Name() string
}

// MaxFiles bounds the per-process FD array.
const MaxFiles = 16

// FileTable is a process's fixed-size array of open file handles.
type FileTable struct {
	files [MaxFiles]FileHandle
}

// New returns an empty FileTable (no default descriptors installed).
func New() *FileTable { return &FileTable{} }

// Get returns the handle at fd, or (nil, EBADF) if fd is out of range or
// closed.
func (t *FileTable) Get(fd int) (FileHandle, defs.Err_t) {
	if fd < 0 || fd >= MaxFiles || t.files[fd] == nil {
		return nil, defs.EBADF
	}
	return t.files[fd], 0
}

// Install places h at the lowest free descriptor and returns it, or
// -1/ENOMEM if the table is full.
func (t *FileTable) Install(h FileHandle) (int, defs.Err_t) {
	for fd, cur := range t.files {
		if cur == nil {
			t.files[fd] = h
			return fd, 0
		}
	}
	return -1, defs.ENOMEM
}

// Close closes and clears fd.
func (t *FileTable) Close(fd int) defs.Err_t {
	h, err := t.Get(fd)
	if err != 0 {
		return err
	}
	t.files[fd] = nil
	return h.Close()
}

// NewDefault builds a FileTable with the three standard descriptors:
// 0 = /dev/null, 1 = /dev/console, 2 = /dev/console.
func NewDefault() *FileTable {
	t := New()
	t.files[0] = Registry.mustOpen(PathNull)
	t.files[1] = Registry.mustOpen(PathConsole)
	t.files[2] = Registry.mustOpen(PathConsole)
	return t
}
