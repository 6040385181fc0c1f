package fdtable

import (
	"sync"

	"nanokern/kernel/defs"
)

// Device paths.
const (
	PathNull    = "/dev/null"
	PathZero    = "/dev/zero"
	PathConsole = "/dev/console"
	PathFB      = "/dev/fb"
	PathProf    = "/dev/prof"
)

// Constructor builds a fresh FileHandle for one device path. Each open()
// call gets its own handle instance.
type Constructor func() FileHandle

// driverRegistry is the static (path -> constructor) table. Device
// packages register themselves from an init() function (see
// kernel/driver/*), so adding a new driver is one Register call; no edit
// to this file is needed.
type driverRegistry struct {
	mu    sync.Mutex
	table map[string]Constructor
}

// Registry is the process-wide DriverRegistry singleton.
var Registry = &driverRegistry{table: make(map[string]Constructor)}

// Register adds a (path, constructor) pair. Called from driver package
// init()s; panics on a duplicate path since that is a build-time wiring
// bug, not a runtime condition.
func (r *driverRegistry) Register(path string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.table[path]; dup {
		panic("fdtable: duplicate driver registration for " + path)
	}
	r.table[path] = ctor
}

// Open looks up path and returns a freshly constructed handle, or
// (nil, ENOENT) if no driver is registered for it.
func (r *driverRegistry) Open(path string) (FileHandle, defs.Err_t) {
	r.mu.Lock()
	ctor, ok := r.table[path]
	r.mu.Unlock()
	if !ok {
		return nil, defs.ENOENT
	}
	return ctor(), 0
}

// mustOpen is used only for the three always-present standard
// descriptors; a missing /dev/null or /dev/console at boot is a fatal
// wiring bug, not an errno anybody can act on.
func (r *driverRegistry) mustOpen(path string) FileHandle {
	h, err := r.Open(path)
	if err != 0 {
		panic("fdtable: required driver missing: " + path)
	}
	return h
}
