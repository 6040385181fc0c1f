// Package profdev implements /dev/prof, a read-only device that
// serializes the buddy and slab allocators' counters as a pprof
// profile.Profile, so the allocators can be inspected from user space
// with stock pprof tooling.
package profdev

import (
	"bytes"
	"time"

	"github.com/google/pprof/profile"

	"nanokern/kernel/defs"
	"nanokern/kernel/fdtable"
	"nanokern/kernel/physmem"
	"nanokern/kernel/slab"
)

// Counters is the snapshot source /dev/prof reads from; the boot
// orchestrator wires this to the live allocators.
type Counters struct {
	Buddy *physmem.BuddyAllocator
	Slab  *slab.Allocator
}

var active *Counters

// SetCounters installs the allocators this device reports on.
func SetCounters(c *Counters) { active = c }

// buildProfile renders one snapshot sample per counter: buddy outstanding
// bytes, and per-size-class slab used bytes.
func buildProfile() *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "bytes", Unit: "bytes"}},
		TimeNanos:  time.Now().UnixNano(),
	}
	if active == nil {
		return p
	}
	buddyFn := &profile.Function{ID: 1, Name: "buddy_allocator"}
	slabFn := &profile.Function{ID: 2, Name: "slab_allocator"}
	buddyLoc := &profile.Location{ID: 1, Line: []profile.Line{{Function: buddyFn}}}
	slabLoc := &profile.Location{ID: 2, Line: []profile.Line{{Function: slabFn}}}
	p.Function = []*profile.Function{buddyFn, slabFn}
	p.Location = []*profile.Location{buddyLoc, slabLoc}

	added, free := active.Buddy.Stats()
	p.Sample = append(p.Sample, &profile.Sample{
		Location: []*profile.Location{buddyLoc},
		Value:    []int64{int64(added - free)},
		Label:    map[string][]string{"counter": {"buddy_outstanding_bytes"}},
	})
	for _, c := range active.Slab.Classes() {
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{slabLoc},
			Value:    []int64{int64(c.Used * c.Size)},
			Label:    map[string][]string{"counter": {"slab_used_bytes"}},
			NumLabel: map[string][]int64{"object_size": {int64(c.Size)}},
		})
	}
	return p
}

type handle struct{}

// Read renders the current snapshot as a gzip-compressed pprof profile
// and copies as much as fits into buf.
func (handle) Read(buf []byte) (int, defs.Err_t) {
	var out bytes.Buffer
	if err := buildProfile().Write(&out); err != nil {
		return 0, defs.EIO
	}
	return copy(buf, out.Bytes()), 0
}

func (handle) Write(buf []byte) (int, defs.Err_t) { return 0, defs.EPERM }
func (handle) Close() defs.Err_t                  { return 0 }
func (handle) Name() string                       { return fdtable.PathProf }

func init() {
	fdtable.Registry.Register(fdtable.PathProf, func() fdtable.FileHandle { return handle{} })
}
