// Package stats implements the kernel's compile-time-gated diagnostic
// counters: a Counter_t/Cycles_t pair that compile down to no-ops when
// the Enabled constant is false, and a reflection-driven Stats2String for
// dumping any struct of them.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
)

// Enabled gates whether Counter_t/Cycles_t actually count anything. Flip
// it at build time, never at runtime, so the zero-cost path is the
// default.
const Enabled = false

// Counter_t is a statistical counter; Inc is a no-op unless Enabled.
type Counter_t int64

// Cycles_t accumulates elapsed cycle counts; Add is a no-op unless Enabled.
type Cycles_t int64

// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	if Enabled {
		atomic.AddInt64((*int64)(c), 1)
	}
}

// Add adds delta to the cycle counter.
func (c *Cycles_t) Add(delta int64) {
	if Enabled {
		atomic.AddInt64((*int64)(c), delta)
	}
}

// Stats2String renders every Counter_t/Cycles_t field of st as a labeled
// line, so any per-component counters struct (scheduler tick counts,
// buddy alloc/free counts, ...) gets a String() without per-field
// boilerplate.
func Stats2String(st interface{}) string {
	if !Enabled {
		return ""
	}
	v := reflect.ValueOf(st)
	var s strings.Builder
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		switch {
		case strings.HasSuffix(t, "Counter_t"):
			n := v.Field(i).Interface().(Counter_t)
			s.WriteString("\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10))
		case strings.HasSuffix(t, "Cycles_t"):
			n := v.Field(i).Interface().(Cycles_t)
			s.WriteString("\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10))
		}
	}
	s.WriteString("\n")
	return s.String()
}
