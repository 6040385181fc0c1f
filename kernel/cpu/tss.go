// Package cpu implements the single statically-allocated TSS and the
// fixed GDT selector set. The byte-level descriptor encodings the CPU
// consumes are the loader's concern; this package owns the values other
// components mutate and reference by name.
package cpu

// NumIST is the number of IST stack slots a TSS carries.
const NumIST = 7

// TSS holds RSP0 (the kernel stack used on ring-3 -> ring-0 transitions)
// and the seven IST stacks used by vectors that request one via
// interrupt.Entry.IST.
type TSS struct {
	RSP0 uintptr
	IST  [NumIST]uintptr
}

// SetKernelStack rewrites RSP0 to point at the top of the given kernel
// stack. Called with interrupts disabled from the scheduler on every
// context switch; safe without a lock because no other agent writes the
// TSS on a single logical CPU.
func (t *TSS) SetKernelStack(top uintptr) { t.RSP0 = top }

// SetIST installs the top of an IST stack at the given 1-based index
// (matching the IDT entry's IST field convention: 0 means "don't use an
// IST", 1..7 index into this array at [index-1]).
func (t *TSS) SetIST(index int, top uintptr) {
	if index < 1 || index > NumIST {
		panic("cpu: IST index out of range")
	}
	t.IST[index-1] = top
}

// SegSelector is a GDT segment selector value: index<<3 | RPL.
type SegSelector uint16

// The GDT has six slots: null, kernel code, kernel data, user code
// (DPL=3), user data (DPL=3), and the TSS descriptor. Indices below
// match the GDT slot each selector occupies.
const (
	SelNull  SegSelector = 0 << 3
	SelKCode SegSelector = 1 << 3
	SelKData SegSelector = 2 << 3
	SelUCode SegSelector = (3 << 3) | 3 // RPL 3: user code, DPL=3
	SelUData SegSelector = (4 << 3) | 3 // RPL 3: user data, DPL=3
	SelTSS   SegSelector = 5 << 3
)

// GDT is the statically-allocated descriptor table. Descriptor contents
// (base/limit/access byte encoding) are left to the loader; this type
// exists to give TSS.RSP0 updates and the fixed selector set a single
// owner other components can reference by name.
type GDT struct {
	TSS *TSS
}

// NewGDT builds the standard five-entry layout around tss.
func NewGDT(tss *TSS) *GDT { return &GDT{TSS: tss} }
