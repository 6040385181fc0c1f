// Package fbcons implements /dev/fb: a framebuffer console FileHandle
// that writes raw pixel rows into the bootloader-supplied framebuffer.
// The rasterizer (glyph rendering) lives elsewhere; this driver owns the
// byte-level write contract plus glyph-width accounting for anything
// that does render text into it, since a monospace-assuming console
// misaligns wide runes.
package fbcons

import (
	"golang.org/x/text/width"

	"nanokern/kernel/defs"
	"nanokern/kernel/fdtable"
)

// Descriptor is the bootloader's framebuffer contract: base address
// (already in the PhysOffset-mapped region, or a separate MMIO window;
// either way this driver treats it as an opaque byte slice),
// width/height in pixels, stride in bytes, and bytes per pixel.
type Descriptor struct {
	Base          []byte
	Width, Height int
	Stride        int
	BytesPerPixel int
}

var active *Descriptor

// SetDescriptor installs the framebuffer the boot orchestrator received
// from the bootloader handshake.
func SetDescriptor(d *Descriptor) { active = d }

type handle struct{}

func (handle) Read(buf []byte) (int, defs.Err_t) { return 0, defs.ENOSYS }

// Write copies buf into the framebuffer starting at its first byte,
// truncating to whatever fits. This is the raw byte sink a rasterizer
// built on top would use.
func (handle) Write(buf []byte) (int, defs.Err_t) {
	if active == nil {
		return 0, defs.EIO
	}
	n := copy(active.Base, buf)
	return n, 0
}

func (handle) Close() defs.Err_t { return 0 }
func (handle) Name() string      { return fdtable.PathFB }

// GlyphColumns reports how many fixed-width console columns s occupies,
// accounting for wide (e.g. CJK) runes the way a framebuffer text
// console must to keep cursor math correct.
func GlyphColumns(s string) int {
	cols := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			cols += 2
		default:
			cols++
		}
	}
	return cols
}

func init() {
	fdtable.Registry.Register(fdtable.PathFB, func() fdtable.FileHandle { return handle{} })
}
