// Package pfn defines the page frame number type shared by the physical
// allocator, mirroring the Frame type used by the gopher-os/goose bootmem
// and bitmap allocators.
package pfn

import "github.com/lunakernel/pfnalloc/kernel/mem"

// Frame is a physical page frame number: a physical address divided by
// the page size.
type Frame uint64

// InvalidFrame is returned by lookups that fail to locate a frame.
const InvalidFrame Frame = 1<<64 - 1

// Address returns the physical address of the first byte of the frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}

// FromAddress returns the frame containing the given physical address.
func FromAddress(addr uintptr) Frame {
	return Frame(addr >> mem.PageShift)
}
