// Package mem defines the page geometry and size helpers shared by the
// physical allocator.
package mem

import "unsafe"

// Size represents a quantity of bytes.
type Size uint64

// Byte-multiple constants, used throughout the allocator for readable
// size arithmetic.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// PageShift is the base-2 logarithm of PageSize. A 4KB page size is the
// near-universal default for the target platforms this allocator is meant
// to run on.
const PageShift = 12

// PageSize is the platform page size in bytes.
const PageSize Size = 1 << PageShift

// PageOrder identifies a power-of-two run of pages: a block of order k
// covers 2^k contiguous pages.
type PageOrder uint8

// MaxPageOrder is the number of bits in a machine word minus the page
// shift, i.e. the largest order a pfn difference can represent. The
// per-page metadata byte defined in kernel/mem/physical reserves 6 bits
// for the order field, which additionally bounds MaxPageOrder <= 63; we
// assert that bound explicitly at init, although the pointer-width
// derivation below (52 with 64-bit pointers) already stays within it.
const MaxPageOrder PageOrder = 8*PageOrder(unsafe.Sizeof(uintptr(0))) - PageShift

func init() {
	if MaxPageOrder > 63 {
		panic("mem: MaxPageOrder exceeds the 6-bit order field of the page state byte")
	}
}

// Pages returns the number of whole pages s spans, rounding down.
func (s Size) Pages() uint64 {
	return uint64(s / PageSize)
}

// Align rounds addr up to the next multiple of alignment, which must be a
// power of two.
func Align(addr uint64, alignment Size) uint64 {
	a := uint64(alignment)
	return (addr + a - 1) &^ (a - 1)
}

// OrderOf returns the smallest k such that 2^k >= x. Used to translate
// byte alignment/size requests into page orders.
func OrderOf(x uint64) PageOrder {
	var k PageOrder
	for (uint64(1) << k) < x {
		k++
	}
	return k
}
