// Package physical implements a buddy allocator over one or more disjoint
// physical memory areas, handing out naturally-aligned, physically
// contiguous runs of page frames.
package physical

import (
	"github.com/lunakernel/pfnalloc/kernel/errors"
	"github.com/lunakernel/pfnalloc/kernel/kfmt"
	"github.com/lunakernel/pfnalloc/kernel/mem"
	"github.com/lunakernel/pfnalloc/kernel/mem/pfn"
	ksync "github.com/lunakernel/pfnalloc/kernel/sync"
)

// AreaMask selects a subset of initialized areas by bit position (bit n
// corresponds to area number n), used by AllocPagesArea/MemalignPagesArea
// to restrict allocation to address-constrained zones.
type AreaMask uint32

// AllAreas matches every initialized area, regardless of number.
const AllAreas AreaMask = ^AreaMask(0)

// AreaBit returns the single-area mask for area number n.
func AreaBit(n int) AreaMask { return AreaMask(1) << uint(n) }

// Allocator is the public, lock-protected entry point for the buddy
// allocator. The zero value is not usable; construct one with
// NewAllocator.
type Allocator struct {
	lock ksync.Spinlock

	areas           [MaxAreas]*Area
	initializedMask uint32
	presets         AreaPresets

	reservations map[string]Reservation

	enabled bool
}

// NewAllocator constructs an Allocator with no areas initialized and the
// default (empty) preset table.
func NewAllocator() *Allocator {
	return &Allocator{
		presets:      defaultPresets(),
		reservations: make(map[string]Reservation),
	}
}

// SetPresets installs the zone cutoff table used by area-number
// AreaAnyNumber dispatch (areaInitAuto). These are configuration inputs,
// not part of the algorithm.
func (al *Allocator) SetPresets(p AreaPresets) {
	al.lock.Acquire()
	defer al.lock.Release()
	al.presets = p
}

// AreaInit initializes area n to manage [start, top). Pass AreaAnyNumber
// for n to auto-partition the range across the configured presets instead.
func (al *Allocator) AreaInit(n int, start, top pfn.Frame) error {
	al.lock.Acquire()
	defer al.lock.Release()

	if n == AreaAnyNumber {
		return al.areaInitAuto(start, top)
	}
	return al.areaInit(n, start, top)
}

// freeBlock returns the block starting at p to its free list and
// coalesces upward. It asserts p is the head of an ALLOC block whose
// pages all agree on order; any violation is a programmer error and is
// fatal.
func freeBlock(a *Area, p pfn.Frame) {
	s := a.stateAt(p)
	if !s.isAlloc() {
		errors.Fatal("physical", "%s: pfn %d is not allocated (state=%08b)", errors.ErrPageNotAllocated, p, s)
	}
	order := s.order()
	n := pfn.Frame(1) << order
	if p+n > a.top {
		errors.Fatal("physical", "block at pfn %d order %d crosses the end of area [%d,%d)", p, order, a.base, a.top)
	}
	for q := p; q < p+n; q++ {
		if a.stateAt(q) != s {
			errors.Fatal("physical", "block at pfn %d order %d is not homogeneously allocated: pfn %d has state %08b, want %08b",
				p, order, q, a.stateAt(q), s)
		}
	}

	for q := p; q < p+n; q++ {
		a.setStateAt(q, freeState(order))
	}
	a.freelists[order].add(a.nodes, a.idx(p))

	coalesceUp(a, p)
}

// AllocPagesArea allocates 2^order naturally-aligned contiguous pages from
// the first area (lowest index) in mask & initializedMask that can satisfy
// the request.
func (al *Allocator) AllocPagesArea(mask AreaMask, order mem.PageOrder) (pfn.Frame, error) {
	if order > mem.MaxPageOrder {
		return pfn.InvalidFrame, errors.ErrInvalidParamValue
	}

	al.lock.Acquire()
	defer al.lock.Release()

	eligible := mask & AreaMask(al.initializedMask)
	if eligible == 0 {
		return pfn.InvalidFrame, errors.ErrOutOfMemory
	}

	for n := 0; n < MaxAreas; n++ {
		if eligible&AreaBit(n) == 0 {
			continue
		}
		if p, ok := pageMemalignOrder(al.areas[n], order, order); ok {
			return p, nil
		}
	}
	return pfn.InvalidFrame, errors.ErrOutOfMemory
}

// MemalignPagesArea translates a byte alignment/size request into page
// orders and dispatches exactly as AllocPagesArea:
// alignOrder = order_of(ceil(alignment/page_size)), sizeOrder =
// order_of(ceil(size/page_size)).
func (al *Allocator) MemalignPagesArea(mask AreaMask, alignmentBytes, sizeBytes mem.Size) (pfn.Frame, error) {
	if alignmentBytes == 0 || sizeBytes == 0 {
		return pfn.InvalidFrame, errors.ErrInvalidParamValue
	}

	alignPages := (uint64(alignmentBytes) + uint64(mem.PageSize) - 1) / uint64(mem.PageSize)
	sizePages := (uint64(sizeBytes) + uint64(mem.PageSize) - 1) / uint64(mem.PageSize)
	alignOrder := mem.OrderOf(alignPages)
	sizeOrder := mem.OrderOf(sizePages)

	if alignOrder > mem.MaxPageOrder || sizeOrder > mem.MaxPageOrder {
		return pfn.InvalidFrame, errors.ErrInvalidParamValue
	}

	al.lock.Acquire()
	defer al.lock.Release()

	eligible := mask & AreaMask(al.initializedMask)
	if eligible == 0 {
		return pfn.InvalidFrame, errors.ErrOutOfMemory
	}

	for n := 0; n < MaxAreas; n++ {
		if eligible&AreaBit(n) == 0 {
			continue
		}
		if p, ok := pageMemalignOrder(al.areas[n], alignOrder, sizeOrder); ok {
			return p, nil
		}
	}
	return pfn.InvalidFrame, errors.ErrOutOfMemory
}

// FreePages returns a previously allocated run of pages to the allocator.
// pfn.InvalidFrame is treated as a null pointer and is a no-op.
func (al *Allocator) FreePages(p pfn.Frame) {
	if p == pfn.InvalidFrame {
		return
	}

	al.lock.Acquire()
	defer al.lock.Release()

	a := al.getArea(p)
	if a == nil {
		errors.Fatal("physical", "FreePages: pfn %d is not owned by any initialized area", p)
	}
	freeBlock(a, p)
}

// Enable marks this Allocator as the active page allocator and logs it.
// It asserts at least one area is present. It does not install any
// process-wide allocator hook; wiring it into an actual runtime allocator
// trampoline is left to the caller.
func (al *Allocator) Enable() error {
	al.lock.Acquire()
	defer al.lock.Release()

	if al.initializedMask == 0 {
		errors.Fatal("physical", "Enable called with no areas initialized")
	}
	al.enabled = true
	kfmt.Printf("[physical] enabled as the active page allocator (%d area(s))\n", popcount(al.initializedMask))
	return nil
}

// Enabled reports whether Enable has been called.
func (al *Allocator) Enabled() bool {
	al.lock.Acquire()
	defer al.lock.Release()
	return al.enabled
}

func popcount(x uint32) int {
	n := 0
	for x != 0 {
		n += int(x & 1)
		x >>= 1
	}
	return n
}
