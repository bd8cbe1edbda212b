package physical

import (
	"github.com/lunakernel/pfnalloc/kernel/errors"
	"github.com/lunakernel/pfnalloc/kernel/mem"
)

// pageState is the one-byte-per-page metadata entry: bits 0-5 hold the
// block order (0..63), bit 6 is ALLOC, bit 7 is SPECIAL. Exactly one of
// {in free list, ALLOC, SPECIAL} holds for any page whose order field is
// defined (invariant I7 for SPECIAL, I4 for free-list membership).
type pageState uint8

const (
	orderMask  pageState = 0x3F
	allocBit   pageState = 1 << 6
	specialBit pageState = 1 << 7
	// maxOrderBit is the largest order the 6-bit order field can hold.
	maxOrderBit = 63
)

func checkOrderFits(order mem.PageOrder) {
	if order > maxOrderBit {
		errors.Fatal("physical", "order %d does not fit the page state's 6-bit order field (max %d)", order, maxOrderBit)
	}
}

func freeState(order mem.PageOrder) pageState {
	checkOrderFits(order)
	return pageState(order) & orderMask
}

func allocState(order mem.PageOrder) pageState {
	checkOrderFits(order)
	return (pageState(order) & orderMask) | allocBit
}

func specialState() pageState {
	return specialBit
}

func (s pageState) order() mem.PageOrder {
	return mem.PageOrder(s & orderMask)
}

func (s pageState) isAlloc() bool {
	return s&allocBit != 0
}

func (s pageState) isSpecial() bool {
	return s&specialBit != 0
}

// isFree reports whether the page is neither ALLOC nor SPECIAL, i.e. its
// order field identifies a block that should be linked into a free list
// (invariant I4).
func (s pageState) isFree() bool {
	return s&(allocBit|specialBit) == 0
}

func (s pageState) withOrder(order mem.PageOrder) pageState {
	checkOrderFits(order)
	return (s &^ orderMask) | (pageState(order) & orderMask)
}
