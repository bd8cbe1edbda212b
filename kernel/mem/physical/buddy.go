package physical

import (
	"github.com/lunakernel/pfnalloc/kernel/errors"
	"github.com/lunakernel/pfnalloc/kernel/mem"
	"github.com/lunakernel/pfnalloc/kernel/mem/pfn"
)

// split halves a free block of order k >= 1, producing two free blocks of
// order k-1. The caller must hold the allocator lock and block must
// already be linked in a.freelists[k].
func split(a *Area, block pfn.Frame) {
	k := a.stateAt(block).order()
	if k == 0 {
		errors.Fatal("physical", "split called on order-0 block at pfn %d", block)
	}
	assertBlockHomogeneous(a, block, k)

	a.freelists[k].remove(a.nodes, a.idx(block))

	half := pfn.Frame(1) << (k - 1)
	buddy := block + half

	setBlockOrder(a, block, k, k-1)
	setBlockOrder(a, buddy, k, k-1)

	// block (the leftmost half) must remain at the head of the next-lower
	// free list so callers that hold its pfn across a split (e.g.
	// pageMemalignOrder, reserveOne) keep finding it there; add() prepends,
	// so the buddy goes in first.
	a.freelists[k-1].add(a.nodes, a.idx(buddy))
	a.freelists[k-1].add(a.nodes, a.idx(block))
}

// setBlockOrder rewrites the order field for every page of a 2^oldOrder
// block to newOrder, preserving the (assumed identical) flag bits.
func setBlockOrder(a *Area, start pfn.Frame, oldOrder, newOrder mem.PageOrder) {
	n := pfn.Frame(1) << oldOrder
	for p := start; p < start+n; p++ {
		a.setStateAt(p, a.stateAt(p).withOrder(newOrder))
	}
}

// assertBlockHomogeneous checks invariant I2: every page of the block
// starting at p with the given order carries the same order and flags.
func assertBlockHomogeneous(a *Area, p pfn.Frame, order mem.PageOrder) {
	want := a.stateAt(p)
	n := pfn.Frame(1) << order
	for q := p; q < p+n; q++ {
		if a.stateAt(q) != want {
			errors.Fatal("physical", "block at pfn %d order %d is not homogeneous: pfn %d has state %08b, want %08b",
				p, order, q, a.stateAt(q), want)
		}
	}
}

// coalesce attempts to merge the order-`order` buddies at p1 and p2 (p2 =
// p1 + 2^order) into a single order+1 block. It returns false without
// mutating anything if either buddy is outside the area's usable region,
// their order fields differ from `order`, or either is non-free.
func coalesce(a *Area, order mem.PageOrder, p1, p2 pfn.Frame) bool {
	if !a.containsUsablePfn(p1) || !a.containsUsablePfn(p2) {
		return false
	}
	s1, s2 := a.stateAt(p1), a.stateAt(p2)
	if s1.order() != order || s2.order() != order {
		return false
	}
	if !s1.isFree() || !s2.isFree() {
		return false
	}

	a.freelists[order].remove(a.nodes, a.idx(p1))
	a.freelists[order].remove(a.nodes, a.idx(p2))

	setBlockOrder(a, p1, order, order+1)
	setBlockOrder(a, p2, order, order+1)

	a.freelists[order+1].add(a.nodes, a.idx(p1))
	return true
}

// coalesceUp repeatedly coalesces the block starting at p (known order)
// upward for as long as possible, re-reading the order from metadata each
// iteration since it may have grown, and folding leftward when the
// current block is not (order+1)-aligned.
func coalesceUp(a *Area, p pfn.Frame) {
	for {
		order := a.stateAt(p).order()
		if order >= mem.MaxPageOrder {
			return
		}
		blockLen := pfn.Frame(1) << order
		var buddy, left pfn.Frame
		if (uint64(p)>>order)&1 == 0 {
			buddy = p + blockLen
			left = p
		} else {
			buddy = p - blockLen
			left = buddy
		}
		if !coalesce(a, order, minFrame(p, buddy), maxFrame(p, buddy)) {
			return
		}
		p = left
	}
}

func minFrame(a, b pfn.Frame) pfn.Frame {
	if a < b {
		return a
	}
	return b
}

func maxFrame(a, b pfn.Frame) pfn.Frame {
	if a > b {
		return a
	}
	return b
}

// pageMemalignOrder finds a block of order >= max(alignmentOrder,
// sizeOrder) within area a, splits it down to exactly sizeOrder, marks it
// ALLOC, and returns its starting pfn. It returns (0, false) if no
// sufficiently large free block exists.
func pageMemalignOrder(a *Area, alignmentOrder, sizeOrder mem.PageOrder) (pfn.Frame, bool) {
	start := alignmentOrder
	if sizeOrder > start {
		start = sizeOrder
	}
	if start > mem.MaxPageOrder {
		return 0, false
	}

	found := -1
	for o := int(start); o <= int(mem.MaxPageOrder); o++ {
		if !a.freelists[o].empty() {
			found = o
			break
		}
	}
	if found == -1 {
		return 0, false
	}

	idx, _ := a.freelists[found].peekHead(a.nodes)
	p := a.base + pfn.Frame(idx)

	for mem.PageOrder(found) > sizeOrder {
		split(a, p)
		found--
	}

	a.freelists[sizeOrder].remove(a.nodes, a.idx(p))
	setAllocated(a, p, sizeOrder)

	return p, true
}

func setAllocated(a *Area, p pfn.Frame, order mem.PageOrder) {
	n := pfn.Frame(1) << order
	for q := p; q < p+n; q++ {
		a.setStateAt(q, allocState(order))
	}
}
