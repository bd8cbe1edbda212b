package physical

// sentinelIdx marks the end of a free list: a node whose prev/next equals
// sentinelIdx is adjacent to the list header rather than another block.
//
// This module has no mapped physical memory to host an intrusive node
// inside a free page's own bytes, so the abstraction here is a per-area
// table of nodes indexed by relative pfn (pfn - area.base): each
// potential block-start page owns exactly one node slot, reused across
// splits/coalesces/reservations. Insert/remove remain O(1) given a pfn.
const sentinelIdx = -1

// node is the intrusive free-list linkage for one page-aligned slot.
type node struct {
	prev, next int64
}

// freeList is a circular doubly-linked list with a sentinel header,
// holding the free blocks of one order within one area.
type freeList struct {
	// head/tail are relative-pfn indices of the first/last linked block,
	// or sentinelIdx when the list is empty.
	head, tail int64
}

func newFreeList() freeList {
	return freeList{head: sentinelIdx, tail: sentinelIdx}
}

// empty reports whether the list has no linked blocks. O(1).
func (l *freeList) empty() bool {
	return l.head == sentinelIdx
}

// add prepends the block starting at relative index idx. O(1).
func (l *freeList) add(nodes []node, idx int64) {
	nodes[idx].prev = sentinelIdx
	nodes[idx].next = l.head
	if l.head != sentinelIdx {
		nodes[l.head].prev = idx
	} else {
		l.tail = idx
	}
	l.head = idx
}

// remove unlinks the block at relative index idx. O(1).
func (l *freeList) remove(nodes []node, idx int64) {
	prev, next := nodes[idx].prev, nodes[idx].next
	if prev == sentinelIdx {
		l.head = next
	} else {
		nodes[prev].next = next
	}
	if next == sentinelIdx {
		l.tail = prev
	} else {
		nodes[next].prev = prev
	}
	nodes[idx].prev, nodes[idx].next = sentinelIdx, sentinelIdx
}

// peekHead returns the relative index of the first linked block and true,
// or (0, false) if the list is empty.
func (l *freeList) peekHead(nodes []node) (int64, bool) {
	if l.empty() {
		return 0, false
	}
	return l.head, true
}
