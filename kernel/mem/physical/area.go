package physical

import (
	"github.com/lunakernel/pfnalloc/kernel/errors"
	"github.com/lunakernel/pfnalloc/kernel/kfmt"
	"github.com/lunakernel/pfnalloc/kernel/mem"
	"github.com/lunakernel/pfnalloc/kernel/mem/pfn"
)

// Area is a disjoint physical range managed independently, with its own
// self-hosted metadata table and one free list per order.
type Area struct {
	number int

	// start is the first pfn of the area, including the metadata table
	// pages. base is the first usable pfn, i.e. start + tablePages. top
	// is the first pfn past the end of the area.
	start, base, top pfn.Frame

	// pageStates holds one byte per usable page, indexed by pfn - base
	// (invariant I1: the tablePages pages in [start, base) are not
	// tracked as allocatable and have no entry here).
	pageStates []pageState

	// nodes is the intrusive free-list node table, parallel to
	// pageStates; see list.go for why this table stands in for writing
	// node pointers into free page contents.
	nodes []node

	freelists [mem.MaxPageOrder + 1]freeList
}

// usablePages returns the number of allocatable pages in the area.
func (a *Area) usablePages() int64 {
	return int64(a.top - a.base)
}

// containsPfn is the permissive overlap predicate: it accepts pfns inside
// the metadata table region as well as the usable region. This is the
// same [start, top) span that areaInit's disjointness check compares
// through rangesOverlap.
func (a *Area) containsPfn(p pfn.Frame) bool {
	return p >= a.start && p < a.top
}

// containsUsablePfn is the strict predicate used by every allocation path:
// it rejects the metadata table pages. Keep this distinct from
// containsPfn; collapsing the two would let an allocation land on the
// metadata table itself.
func (a *Area) containsUsablePfn(p pfn.Frame) bool {
	return p >= a.base && p < a.top
}

func (a *Area) idx(p pfn.Frame) int64 {
	return int64(p - a.base)
}

func (a *Area) stateAt(p pfn.Frame) pageState {
	return a.pageStates[a.idx(p)]
}

func (a *Area) setStateAt(p pfn.Frame, s pageState) {
	a.pageStates[a.idx(p)] = s
}

// tablePages computes the number of metadata-table pages a region of
// [start, top) requires: the smallest t such that (top-start-t) <=
// t*pageSize, i.e. one metadata byte per usable page with the table
// itself living in the region's first t pages.
func tablePages(start, top pfn.Frame) int64 {
	span := int64(top - start)
	denom := int64(mem.PageSize) + 1
	return (span + denom - 1) / denom
}

// areaInit initializes area slot n to manage [startPfn, topPfn).
// Preconditions: slot n must be free, the new range disjoint from every
// other initialized area (including their metadata regions), and the
// usable span must exceed 4 pages.
func (al *Allocator) areaInit(n int, startPfn, topPfn pfn.Frame) error {
	if n < 0 || n >= MaxAreas {
		return errors.ErrInvalidParamValue
	}
	if al.initializedMask&(1<<uint(n)) != 0 {
		errors.Fatal("physical", "area %d is already initialized", n)
	}
	if topPfn <= startPfn {
		return errors.ErrInvalidParamValue
	}

	t := tablePages(startPfn, topPfn)
	base := startPfn + pfn.Frame(t)
	if topPfn-base <= 4 {
		errors.Fatal("physical", "area %d range [%d,%d) is too small to host its own metadata table", n, startPfn, topPfn)
	}

	for i, other := range al.areas {
		if !al.present(i) || other == nil {
			continue
		}
		if rangesOverlap(startPfn, topPfn, other.start, other.top) {
			errors.Fatal("physical", "area %d [%d,%d) overlaps initialized area %d [%d,%d)", n, startPfn, topPfn, i, other.start, other.top)
		}
	}

	a := &Area{
		number:     n,
		start:      startPfn,
		base:       base,
		top:        topPfn,
		pageStates: make([]pageState, topPfn-base),
		nodes:      make([]node, topPfn-base),
	}
	for o := range a.freelists {
		a.freelists[o] = newFreeList()
	}

	seedFreeLists(a)

	al.areas[n] = a
	al.initializedMask |= 1 << uint(n)

	st := a.stats()
	kfmt.Printf("[physical] area %d: table=[%d,%d) usable=[%d,%d) free=%d alloc=%d reserved=%d\n",
		n, startPfn, base, base, topPfn, st.FreePages, st.AllocatedPages, st.ReservedPages)

	return nil
}

func rangesOverlap(aStart, aTop, bStart, bTop pfn.Frame) bool {
	return aStart < bTop && bStart < aTop
}

// seedFreeLists walks the usable pfns from base to top, producing the
// coarsest correct seeding consistent with I2/I3/I5: at each position it
// picks the largest order that is both alignment-compatible and fits
// before top.
func seedFreeLists(a *Area) {
	i := a.base
	for i < a.top {
		order := largestSeedOrder(i, a.top)
		blockLen := pfn.Frame(1) << order
		for p := i; p < i+blockLen; p++ {
			a.setStateAt(p, freeState(order))
		}
		a.freelists[order].add(a.nodes, a.idx(i))
		i += blockLen
	}
}

// largestSeedOrder picks the largest order such that i is order-aligned
// and i+2^order <= top, and order+1 either breaks alignment or would
// exceed top.
func largestSeedOrder(i, top pfn.Frame) mem.PageOrder {
	var order mem.PageOrder
	for order < mem.MaxPageOrder {
		next := order + 1
		if uint64(i)&((1<<next)-1) != 0 {
			break
		}
		if i+(pfn.Frame(1)<<next) > top {
			break
		}
		order = next
	}
	return order
}

// areaInitAuto dispatches [startPfn, topPfn) across the configured presets,
// peeling off the portion above each configured cutoff (descending) and
// installing the remainder into the lowest zone. The lowest zone is
// always the implicit floor remainder, installed once after the loop, so
// orderedDescending excludes it; a configured Lowest.Cutoff would
// otherwise collide with that final installation and panic on a
// double-init of the same slot.
func (al *Allocator) areaInitAuto(startPfn, topPfn pfn.Frame) error {
	remainingTop := topPfn
	for _, preset := range al.presets.orderedDescending() {
		if preset.Cutoff <= startPfn || preset.Cutoff >= remainingTop {
			continue
		}
		if err := al.areaInit(preset.Number, preset.Cutoff, remainingTop); err != nil {
			return err
		}
		remainingTop = preset.Cutoff
	}
	if remainingTop > startPfn {
		return al.areaInit(AreaLowestNumber, startPfn, remainingTop)
	}
	return nil
}

// getArea returns the area containing pfn p, or nil. Linear scan over
// initialized areas.
func (al *Allocator) getArea(p pfn.Frame) *Area {
	for i, a := range al.areas {
		if al.present(i) && a.containsUsablePfn(p) {
			return a
		}
	}
	return nil
}

func (al *Allocator) present(n int) bool {
	return al.initializedMask&(1<<uint(n)) != 0
}
