package physical

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lunakernel/pfnalloc/kernel/mem/pfn"
)

func newSeededTestArea(t *testing.T) (*Allocator, *Area) {
	t.Helper()
	al := NewAllocator()
	require.NoError(t, al.areaInit(0, 16, 32))
	return al, al.areas[0]
}

func TestSplitProducesHomogeneousHalves(t *testing.T) {
	_, a := newSeededTestArea(t)

	split(a, 24) // the seeded order-3 block

	for _, p := range []pfn.Frame{24, 25, 26, 27} {
		require.EqualValues(t, 2, a.stateAt(p).order())
	}
	for _, p := range []pfn.Frame{28, 29, 30, 31} {
		require.EqualValues(t, 2, a.stateAt(p).order())
	}

	idx, ok := a.freelists[2].peekHead(a.nodes)
	require.True(t, ok)
	require.EqualValues(t, 24, a.base+pfn.Frame(idx), "leftmost half stays at the head of the next-lower free list")
}

func TestCoalesceRejectsOutOfRangeBuddy(t *testing.T) {
	_, a := newSeededTestArea(t)
	// pfn 17 is order 0; its XOR-buddy 16 is the metadata table page, not
	// part of the usable area.
	require.False(t, coalesce(a, 0, 16, 17))
}

func TestCoalesceRejectsMismatchedOrder(t *testing.T) {
	_, a := newSeededTestArea(t)
	split(a, 18) // 18 was order 1; now [18,19) and [19,20) are order 0
	// 20 is still order 2, not order 0: mismatched order must fail.
	require.False(t, coalesce(a, 0, 19, 20))
}

// TestPageMemalignOrderPicksSmallestSufficientOrderZero checks that the
// only order-0 free block is returned for an order-0 request.
func TestPageMemalignOrderPicksSmallestSufficientOrderZero(t *testing.T) {
	_, a := newSeededTestArea(t)

	p, ok := pageMemalignOrder(a, 0, 0)
	require.True(t, ok)
	require.EqualValues(t, 17, p)
	require.True(t, a.stateAt(17).isAlloc())
	require.EqualValues(t, 0, a.stateAt(17).order())
}

func TestPageMemalignOrderPicksSmallestSufficientOrderTwo(t *testing.T) {
	_, a := newSeededTestArea(t)

	p, ok := pageMemalignOrder(a, 2, 2)
	require.True(t, ok)
	require.EqualValues(t, 20, p)
	for _, q := range []pfn.Frame{20, 21, 22, 23} {
		require.True(t, a.stateAt(q).isAlloc())
		require.EqualValues(t, 2, a.stateAt(q).order())
	}
}

// TestPageMemalignOrderExhaustionAndRoundTrip allocates every seeded
// block, confirms exhaustion, frees them all back in reverse order, and
// confirms the original seeding is restored exactly.
func TestPageMemalignOrderExhaustionAndRoundTrip(t *testing.T) {
	_, a := newSeededTestArea(t)

	p3, ok := pageMemalignOrder(a, 3, 3)
	require.True(t, ok)
	require.EqualValues(t, 24, p3)

	p2, ok := pageMemalignOrder(a, 2, 2)
	require.True(t, ok)
	require.EqualValues(t, 20, p2)

	p1, ok := pageMemalignOrder(a, 1, 1)
	require.True(t, ok)
	require.EqualValues(t, 18, p1)

	p0, ok := pageMemalignOrder(a, 0, 0)
	require.True(t, ok)
	require.EqualValues(t, 17, p0)

	_, ok = pageMemalignOrder(a, 0, 0)
	require.False(t, ok, "area should be fully allocated")

	freeBlock(a, p0)
	freeBlock(a, p1)
	freeBlock(a, p2)
	freeBlock(a, p3)

	wantOrders := map[pfn.Frame]int{17: 0, 18: 1, 20: 2, 24: 3}
	for p, order := range wantOrders {
		s := a.stateAt(p)
		require.True(t, s.isFree(), "pfn %d expected free after full free", p)
		require.EqualValues(t, order, s.order(), "pfn %d order after full free", p)
	}
	for order := 4; order < len(a.freelists); order++ {
		require.True(t, a.freelists[order].empty(), "freelist[%d] should be empty", order)
	}
}

// TestReserveOneSplitsDownAndUnreserveCoalescesBackUp reserves a single
// page out of a larger seeded block, checks the split leftovers, then
// unreserves it and checks coalescing restores the original block.
func TestReserveOneSplitsDownAndUnreserveCoalescesBackUp(t *testing.T) {
	al, a := newSeededTestArea(t)

	require.NoError(t, al.reserveOnePfn(24))

	require.True(t, a.stateAt(24).isSpecial())
	require.EqualValues(t, 0, a.stateAt(24).order())

	require.True(t, a.stateAt(25).isFree())
	require.EqualValues(t, 0, a.stateAt(25).order())
	require.True(t, a.stateAt(26).isFree())
	require.EqualValues(t, 1, a.stateAt(26).order())
	require.True(t, a.stateAt(28).isFree())
	require.EqualValues(t, 2, a.stateAt(28).order())

	_, ok := pageMemalignOrder(a, 3, 3)
	require.False(t, ok, "order-3 allocation must fail while pfn 24 is reserved")

	p, ok := pageMemalignOrder(a, 2, 2)
	require.True(t, ok)
	require.EqualValues(t, 28, p, "order-2 allocation should land on the block freed by the split, not the original seeded one")

	// undo the allocation of 28 so unreserve can coalesce all the way back up.
	freeBlock(a, 28)

	require.NoError(t, al.unreserveOnePfn(24))
	idx, ok := a.freelists[3].peekHead(a.nodes)
	require.True(t, ok)
	require.EqualValues(t, 24, a.base+pfn.Frame(idx))

	p3, ok := pageMemalignOrder(a, 3, 3)
	require.True(t, ok)
	require.EqualValues(t, 24, p3)
}
