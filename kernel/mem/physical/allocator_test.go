package physical

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lunakernel/pfnalloc/kernel/errors"
	"github.com/lunakernel/pfnalloc/kernel/mem"
	"github.com/lunakernel/pfnalloc/kernel/mem/pfn"
)

// TestAllocPagesAreaOrderZeroRoundTrip allocates order 0, frees it, and
// re-allocates order 0, expecting the same pfn back.
func TestAllocPagesAreaOrderZeroRoundTrip(t *testing.T) {
	al := NewAllocator()
	require.NoError(t, al.AreaInit(0, 16, 32))

	p1, err := al.AllocPagesArea(AllAreas, 0)
	require.NoError(t, err)
	require.EqualValues(t, 17, p1)

	al.FreePages(p1)

	p2, err := al.AllocPagesArea(AllAreas, 0)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}

// TestAllocPagesAreaLargestBlockRoundTrip allocates the largest possible
// block, frees it, and allocates it again, expecting the same pfn.
func TestAllocPagesAreaLargestBlockRoundTrip(t *testing.T) {
	al := NewAllocator()
	require.NoError(t, al.AreaInit(0, 16, 32))

	p1, err := al.AllocPagesArea(AllAreas, 3)
	require.NoError(t, err)
	require.EqualValues(t, 24, p1)

	al.FreePages(p1)

	p2, err := al.AllocPagesArea(AllAreas, 3)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}

func TestFreePagesNullIsNoOp(t *testing.T) {
	al := NewAllocator()
	require.NoError(t, al.AreaInit(0, 16, 32))
	require.NotPanics(t, func() {
		al.FreePages(pfn.InvalidFrame)
	})
}

func TestAllocPagesAreaEmptyMaskReturnsNull(t *testing.T) {
	al := NewAllocator()
	require.NoError(t, al.AreaInit(0, 16, 32))

	_, err := al.AllocPagesArea(AreaBit(5), 0)
	require.ErrorIs(t, err, errors.ErrOutOfMemory)
}

// TestAllocPagesAreaPicksLowestEligibleArea checks that allocation picks
// the first area (lowest index) in the mask that can satisfy the request.
func TestAllocPagesAreaPicksLowestEligibleArea(t *testing.T) {
	al := NewAllocator()
	require.NoError(t, al.AreaInit(0, 16, 64))
	require.NoError(t, al.AreaInit(1, 1000, 1048))

	p, err := al.AllocPagesArea(AreaBit(0)|AreaBit(1), 0)
	require.NoError(t, err)
	require.True(t, p < 1000, "expected allocation from area 0, got pfn %d", p)
}

func TestMemalignPagesAreaTranslatesBytesToOrders(t *testing.T) {
	al := NewAllocator()
	require.NoError(t, al.AreaInit(0, 16, 32))

	// alignment 1 page, size 3 pages -> sizeOrder=2 (2^2=4 >= 3), align
	// order 0; dispatches exactly like AllocPagesArea(_, 2).
	p, err := al.MemalignPagesArea(AllAreas, mem.PageSize, 3*mem.PageSize)
	require.NoError(t, err)
	require.EqualValues(t, 20, p)
}

func TestMemalignPagesAreaRejectsZeroSize(t *testing.T) {
	al := NewAllocator()
	require.NoError(t, al.AreaInit(0, 16, 32))

	_, err := al.MemalignPagesArea(AllAreas, mem.PageSize, 0)
	require.Error(t, err)
}

// TestFreePagesPanicsOnDoubleFree checks that freeing a page that is not
// currently allocated is a fatal programmer error.
func TestFreePagesPanicsOnDoubleFree(t *testing.T) {
	al := NewAllocator()
	require.NoError(t, al.AreaInit(0, 16, 32))

	p, err := al.AllocPagesArea(AllAreas, 0)
	require.NoError(t, err)

	al.FreePages(p)
	require.Panics(t, func() {
		al.FreePages(p)
	})
}

func TestEnableRequiresAtLeastOneArea(t *testing.T) {
	al := NewAllocator()
	require.Panics(t, func() {
		_ = al.Enable()
	})
}

func TestEnableMarksAllocatorEnabled(t *testing.T) {
	al := NewAllocator()
	require.NoError(t, al.AreaInit(0, 16, 32))
	require.False(t, al.Enabled())
	require.NoError(t, al.Enable())
	require.True(t, al.Enabled())
}

// TestAllocPagesAreaExhaustion allocates every seeded block in an area,
// confirms the area then reports out-of-memory, frees everything back in
// reverse order, and confirms the seeded order-3 block at pfn 24 can be
// allocated again.
func TestAllocPagesAreaExhaustion(t *testing.T) {
	al := NewAllocator()
	require.NoError(t, al.AreaInit(0, 16, 32))

	var got []pfn.Frame
	for _, order := range []mem.PageOrder{3, 2, 1, 0} {
		p, err := al.AllocPagesArea(AllAreas, order)
		require.NoError(t, err)
		got = append(got, p)
	}
	require.Equal(t, []pfn.Frame{24, 20, 18, 17}, got)

	_, err := al.AllocPagesArea(AllAreas, 0)
	require.ErrorIs(t, err, errors.ErrOutOfMemory)

	for i := len(got) - 1; i >= 0; i-- {
		al.FreePages(got[i])
	}

	p, err := al.AllocPagesArea(AllAreas, 3)
	require.NoError(t, err)
	require.EqualValues(t, 24, p, "seeding fully restored after round-trip")
}
