package physical

import (
	"github.com/lunakernel/pfnalloc/kernel/errors"
	"github.com/lunakernel/pfnalloc/kernel/kfmt"
	"github.com/lunakernel/pfnalloc/kernel/mem/pfn"

	"github.com/google/uuid"
)

// Reservation records one outstanding ReservePages call. It is a
// side-table layered on top of the per-page SPECIAL bit, which remains
// the sole source of truth for whether a page is actually reserved.
type Reservation struct {
	ID    string
	Owner string
	Start pfn.Frame
	N     int
}

// reserveOne carves the single free page at pfn p out of its enclosing
// free block, splitting down to order 0 as needed, and marks it SPECIAL.
// Precondition: p is free (neither ALLOC nor SPECIAL); the caller
// (reserveOnePfn) is responsible for checking that and for locating the
// owning area.
func reserveOne(a *Area, p pfn.Frame) {
	for {
		order := a.stateAt(p).order()
		if order == 0 {
			break
		}
		mask := (pfn.Frame(1) << order) - 1
		blockStart := p &^ mask
		split(a, blockStart)
	}

	// Explicitly unlink the order-0 block from its free list before
	// stamping SPECIAL: relying on it merely sitting at the head of
	// freelists[0] would break the moment a future change reorders
	// split()'s head tracking.
	a.freelists[0].remove(a.nodes, a.idx(p))
	a.setStateAt(p, specialState())
}

// reserveOnePfn locates the area owning p and reserves it, failing if p
// is outside every area or already ALLOC/SPECIAL.
func (al *Allocator) reserveOnePfn(p pfn.Frame) error {
	a := al.getArea(p)
	if a == nil {
		return errors.ErrReservationConflict
	}
	s := a.stateAt(p)
	if s.isAlloc() || s.isSpecial() {
		return errors.ErrReservationConflict
	}
	reserveOne(a, p)
	return nil
}

// unreserveOnePfn clears SPECIAL on p and routes it through the normal
// free path so coalescing proceeds: SPECIAL is cleared, ALLOC is set
// transiently at order 0, and freeBlock does the rest.
func (al *Allocator) unreserveOnePfn(p pfn.Frame) error {
	a := al.getArea(p)
	if a == nil {
		return errors.ErrPageNotReserved
	}
	if !a.stateAt(p).isSpecial() {
		return errors.ErrPageNotReserved
	}
	a.setStateAt(p, allocState(0))
	freeBlock(a, p)
	return nil
}

// ReservePages attempts to reserve n consecutive pfns starting at start,
// all-or-nothing: on any failure it un-reserves whatever it already
// reserved and returns the failure, leaving no page in [start, start+n)
// SPECIAL.
func (al *Allocator) ReservePages(start pfn.Frame, n int, owner string) (string, error) {
	if n <= 0 {
		return "", errors.ErrInvalidParamValue
	}

	al.lock.Acquire()
	defer al.lock.Release()

	done := make([]pfn.Frame, 0, n)
	for i := 0; i < n; i++ {
		p := start + pfn.Frame(i)
		if err := al.reserveOnePfn(p); err != nil {
			for _, rp := range done {
				if uErr := al.unreserveOnePfn(rp); uErr != nil {
					errors.Fatal("physical", "rollback of reservation at pfn %d failed: %v", rp, uErr)
				}
			}
			kfmt.Errorf("[physical] reserve_pages(start=%d, n=%d, owner=%q) failed at pfn %d: %v\n", start, n, owner, p, err)
			return "", err
		}
		done = append(done, p)
	}

	id := uuid.New().String()
	al.reservations[id] = Reservation{ID: id, Owner: owner, Start: start, N: n}
	kfmt.Printf("[physical] reserved %d page(s) at pfn %d for %q (id=%s)\n", n, start, owner, id)
	return id, nil
}

// UnreservePages reverses a reservation previously returned by
// ReservePages, coalescing freed pages back upward.
func (al *Allocator) UnreservePages(id string) error {
	al.lock.Acquire()
	defer al.lock.Release()

	r, ok := al.reservations[id]
	if !ok {
		return errors.ErrInvalidParamValue
	}

	for i := 0; i < r.N; i++ {
		p := r.Start + pfn.Frame(i)
		if err := al.unreserveOnePfn(p); err != nil {
			return err
		}
	}
	delete(al.reservations, id)
	kfmt.Printf("[physical] unreserved %d page(s) at pfn %d (id=%s)\n", r.N, r.Start, id)
	return nil
}

// Reservations returns a snapshot of all currently outstanding
// reservations.
func (al *Allocator) Reservations() []Reservation {
	al.lock.Acquire()
	defer al.lock.Release()

	out := make([]Reservation, 0, len(al.reservations))
	for _, r := range al.reservations {
		out = append(out, r)
	}
	return out
}
