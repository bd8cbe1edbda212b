// Package sync provides the busy-wait locking primitive used by the
// physical page allocator.
package sync

import "runtime"

// Spinlock is a simple test-and-set spinlock. Unlike sync.Mutex
// it never parks the calling goroutine: Acquire busy-loops until the lock
// is free, so the allocator's critical section never contains a
// suspension point.
//
// The zero value is an unlocked Spinlock.
type Spinlock struct {
	locked uint32
}

const (
	unlocked = 0
	held     = 1
)

// Acquire blocks until the lock is held by the calling goroutine.
func (s *Spinlock) Acquire() {
	for !s.TryAcquire() {
		runtime.Gosched()
	}
}

// TryAcquire attempts to acquire the lock without blocking, returning true
// on success.
func (s *Spinlock) TryAcquire() bool {
	return casUint32(&s.locked, unlocked, held)
}

// Release releases a held lock. Releasing an unlocked Spinlock is a
// programmer error and panics, same as any other I-violation in this
// module.
func (s *Spinlock) Release() {
	if !casUint32(&s.locked, held, unlocked) {
		panic("sync: Release of unlocked Spinlock")
	}
}
