// Package Pools provides a fixed-capacity concurrent slot pool and a
// growable paging pool built from it. Pointers handed out stay valid until
// released; storage never moves.
package Pools

import (
	"sync/atomic"
	"unsafe"

	"github.com/g-m-twostay/paged-maps/logutil"
)

const (
	bitsPerWord = 32
	decOne      = ^uint32(0)
)

// Fixed is a pool of a fixed power-of-two number of slots. Occupancy lives
// in an atomic bitmap; claiming a slot is an atomic set of its bit, freeing
// is an atomic clear. Reserve/Release are safe for concurrent use; Range and
// Clear are not safe concurrently with them.
type Fixed[T any] struct {
	slots    []T
	words    []atomic.Uint32
	occupied atomic.Uint32
	hint     atomic.Uint32 // round-robin scan start
	mask     uint32
}

// NewFixed creates a pool with size slots; size must be a power of two.
func NewFixed[T any](size uint32) *Fixed[T] {
	if size == 0 || size&(size-1) != 0 {
		logutil.Fatalf("Pools.NewFixed: size %d is not a power of two", size)
	}
	return &Fixed[T]{
		slots: make([]T, size),
		words: make([]atomic.Uint32, (size+bitsPerWord-1)/bitsPerWord),
		mask:  size - 1,
	}
}

// Size returns the number of occupied slots.
func (u *Fixed[T]) Size() uint32 {
	return u.occupied.Load()
}

// Cap returns the total number of slots.
func (u *Fixed[T]) Cap() uint32 {
	return uint32(len(u.slots))
}

// Full reports whether every slot is occupied.
func (u *Fixed[T]) Full() bool {
	return u.occupied.Load() == uint32(len(u.slots))
}

// HasFree reports whether at least one slot is unoccupied.
func (u *Fixed[T]) HasFree() bool {
	return u.occupied.Load() < uint32(len(u.slots))
}

func (u *Fixed[T]) isSet(i uint32) bool {
	return u.words[i/bitsPerWord].Load()&(1<<(i%bitsPerWord)) != 0
}

// setBit atomically claims bit i; false when it was already set.
func (u *Fixed[T]) setBit(i uint32) bool {
	w := &u.words[i/bitsPerWord]
	m := uint32(1) << (i % bitsPerWord)
	for {
		old := w.Load()
		if old&m != 0 {
			return false
		}
		if w.CompareAndSwap(old, old|m) {
			return true
		}
	}
}

// clearBit atomically releases bit i; false when it was already clear.
func (u *Fixed[T]) clearBit(i uint32) bool {
	w := &u.words[i/bitsPerWord]
	m := uint32(1) << (i % bitsPerWord)
	for {
		old := w.Load()
		if old&m == 0 {
			return false
		}
		if w.CompareAndSwap(old, old&^m) {
			return true
		}
	}
}

// index recovers the slot index of p, or Cap() when p is not a slot of this
// pool.
func (u *Fixed[T]) index(p *T) uint32 {
	base := uintptr(unsafe.Pointer(unsafe.SliceData(u.slots)))
	off := uintptr(unsafe.Pointer(p)) - base
	sz := unsafe.Sizeof(*p)
	if off%sz != 0 || off/sz >= uintptr(len(u.slots)) {
		return u.Cap()
	}
	return uint32(off / sz)
}

// Reserve claims a free slot, stores v in it and returns its address, or nil
// when the pool is full. The scan starts at a shared round-robin hint so
// concurrent callers spread across the bitmap.
func (u *Fixed[T]) Reserve(v T) *T {
	i := u.hint.Load()
	for n := uint32(0); n <= u.mask; n++ {
		if u.Full() {
			break
		}
		i &= u.mask
		if !u.isSet(i) && u.setBit(i) {
			u.hint.Store(i + 1)
			u.slots[i] = v
			u.occupied.Add(1)
			return &u.slots[i]
		}
		i++
	}
	return nil
}

// Release frees the slot p points into. Releasing a slot that is not
// occupied is a double free and fatal; a pointer outside the pool returns
// false.
func (u *Fixed[T]) Release(p *T) bool {
	i := u.index(p)
	if i >= u.Cap() {
		return false
	}
	if !u.isSet(i) {
		logutil.Fatalf("Pools.Fixed.Release: double free of slot %d", i)
	}
	var zero T
	u.slots[i] = zero
	if !u.clearBit(i) {
		logutil.Fatalf("Pools.Fixed.Release: double free of slot %d", i)
	}
	u.occupied.Add(decOne)
	return true
}

// Range calls f for every occupied slot until f returns false; it reports
// whether the iteration ran to completion.
func (u *Fixed[T]) Range(f func(*T) bool) bool {
	for i := range u.slots {
		if u.isSet(uint32(i)) && !f(&u.slots[i]) {
			return false
		}
	}
	return true
}

// Clear releases every slot.
func (u *Fixed[T]) Clear() {
	var zero T
	for i := range u.slots {
		if u.isSet(uint32(i)) {
			u.slots[i] = zero
		}
	}
	for i := range u.words {
		u.words[i].Store(0)
	}
	u.occupied.Store(0)
}
