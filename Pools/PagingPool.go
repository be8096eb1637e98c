package Pools

import (
	"sync/atomic"
	"unsafe"

	"github.com/g-m-twostay/paged-maps/Locks"
	"github.com/g-m-twostay/paged-maps/logutil"
)

// Page indices are 28 bits wide; the top values are sentinels for a page's
// own next-free field.
const (
	invalidPage  uint32 = 0x0FFFFFFF // not linked into the free list
	tailPage     uint32 = 0x0FFFFFFE // end of the free list
	swappingPage uint32 = 0x0FFFFFFD // mid-push, claimed by one pusher

	// Free-list head word: [8-bit rolling counter | 28-bit next | 28-bit head].
	// The counter changes on every pop so a head that comes back after an
	// intervening pop/push cycle fails the CAS.
	headNextShift = 28
	headCtrShift  = 56
	pageIdxMask   = uint64(invalidPage)

	initialPageCap uint32 = 4
)

const emptyFreeList = uint64(tailPage)<<headNextShift | uint64(tailPage)

// pnode wraps a stored value with the index of its page so Release can find
// the page from a bare value pointer. data must stay the first field.
type pnode[T any] struct {
	data      T
	pageIndex uint32
}

type page[T any] struct {
	slots    *Fixed[pnode[T]]
	nextFree atomic.Uint32
	index    uint32
}

// Paging is an object pool that grows by whole pages. Full or in-use pages
// drop off a lock-free free list; pages with spare slots get pushed back on.
// The page table is guarded by a counting spinlock, read-locked for lookups
// and write-locked only while the table grows.
type Paging[T any] struct {
	tableLock Locks.CountingSpinlock
	pages     []*page[T]
	pageCap   uint32 // len of pages, guarded by tableLock
	numPages  atomic.Uint32
	head      atomic.Uint64
	count     atomic.Uint32
	pageSize  uint32
}

// NewPaging creates an empty pool whose pages hold pageSize slots each;
// pageSize must be a power of two.
func NewPaging[T any](pageSize uint32) *Paging[T] {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		logutil.Fatalf("Pools.NewPaging: page size %d is not a power of two", pageSize)
	}
	u := &Paging[T]{pageSize: pageSize}
	u.head.Store(emptyFreeList)
	return u
}

// Size returns the number of reserved objects.
func (u *Paging[T]) Size() uint32 {
	return u.count.Load()
}

// Cap returns the total number of slots across all allocated pages.
func (u *Paging[T]) Cap() uint32 {
	return u.numPages.Load() * u.pageSize
}

// pushPage links p back onto the free list. The page's own next-free field
// is CAS-claimed from invalid to swapping first, so a page already on the
// list (or being pushed by someone else) is left alone.
func (u *Paging[T]) pushPage(p *page[T]) {
	for !p.nextFree.CompareAndSwap(invalidPage, swappingPage) {
		if p.nextFree.Load() != invalidPage {
			return
		}
	}
	for {
		cur := u.head.Load()
		curHead := uint32(cur & pageIdxMask)
		np := u.numPages.Load()
		if p.index >= np || (curHead != tailPage && curHead >= np) {
			logutil.Fatalf("Pools.Paging: corrupt free list head %#x", cur)
		}
		ctr := uint8(cur>>headCtrShift) + 1
		next := uint64(ctr)<<headCtrShift | uint64(curHead)<<headNextShift | uint64(p.index)
		p.nextFree.Store(curHead)
		if u.head.CompareAndSwap(cur, next) {
			return
		}
	}
}

// popPage unlinks and returns the head page, or nil when the list is empty.
// The head word carries the successor index so the CAS can swing head and
// next together, and the rolling counter defeats reuse of the same head
// index between our load and our CAS.
func (u *Paging[T]) popPage() *page[T] {
	for {
		cur := u.head.Load()
		curHead := uint32(cur & pageIdxMask)
		if curHead == tailPage {
			return nil
		}
		np := u.numPages.Load()
		if curHead >= np {
			logutil.Fatalf("Pools.Paging: corrupt free list head %#x", cur)
		}
		curNext := uint32(cur >> headNextShift & pageIdxMask)
		nextOfNext := tailPage
		if curNext != tailPage {
			if curNext >= np {
				logutil.Fatalf("Pools.Paging: corrupt free list head %#x", cur)
			}
			g := Locks.NewReadGuard(&u.tableLock)
			nx := u.pages[curNext]
			g.Release()
			nextOfNext = nx.nextFree.Load()
			if nextOfNext == invalidPage || nextOfNext == swappingPage {
				// The successor is mid-push; its next field is not
				// trustworthy yet.
				continue
			}
		}
		ctr := uint8(cur>>headCtrShift) + 1
		next := uint64(ctr)<<headCtrShift | uint64(nextOfNext)<<headNextShift | uint64(curNext)
		if u.head.CompareAndSwap(cur, next) {
			g := Locks.NewReadGuard(&u.tableLock)
			p := u.pages[curHead]
			g.Release()
			p.nextFree.Store(invalidPage)
			return p
		}
	}
}

// allocatePage appends a fresh page to the table, growing it geometrically
// when full, and pushes the page onto the free list.
func (u *Paging[T]) allocatePage() {
	p := &page[T]{slots: NewFixed[pnode[T]](u.pageSize)}
	p.nextFree.Store(invalidPage)
	g := Locks.NewReadGuard(&u.tableLock)
	n := u.numPages.Add(1)
	if n > u.pageCap {
		w := g.Upgrade()
		if n > u.pageCap {
			newCap := u.pageCap * 2
			if newCap < initialPageCap {
				newCap = initialPageCap
			}
			for newCap < n {
				newCap *= 2
			}
			grown := make([]*page[T], newCap)
			copy(grown, u.pages)
			u.pages = grown
			u.pageCap = newCap
		}
		g = w.Downgrade()
	}
	p.index = n - 1
	u.pages[p.index] = p
	g.Release()
	u.pushPage(p)
}

// Reserve claims a slot somewhere in the pool, stores v in it and returns
// its address. The pool grows as needed; Reserve fails only on a fatal
// internal inconsistency.
func (u *Paging[T]) Reserve(v T) *T {
	for {
		p := u.popPage()
		if p == nil {
			u.allocatePage()
			continue
		}
		n := p.slots.Reserve(pnode[T]{data: v})
		if n == nil {
			// Lost the last slot to a concurrent Reserve; the page stays off
			// the list until something is released from it.
			continue
		}
		n.pageIndex = p.index
		u.count.Add(1)
		if p.slots.HasFree() {
			u.pushPage(p)
		}
		return &n.data
	}
}

// Release frees the slot obj points into and pushes its page back onto the
// free list. Returns false for pointers not owned by the pool; freeing an
// unoccupied slot is fatal.
func (u *Paging[T]) Release(obj *T) bool {
	if obj == nil {
		return false
	}
	n := (*pnode[T])(unsafe.Pointer(obj))
	if n.pageIndex >= u.numPages.Load() {
		return false
	}
	g := Locks.NewReadGuard(&u.tableLock)
	p := u.pages[n.pageIndex]
	g.Release()
	if !p.slots.Release(n) {
		return false
	}
	u.count.Add(decOne)
	u.pushPage(p)
	return true
}

// Preallocate grows the pool until it can hold at least n objects without
// further page allocations.
func (u *Paging[T]) Preallocate(n uint32) {
	for u.Cap() < n {
		u.allocatePage()
	}
}

// Clear drops every page. Not safe concurrently with any other operation;
// outstanding pointers become invalid.
func (u *Paging[T]) Clear() {
	g := Locks.NewWriteGuard(&u.tableLock)
	u.pages = nil
	u.pageCap = 0
	u.numPages.Store(0)
	u.head.Store(emptyFreeList)
	u.count.Store(0)
	g.Release()
}

// Range calls f for every reserved object until f returns false. Not safe
// concurrently with Reserve/Release/Clear.
func (u *Paging[T]) Range(f func(*T) bool) {
	g := Locks.NewReadGuard(&u.tableLock)
	pages := u.pages[:u.numPages.Load()]
	g.Release()
	for _, p := range pages {
		if p == nil {
			continue
		}
		if !p.slots.Range(func(n *pnode[T]) bool { return f(&n.data) }) {
			return
		}
	}
}
