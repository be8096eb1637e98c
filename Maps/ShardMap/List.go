package ShardMap

import (
	"sync/atomic"
	"unsafe"

	"github.com/g-m-twostay/paged-maps/Locks"
	"github.com/g-m-twostay/paged-maps/logutil"
)

// list is one collision chain: unsorted, new nodes pushed at the head. The
// locked forms let concurrent inserts share the read side of the chain lock
// and race on a head CAS, while erases take the write side to unlink safely.
// The ...Unsafe forms rely on the caller's synchronization (the shard write
// lock) and skip the chain lock. Node storage is managed by the pool, never
// here.
type list[K, V any] struct {
	head unsafe.Pointer // *node[K, V], atomic
	lock Locks.CountingSpinlock
}

func (u *list[K, V]) first() *node[K, V] {
	return (*node[K, V])(atomic.LoadPointer(&u.head))
}

func (u *list[K, V]) empty() bool {
	return u.first() == nil
}

func (u *list[K, V]) reset() {
	atomic.StorePointer(&u.head, nil)
}

// insert pushes n at the head under the read lock; concurrent inserters
// retry the CAS against each other.
func (u *list[K, V]) insert(n *node[K, V]) bool {
	if n == nil {
		return false
	}
	g := Locks.NewReadGuard(&u.lock)
	defer g.Release()
	for {
		h := atomic.LoadPointer(&u.head)
		atomic.StorePointer(&n.next, h)
		if atomic.CompareAndSwapPointer(&u.head, h, unsafe.Pointer(n)) {
			return true
		}
	}
}

func (u *list[K, V]) insertUnsafe(n *node[K, V]) bool {
	if n == nil {
		return false
	}
	atomic.StorePointer(&n.next, atomic.LoadPointer(&u.head))
	atomic.StorePointer(&u.head, unsafe.Pointer(n))
	return true
}

func (u *list[K, V]) find(k K, cmp func(K, K) bool) *node[K, V] {
	g := Locks.NewReadGuard(&u.lock)
	defer g.Release()
	return u.findUnsafe(k, cmp)
}

func (u *list[K, V]) findUnsafe(k K, cmp func(K, K) bool) *node[K, V] {
	for c := u.first(); c != nil; c = (*node[K, V])(atomic.LoadPointer(&c.next)) {
		if cmp(c.key, k) {
			return c
		}
	}
	return nil
}

// findLast returns the last match in chain order. Pushes happen at the head,
// so among duplicates the last match is the oldest.
func (u *list[K, V]) findLast(k K, cmp func(K, K) bool) *node[K, V] {
	g := Locks.NewReadGuard(&u.lock)
	defer g.Release()
	return u.findLastUnsafe(k, cmp)
}

func (u *list[K, V]) findLastUnsafe(k K, cmp func(K, K) bool) *node[K, V] {
	var last *node[K, V]
	for c := u.first(); c != nil; c = (*node[K, V])(atomic.LoadPointer(&c.next)) {
		if cmp(c.key, k) {
			last = c
		}
	}
	return last
}

// unlinkWhere removes and returns the first node satisfying match; nil when
// none does. Caller synchronizes.
func (u *list[K, V]) unlinkWhere(match func(*node[K, V]) bool) *node[K, V] {
	var prev *node[K, V]
	for c := u.first(); c != nil; c = (*node[K, V])(atomic.LoadPointer(&c.next)) {
		if match(c) {
			nx := atomic.LoadPointer(&c.next)
			if prev == nil {
				atomic.StorePointer(&u.head, nx)
			} else {
				atomic.StorePointer(&prev.next, nx)
			}
			atomic.StorePointer(&c.next, nil)
			return c
		}
		prev = c
	}
	return nil
}

// erase unlinks the first node with key k under the write lock and returns
// it for the caller to release.
func (u *list[K, V]) erase(k K, cmp func(K, K) bool) *node[K, V] {
	g := Locks.NewWriteGuard(&u.lock)
	defer g.Release()
	return u.eraseUnsafe(k, cmp)
}

func (u *list[K, V]) eraseUnsafe(k K, cmp func(K, K) bool) *node[K, V] {
	return u.unlinkWhere(func(c *node[K, V]) bool { return cmp(c.key, k) })
}

// eraseNode unlinks exactly n, by identity.
func (u *list[K, V]) eraseNode(n *node[K, V]) *node[K, V] {
	if n == nil {
		return nil
	}
	g := Locks.NewWriteGuard(&u.lock)
	defer g.Release()
	return u.unlinkWhere(func(c *node[K, V]) bool { return c == n })
}

func (u *list[K, V]) eraseNodeUnsafe(n *node[K, V]) *node[K, V] {
	if n == nil {
		return nil
	}
	return u.unlinkWhere(func(c *node[K, V]) bool { return c == n })
}

// insertUnique inserts n only if no node with its key exists, checking and
// pushing under the write lock.
func (u *list[K, V]) insertUnique(n *node[K, V], cmp func(K, K) bool) bool {
	if n == nil {
		return false
	}
	g := Locks.NewWriteGuard(&u.lock)
	defer g.Release()
	return u.insertUniqueUnsafe(n, cmp)
}

func (u *list[K, V]) insertUniqueUnsafe(n *node[K, V], cmp func(K, K) bool) bool {
	if n == nil || u.findUnsafe(n.key, cmp) != nil {
		return false
	}
	return u.insertUnsafe(n)
}

// insertUniqueConcurrent inserts optimistically under the read lock, then
// checks for an older duplicate: if the last match is not n, a node with the
// same key was already present, and n is rolled back out.
func (u *list[K, V]) insertUniqueConcurrent(n *node[K, V], cmp func(K, K) bool) bool {
	if !u.insert(n) {
		return false
	}
	if u.findLast(n.key, cmp) != n {
		if u.eraseNode(n) != n {
			logutil.Fatalf("ShardMap: failed to roll back duplicate insert")
		}
		return false
	}
	return true
}
