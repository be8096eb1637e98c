package ShardMap

import (
	"sync/atomic"

	"github.com/g-m-twostay/paged-maps/Locks"
	"github.com/g-m-twostay/paged-maps/Maps"
	"github.com/g-m-twostay/paged-maps/Pools"
	"github.com/g-m-twostay/paged-maps/logutil"
)

const fillNumerator, fillDenominator = 7, 8

// shard is one independent slice of the map: a power-of-two bucket table
// with its own lock and count. All methods except the rekey protocol assume
// the caller holds the appropriate side of the shard lock (or guarantees
// exclusive access); the map layer decides which.
type shard[K, V any] struct {
	pool    *Pools.Paging[node[K, V]]
	buckets []list[K, V]
	lock    Locks.CountingSpinlock
	count   uint32
	fillCap uint32
}

func (u *shard[K, V]) bucketIndex(hash uint64) uint32 {
	return uint32(hash & uint64(len(u.buckets)-1))
}

func (u *shard[K, V]) find(hash uint64, k K, cmp func(K, K) bool) *node[K, V] {
	if len(u.buckets) == 0 {
		return nil
	}
	return u.buckets[u.bucketIndex(hash)].findUnsafe(k, cmp)
}

// resize swaps in a table of newLen buckets and relinks every node. A rekey
// may hold a node's claim without holding the shard lock, so the bucket field
// is CAS-relinked: a claimed node moves to its new bucket with the claim
// intact. Requires the shard write lock.
func (u *shard[K, V]) resize(newLen uint32, hasher func(K) uint64) {
	old := u.buckets
	u.buckets = make([]list[K, V], newLen)
	for i := range old {
		c := old[i].first()
		for c != nil {
			nx := (*node[K, V])(atomic.LoadPointer(&c.next))
			b := u.bucketIndex(hasher(c.key))
			for {
				ob := atomic.LoadUint32(&c.bucket)
				if ob == reassigningBucket || atomic.CompareAndSwapUint32(&c.bucket, ob, b) {
					break
				}
			}
			if !u.buckets[b].insertUnsafe(c) {
				logutil.Fatalf("ShardMap: lost a node while resizing to %d buckets", newLen)
			}
			c = nx
		}
		old[i].reset()
	}
	u.fillCap = newLen * fillNumerator / fillDenominator
}

// insert adds a new element, or returns nil when the key is already present.
// Grows the table at 7/8 fill. Requires the shard write lock.
func (u *shard[K, V]) insert(hash uint64, k K, v V, hasher func(K) uint64, cmp func(K, K) bool) *Pair[K, V] {
	if u.count+1 > u.fillCap {
		u.resize(Maps.NextPowerOfTwo((u.count+1)*2), hasher)
	}
	b := u.bucketIndex(hash)
	if u.buckets[b].findUnsafe(k, cmp) != nil {
		return nil
	}
	n := u.pool.Reserve(node[K, V]{Pair: Pair[K, V]{key: k, Val: v}})
	atomic.StoreUint32(&n.bucket, b)
	if !u.buckets[b].insertUnsafe(n) {
		u.pool.Release(n)
		return nil
	}
	u.count++
	return &n.Pair
}

// removeKey erases the element with key k. A node claimed by an in-flight
// rekey is unlinked but its storage is left to the rekeyer. Requires the
// shard write lock.
func (u *shard[K, V]) removeKey(hash uint64, k K, cmp func(K, K) bool) bool {
	if len(u.buckets) == 0 {
		return false
	}
	n := u.buckets[u.bucketIndex(hash)].eraseUnsafe(k, cmp)
	if n == nil {
		return false
	}
	u.count--
	if atomic.LoadUint32(&n.bucket) != reassigningBucket {
		atomic.StoreUint32(&n.bucket, invalidBucket)
		u.pool.Release(n)
	}
	return true
}

// removeNode erases exactly n, located through its stored bucket index.
// Requires the shard write lock.
func (u *shard[K, V]) removeNode(n *node[K, V]) bool {
	b := atomic.LoadUint32(&n.bucket)
	if b >= uint32(len(u.buckets)) {
		return false
	}
	if u.buckets[b].eraseNodeUnsafe(n) == nil {
		return false
	}
	u.count--
	atomic.StoreUint32(&n.bucket, invalidBucket)
	u.pool.Release(n)
	return true
}

// reserve grows the bucket table to hold want elements without resizing.
// Requires the shard write lock.
func (u *shard[K, V]) reserve(want uint32, hasher func(K) uint64) {
	newLen := Maps.NextPowerOfTwo(want * fillDenominator / fillNumerator)
	if newLen > uint32(len(u.buckets)) {
		u.resize(newLen, hasher)
	}
}

// clear resets every bucket; node storage is reclaimed by the pool owner.
func (u *shard[K, V]) clear() {
	for i := range u.buckets {
		u.buckets[i].reset()
	}
	u.count = 0
}

// rekeyLockless changes a node's key with no synchronization at all; the
// caller guarantees exclusive access to the map.
func (u *shard[K, V]) rekeyLockless(oldHash, newHash uint64, k, newKey K, cmp func(K, K) bool) bool {
	n := u.find(oldHash, k, cmp)
	if n == nil {
		return false
	}
	ob := n.bucket
	if ob >= uint32(len(u.buckets)) {
		return false
	}
	nb := u.bucketIndex(newHash)
	if dup := u.buckets[nb].findUnsafe(newKey, cmp); dup != nil && dup != n {
		return false
	}
	if ob == nb {
		n.key = newKey
		return true
	}
	n.bucket = reassigningBucket
	if u.buckets[ob].eraseNodeUnsafe(n) == nil {
		n.bucket = ob
		return false
	}
	n.key = newKey
	n.bucket = nb
	if !u.buckets[nb].insertUnsafe(n) {
		logutil.Fatalf("ShardMap: lost a node while rekeying within a shard")
	}
	return true
}

// rekeyConcurrent changes a node's key under the shard lock: the node's
// bucket field is CAS-claimed to the reassigning state, and when the element
// must move between buckets the read guard is upgraded to unlink and relink
// it. During the move the element is invisible to lookups.
func (u *shard[K, V]) rekeyConcurrent(oldHash, newHash uint64, k, newKey K, cmp func(K, K) bool) bool {
	g := Locks.NewReadGuard(&u.lock)
	n := u.find(oldHash, k, cmp)
	if n == nil {
		g.Release()
		return false
	}
	return u.rekeyNode(g, oldHash, newHash, n, newKey, cmp)
}

// rekeyNode consumes g.
func (u *shard[K, V]) rekeyNode(g Locks.ReadGuard, oldHash, newHash uint64, n *node[K, V], newKey K, cmp func(K, K) bool) bool {
	nb := u.bucketIndex(newHash)
	if dup := u.buckets[nb].find(newKey, cmp); dup != nil && dup != n {
		g.Release()
		return false
	}
	for {
		ob := atomic.LoadUint32(&n.bucket)
		if ob >= uint32(len(u.buckets)) {
			// Erased, or claimed by another rekey.
			g.Release()
			return false
		}
		if !atomic.CompareAndSwapUint32(&n.bucket, ob, reassigningBucket) {
			continue
		}
		if ob == nb {
			n.key = newKey
			atomic.StoreUint32(&n.bucket, nb)
			g.Release()
			return true
		}
		w := g.Upgrade()
		// The upgrade may have lapsed the lock: a resize can have replaced
		// the table and relocated n (the claim survives relinking), and an
		// erase can have unlinked n, deferring its storage to us. Relocate
		// from the hash, not the stale index.
		if u.buckets[u.bucketIndex(oldHash)].eraseNodeUnsafe(n) == nil {
			u.pool.Release(n)
			w.Release()
			return false
		}
		n.key = newKey
		nb = u.bucketIndex(newHash)
		atomic.StoreUint32(&n.bucket, nb)
		if !u.buckets[nb].insertUnsafe(n) {
			logutil.Fatalf("ShardMap: lost a node while rekeying within a shard")
		}
		w.Release()
		return true
	}
}
