package ShardMap

import (
	"sync/atomic"

	"github.com/g-m-twostay/paged-maps/Locks"
	"github.com/g-m-twostay/paged-maps/Pools"
	"github.com/g-m-twostay/paged-maps/logutil"
)

// Defaults for New.
const (
	DefaultShards   uint32 = 4
	DefaultPageSize uint32 = 8
)

// policy is the lock-or-no-op strategy that lets the concurrent and
// Lockless method pairs share one body: synced takes real locks and uses
// atomics, unsynced trusts the caller's exclusive access.
type policy interface {
	lock(*Locks.CountingSpinlock)
	unlock(*Locks.CountingSpinlock)
	rlock(*Locks.CountingSpinlock)
	runlock(*Locks.CountingSpinlock)
	add(*uint32, uint32)
	load(*uint32) uint32
	cas(*uint32, uint32, uint32) bool
	store(*uint32, uint32)
}

type synced struct{}

func (synced) lock(l *Locks.CountingSpinlock)    { l.Lock() }
func (synced) unlock(l *Locks.CountingSpinlock)  { l.Unlock() }
func (synced) rlock(l *Locks.CountingSpinlock)   { l.RLock() }
func (synced) runlock(l *Locks.CountingSpinlock) { l.RUnlock() }
func (synced) add(p *uint32, d uint32)           { atomic.AddUint32(p, d) }
func (synced) load(p *uint32) uint32             { return atomic.LoadUint32(p) }
func (synced) cas(p *uint32, o, n uint32) bool   { return atomic.CompareAndSwapUint32(p, o, n) }
func (synced) store(p *uint32, v uint32)         { atomic.StoreUint32(p, v) }

type unsynced struct{}

func (unsynced) lock(*Locks.CountingSpinlock)    {}
func (unsynced) unlock(*Locks.CountingSpinlock)  {}
func (unsynced) rlock(*Locks.CountingSpinlock)   {}
func (unsynced) runlock(*Locks.CountingSpinlock) {}
func (unsynced) add(p *uint32, d uint32)         { *p += d }
func (unsynced) load(p *uint32) uint32           { return *p }
func (unsynced) cas(p *uint32, o, n uint32) bool {
	if *p != o {
		return false
	}
	*p = n
	return true
}
func (unsynced) store(p *uint32, v uint32) { *p = v }

// ShardMap is a hash map split into a fixed power-of-two number of shards,
// each with its own lock and bucket table, all sharing one paging pool for
// element storage. Returned *Pair pointers stay valid and stable until the
// element is erased.
//
// Every operation comes in two forms: the plain one is safe for concurrent
// use, the ...Lockless one skips all synchronization for phases where the
// caller has exclusive access.
type ShardMap[K, V any] struct {
	shards    []shard[K, V]
	pool      *Pools.Paging[node[K, V]]
	hasher    func(K) uint64
	cmp       func(K, K) bool
	shardMask uint64
	total     uint32
}

// New creates a map with numShards shards (a power of two) whose element
// pool grows pageSize slots (a power of two) at a time. hasher must be
// consistent with cmp: equal keys hash equally.
func New[K, V any](numShards, pageSize uint32, hasher func(K) uint64, cmp func(K, K) bool) *ShardMap[K, V] {
	if numShards == 0 || numShards&(numShards-1) != 0 {
		logutil.Fatalf("ShardMap.New: shard count %d is not a power of two", numShards)
	}
	u := &ShardMap[K, V]{
		shards:    make([]shard[K, V], numShards),
		pool:      Pools.NewPaging[node[K, V]](pageSize),
		hasher:    hasher,
		cmp:       cmp,
		shardMask: uint64(numShards - 1),
	}
	for i := range u.shards {
		u.shards[i].pool = u.pool
	}
	return u
}

func (u *ShardMap[K, V]) shardFor(hash uint64) *shard[K, V] {
	return &u.shards[hash&u.shardMask]
}

// Size returns the number of elements.
func (u *ShardMap[K, V]) Size() uint32 {
	return atomic.LoadUint32(&u.total)
}

// IsEmpty reports whether the map holds no elements.
func (u *ShardMap[K, V]) IsEmpty() bool {
	return u.Size() == 0
}

func (u *ShardMap[K, V]) insert(k K, v V, p policy) *Pair[K, V] {
	h := u.hasher(k)
	s := u.shardFor(h)
	p.lock(&s.lock)
	pr := s.insert(h, k, v, u.hasher, u.cmp)
	p.unlock(&s.lock)
	if pr != nil {
		p.add(&u.total, 1)
	}
	return pr
}

// Insert adds k→v and returns the stored pair, or nil when k is already
// present; a failed insert changes nothing.
func (u *ShardMap[K, V]) Insert(k K, v V) *Pair[K, V] {
	return u.insert(k, v, synced{})
}

// InsertLockless is Insert for single-threaded phases.
func (u *ShardMap[K, V]) InsertLockless(k K, v V) *Pair[K, V] {
	return u.insert(k, v, unsynced{})
}

func (u *ShardMap[K, V]) findPair(k K, p policy) *Pair[K, V] {
	h := u.hasher(k)
	s := u.shardFor(h)
	p.rlock(&s.lock)
	n := s.find(h, k, u.cmp)
	p.runlock(&s.lock)
	if n == nil {
		return nil
	}
	return &n.Pair
}

// FindPair returns the stored pair for k, or nil.
func (u *ShardMap[K, V]) FindPair(k K) *Pair[K, V] {
	return u.findPair(k, synced{})
}

// FindPairLockless is FindPair for single-threaded phases.
func (u *ShardMap[K, V]) FindPairLockless(k K) *Pair[K, V] {
	return u.findPair(k, unsynced{})
}

// Find returns a copy of the value stored for k.
func (u *ShardMap[K, V]) Find(k K) (V, bool) {
	if pr := u.findPair(k, synced{}); pr != nil {
		return pr.Val, true
	}
	var zero V
	return zero, false
}

// FindLockless is Find for single-threaded phases.
func (u *ShardMap[K, V]) FindLockless(k K) (V, bool) {
	if pr := u.findPair(k, unsynced{}); pr != nil {
		return pr.Val, true
	}
	var zero V
	return zero, false
}

func (u *ShardMap[K, V]) erase(k K, p policy) bool {
	h := u.hasher(k)
	s := u.shardFor(h)
	p.lock(&s.lock)
	ok := s.removeKey(h, k, u.cmp)
	p.unlock(&s.lock)
	if ok {
		p.add(&u.total, decOne)
	}
	return ok
}

// Erase removes the element with key k.
func (u *ShardMap[K, V]) Erase(k K) bool {
	return u.erase(k, synced{})
}

// EraseLockless is Erase for single-threaded phases.
func (u *ShardMap[K, V]) EraseLockless(k K) bool {
	return u.erase(k, unsynced{})
}

func (u *ShardMap[K, V]) erasePair(pr *Pair[K, V], p policy) bool {
	if pr == nil {
		return false
	}
	n := nodeOf(pr)
	s := u.shardFor(u.hasher(n.key))
	p.lock(&s.lock)
	ok := s.removeNode(n)
	p.unlock(&s.lock)
	if ok {
		p.add(&u.total, decOne)
	}
	return ok
}

// ErasePair removes the element pr, previously returned by Insert or
// FindPair. The pointer is invalid afterwards.
func (u *ShardMap[K, V]) ErasePair(pr *Pair[K, V]) bool {
	return u.erasePair(pr, synced{})
}

// ErasePairLockless is ErasePair for single-threaded phases.
func (u *ShardMap[K, V]) ErasePairLockless(pr *Pair[K, V]) bool {
	return u.erasePair(pr, unsynced{})
}

// Rekey changes the key of the element stored under k to newKey, keeping the
// element's storage and value. Fails when k is absent, when a same-shard
// newKey is already present, or when the element is contended by another
// rekey. When the element moves between shards there is a window where
// lookups on either key miss, and finding newKey already present after the
// element has been detached is fatal. The cross-shard claim is also made
// after the lookup's lock is dropped: an element erased and its storage
// re-reserved in that gap hands the claim to the storage's new occupant.
func (u *ShardMap[K, V]) Rekey(k, newKey K) bool {
	oldHash, newHash := u.hasher(k), u.hasher(newKey)
	os, ns := u.shardFor(oldHash), u.shardFor(newHash)
	if os == ns {
		return os.rekeyConcurrent(oldHash, newHash, k, newKey, u.cmp)
	}
	p := synced{}
	p.rlock(&os.lock)
	n := os.find(oldHash, k, u.cmp)
	p.runlock(&os.lock)
	if n == nil {
		return false
	}
	return u.rekeyAcross(os, ns, oldHash, newHash, n, newKey, p)
}

// RekeyLockless is Rekey for single-threaded phases.
func (u *ShardMap[K, V]) RekeyLockless(k, newKey K) bool {
	oldHash, newHash := u.hasher(k), u.hasher(newKey)
	os, ns := u.shardFor(oldHash), u.shardFor(newHash)
	if os == ns {
		return os.rekeyLockless(oldHash, newHash, k, newKey, u.cmp)
	}
	n := os.find(oldHash, k, u.cmp)
	if n == nil {
		return false
	}
	return u.rekeyAcross(os, ns, oldHash, newHash, n, newKey, unsynced{})
}

// RekeyPair is Rekey for an element already in hand.
func (u *ShardMap[K, V]) RekeyPair(pr *Pair[K, V], newKey K) bool {
	return u.rekeyPair(pr, newKey, true)
}

// RekeyPairLockless is RekeyPair for single-threaded phases.
func (u *ShardMap[K, V]) RekeyPairLockless(pr *Pair[K, V], newKey K) bool {
	return u.rekeyPair(pr, newKey, false)
}

func (u *ShardMap[K, V]) rekeyPair(pr *Pair[K, V], newKey K, concurrent bool) bool {
	if pr == nil {
		return false
	}
	n := nodeOf(pr)
	oldHash, newHash := u.hasher(n.key), u.hasher(newKey)
	os, ns := u.shardFor(oldHash), u.shardFor(newHash)
	if os == ns {
		if concurrent {
			return os.rekeyNode(Locks.NewReadGuard(&os.lock), oldHash, newHash, n, newKey, u.cmp)
		}
		return os.rekeyLockless(oldHash, newHash, n.key, newKey, u.cmp)
	}
	if concurrent {
		return u.rekeyAcross(os, ns, oldHash, newHash, n, newKey, synced{})
	}
	return u.rekeyAcross(os, ns, oldHash, newHash, n, newKey, unsynced{})
}

// rekeyAcross moves n from shard os to shard ns: claim the node's bucket
// state, unlink it from the old shard, mutate the key while it is invisible,
// then insert it fresh into the new shard. The element is missing from both
// shards inside the window; that is the documented cost of a cross-shard
// rekey. The old slot is released only after the move lands.
func (u *ShardMap[K, V]) rekeyAcross(os, ns *shard[K, V], oldHash, newHash uint64, n *node[K, V], newKey K, p policy) bool {
	// Refuse an obviously taken target before detaching anything; a key
	// inserted concurrently after this check still fatals below.
	p.rlock(&ns.lock)
	taken := ns.find(newHash, newKey, u.cmp) != nil
	p.runlock(&ns.lock)
	if taken {
		return false
	}
	for {
		ob := p.load(&n.bucket)
		if ob >= reassigningBucket {
			// Erased or held by another rekey.
			return false
		}
		if p.cas(&n.bucket, ob, reassigningBucket) {
			break
		}
	}
	p.lock(&os.lock)
	var removed *node[K, V]
	if len(os.buckets) != 0 {
		removed = os.buckets[os.bucketIndex(oldHash)].eraseNodeUnsafe(n)
	}
	if removed != nil {
		os.count--
	}
	p.unlock(&os.lock)
	if removed == nil {
		// A racing erase unlinked it and left the storage to us.
		u.pool.Release(n)
		return false
	}
	n.key = newKey
	p.store(&n.bucket, invalidBucket)
	p.lock(&ns.lock)
	pr := ns.insert(newHash, newKey, n.Val, u.hasher, u.cmp)
	p.unlock(&ns.lock)
	if pr == nil {
		logutil.Fatalf("ShardMap: lost an element rekeying across shards: new key already present")
	}
	u.pool.Release(n)
	return true
}

// Reserve grows every shard's bucket table and preallocates pool pages so n
// elements fit without resizing. Takes each shard's write lock in turn.
func (u *ShardMap[K, V]) Reserve(n uint32) {
	perShard := (n + uint32(len(u.shards)) - 1) / uint32(len(u.shards))
	for i := range u.shards {
		s := &u.shards[i]
		s.lock.Lock()
		s.reserve(perShard, u.hasher)
		s.lock.Unlock()
	}
	u.pool.Preallocate(n)
}

// Clear drops every element and the pool's pages. Not safe concurrently
// with any other operation; outstanding pairs become invalid.
func (u *ShardMap[K, V]) Clear() {
	for i := range u.shards {
		u.shards[i].clear()
	}
	u.pool.Clear()
	atomic.StoreUint32(&u.total, 0)
}

// Range calls f for each element until f returns false, by walking the pool
// rather than the bucket tables. Not safe concurrently with writes.
func (u *ShardMap[K, V]) Range(f func(k K, v *V) bool) {
	u.pool.Range(func(n *node[K, V]) bool {
		return f(n.key, &n.Val)
	})
}
