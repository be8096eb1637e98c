package bench

import (
	"sync"

	"github.com/alphadose/haxmap"
	cornelk "github.com/cornelk/hashmap"
	godsmap "github.com/emirpasic/gods/maps/hashmap"
	"github.com/google/btree"
	"github.com/petar/GoLLRB/llrb"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/g-m-twostay/paged-maps/Locks"
	"github.com/g-m-twostay/paged-maps/Maps"
	"github.com/g-m-twostay/paged-maps/Maps/ShardMap"
)

// Map is the uniform surface the workloads drive. Insert is
// insert-if-absent; Rekey moves a value to a new key and fails when the old
// key is missing or the new one taken. Wrappers without a native rekey
// emulate it and need not be atomic about it.
type Map interface {
	Name() string
	Insert(k, v uint64) bool
	Find(k uint64) (uint64, bool)
	Erase(k uint64) bool
	Rekey(oldKey, newKey uint64) bool
	Size() int
	ForEach(f func(k, v uint64) bool)
}

// All returns a fresh instance of every wrapper.
func All() []Map {
	return []Map{
		NewShardMap(), NewXSyncMap(), NewHaxMap(), NewCornelkMap(),
		NewSyncMap(), NewLockedGodsMap(), NewLockedBTree(), NewLockedLLRB(),
	}
}

// shardMap is the map under test.
type shardMap struct {
	m *ShardMap.ShardMap[uint64, uint64]
}

func NewShardMap() Map {
	return &shardMap{ShardMap.New[uint64, uint64](16, 64, Maps.Mix64,
		func(x, y uint64) bool { return x == y })}
}

func (u *shardMap) Name() string                 { return "ShardMap" }
func (u *shardMap) Insert(k, v uint64) bool      { return u.m.Insert(k, v) != nil }
func (u *shardMap) Find(k uint64) (uint64, bool) { return u.m.Find(k) }
func (u *shardMap) Erase(k uint64) bool          { return u.m.Erase(k) }
func (u *shardMap) Rekey(o, n uint64) bool       { return u.m.Rekey(o, n) }
func (u *shardMap) Size() int                    { return int(u.m.Size()) }
func (u *shardMap) ForEach(f func(k, v uint64) bool) {
	u.m.Range(func(k uint64, v *uint64) bool { return f(k, *v) })
}

type xsyncMap struct {
	m *xsync.MapOf[uint64, uint64]
}

func NewXSyncMap() Map { return &xsyncMap{xsync.NewMapOf[uint64, uint64]()} }

func (u *xsyncMap) Name() string { return "xsync.MapOf" }
func (u *xsyncMap) Insert(k, v uint64) bool {
	_, loaded := u.m.LoadOrStore(k, v)
	return !loaded
}
func (u *xsyncMap) Find(k uint64) (uint64, bool) { return u.m.Load(k) }
func (u *xsyncMap) Erase(k uint64) bool {
	_, loaded := u.m.LoadAndDelete(k)
	return loaded
}
func (u *xsyncMap) Rekey(o, n uint64) bool {
	v, ok := u.m.Load(o)
	if !ok {
		return false
	}
	if _, loaded := u.m.LoadOrStore(n, v); loaded {
		return false
	}
	u.m.Delete(o)
	return true
}
func (u *xsyncMap) Size() int                        { return u.m.Size() }
func (u *xsyncMap) ForEach(f func(k, v uint64) bool) { u.m.Range(f) }

type haxMap struct {
	m *haxmap.Map[uint64, uint64]
}

func NewHaxMap() Map { return &haxMap{haxmap.New[uint64, uint64]()} }

func (u *haxMap) Name() string { return "haxmap" }
func (u *haxMap) Insert(k, v uint64) bool {
	_, loaded := u.m.GetOrSet(k, v)
	return !loaded
}
func (u *haxMap) Find(k uint64) (uint64, bool) { return u.m.Get(k) }
func (u *haxMap) Erase(k uint64) bool {
	if _, ok := u.m.Get(k); !ok {
		return false
	}
	u.m.Del(k)
	return true
}
func (u *haxMap) Rekey(o, n uint64) bool {
	v, ok := u.m.Get(o)
	if !ok {
		return false
	}
	if _, loaded := u.m.GetOrSet(n, v); loaded {
		return false
	}
	u.m.Del(o)
	return true
}
func (u *haxMap) Size() int                        { return int(u.m.Len()) }
func (u *haxMap) ForEach(f func(k, v uint64) bool) { u.m.ForEach(f) }

type cornelkMap struct {
	m *cornelk.Map[uint64, uint64]
}

func NewCornelkMap() Map { return &cornelkMap{cornelk.New[uint64, uint64]()} }

func (u *cornelkMap) Name() string                 { return "cornelk/hashmap" }
func (u *cornelkMap) Insert(k, v uint64) bool      { return u.m.Insert(k, v) }
func (u *cornelkMap) Find(k uint64) (uint64, bool) { return u.m.Get(k) }
func (u *cornelkMap) Erase(k uint64) bool          { return u.m.Del(k) }
func (u *cornelkMap) Rekey(o, n uint64) bool {
	v, ok := u.m.Get(o)
	if !ok {
		return false
	}
	if !u.m.Insert(n, v) {
		return false
	}
	u.m.Del(o)
	return true
}
func (u *cornelkMap) Size() int                        { return u.m.Len() }
func (u *cornelkMap) ForEach(f func(k, v uint64) bool) { u.m.Range(f) }

type stdSyncMap struct {
	m sync.Map
}

func NewSyncMap() Map { return &stdSyncMap{} }

func (u *stdSyncMap) Name() string { return "sync.Map" }
func (u *stdSyncMap) Insert(k, v uint64) bool {
	_, loaded := u.m.LoadOrStore(k, v)
	return !loaded
}
func (u *stdSyncMap) Find(k uint64) (uint64, bool) {
	v, ok := u.m.Load(k)
	if !ok {
		return 0, false
	}
	return v.(uint64), true
}
func (u *stdSyncMap) Erase(k uint64) bool {
	_, loaded := u.m.LoadAndDelete(k)
	return loaded
}
func (u *stdSyncMap) Rekey(o, n uint64) bool {
	v, ok := u.m.Load(o)
	if !ok {
		return false
	}
	if _, loaded := u.m.LoadOrStore(n, v); loaded {
		return false
	}
	u.m.Delete(o)
	return true
}
func (u *stdSyncMap) Size() int {
	n := 0
	u.m.Range(func(any, any) bool { n++; return true })
	return n
}
func (u *stdSyncMap) ForEach(f func(k, v uint64) bool) {
	u.m.Range(func(k, v any) bool { return f(k.(uint64), v.(uint64)) })
}

// lockedGodsMap guards a gods hashmap with a counting spinlock, the analog
// of the classic "one big lock around a plain hash map" baseline.
type lockedGodsMap struct {
	lock Locks.CountingSpinlock
	m    *godsmap.Map
}

func NewLockedGodsMap() Map { return &lockedGodsMap{m: godsmap.New()} }

func (u *lockedGodsMap) Name() string { return "gods/hashmap+spinlock" }
func (u *lockedGodsMap) Insert(k, v uint64) bool {
	g := Locks.NewWriteGuard(&u.lock)
	defer g.Release()
	if _, found := u.m.Get(k); found {
		return false
	}
	u.m.Put(k, v)
	return true
}
func (u *lockedGodsMap) Find(k uint64) (uint64, bool) {
	g := Locks.NewReadGuard(&u.lock)
	defer g.Release()
	if v, found := u.m.Get(k); found {
		return v.(uint64), true
	}
	return 0, false
}
func (u *lockedGodsMap) Erase(k uint64) bool {
	g := Locks.NewWriteGuard(&u.lock)
	defer g.Release()
	if _, found := u.m.Get(k); !found {
		return false
	}
	u.m.Remove(k)
	return true
}
func (u *lockedGodsMap) Rekey(o, n uint64) bool {
	g := Locks.NewWriteGuard(&u.lock)
	defer g.Release()
	v, found := u.m.Get(o)
	if !found {
		return false
	}
	if _, taken := u.m.Get(n); taken {
		return false
	}
	u.m.Remove(o)
	u.m.Put(n, v)
	return true
}
func (u *lockedGodsMap) Size() int {
	g := Locks.NewReadGuard(&u.lock)
	defer g.Release()
	return u.m.Size()
}
func (u *lockedGodsMap) ForEach(f func(k, v uint64) bool) {
	g := Locks.NewReadGuard(&u.lock)
	defer g.Release()
	for _, k := range u.m.Keys() {
		v, _ := u.m.Get(k)
		if !f(k.(uint64), v.(uint64)) {
			return
		}
	}
}

type kv struct {
	k, v uint64
}

// lockedBTree guards a google/btree ordered map; ordered containers were
// part of the original comparison set.
type lockedBTree struct {
	lock Locks.CountingSpinlock
	m    *btree.BTreeG[kv]
}

func NewLockedBTree() Map {
	return &lockedBTree{m: btree.NewG[kv](32, func(a, b kv) bool { return a.k < b.k })}
}

func (u *lockedBTree) Name() string { return "google/btree+spinlock" }
func (u *lockedBTree) Insert(k, v uint64) bool {
	g := Locks.NewWriteGuard(&u.lock)
	defer g.Release()
	if u.m.Has(kv{k: k}) {
		return false
	}
	u.m.ReplaceOrInsert(kv{k, v})
	return true
}
func (u *lockedBTree) Find(k uint64) (uint64, bool) {
	g := Locks.NewReadGuard(&u.lock)
	defer g.Release()
	it, ok := u.m.Get(kv{k: k})
	return it.v, ok
}
func (u *lockedBTree) Erase(k uint64) bool {
	g := Locks.NewWriteGuard(&u.lock)
	defer g.Release()
	_, ok := u.m.Delete(kv{k: k})
	return ok
}
func (u *lockedBTree) Rekey(o, n uint64) bool {
	g := Locks.NewWriteGuard(&u.lock)
	defer g.Release()
	it, ok := u.m.Get(kv{k: o})
	if !ok || u.m.Has(kv{k: n}) {
		return false
	}
	u.m.Delete(kv{k: o})
	u.m.ReplaceOrInsert(kv{n, it.v})
	return true
}
func (u *lockedBTree) Size() int {
	g := Locks.NewReadGuard(&u.lock)
	defer g.Release()
	return u.m.Len()
}
func (u *lockedBTree) ForEach(f func(k, v uint64) bool) {
	g := Locks.NewReadGuard(&u.lock)
	defer g.Release()
	u.m.Ascend(func(it kv) bool { return f(it.k, it.v) })
}

type llrbItem kv

func (u llrbItem) Less(than llrb.Item) bool { return u.k < than.(llrbItem).k }

// lockedLLRB guards a GoLLRB red-black tree the same way.
type lockedLLRB struct {
	lock Locks.CountingSpinlock
	m    *llrb.LLRB
}

func NewLockedLLRB() Map { return &lockedLLRB{m: llrb.New()} }

func (u *lockedLLRB) Name() string { return "GoLLRB+spinlock" }
func (u *lockedLLRB) Insert(k, v uint64) bool {
	g := Locks.NewWriteGuard(&u.lock)
	defer g.Release()
	if u.m.Has(llrbItem{k: k}) {
		return false
	}
	u.m.ReplaceOrInsert(llrbItem{k, v})
	return true
}
func (u *lockedLLRB) Find(k uint64) (uint64, bool) {
	g := Locks.NewReadGuard(&u.lock)
	defer g.Release()
	if it := u.m.Get(llrbItem{k: k}); it != nil {
		return it.(llrbItem).v, true
	}
	return 0, false
}
func (u *lockedLLRB) Erase(k uint64) bool {
	g := Locks.NewWriteGuard(&u.lock)
	defer g.Release()
	return u.m.Delete(llrbItem{k: k}) != nil
}
func (u *lockedLLRB) Rekey(o, n uint64) bool {
	g := Locks.NewWriteGuard(&u.lock)
	defer g.Release()
	it := u.m.Get(llrbItem{k: o})
	if it == nil || u.m.Has(llrbItem{k: n}) {
		return false
	}
	u.m.Delete(llrbItem{k: o})
	u.m.ReplaceOrInsert(llrbItem{n, it.(llrbItem).v})
	return true
}
func (u *lockedLLRB) Size() int {
	g := Locks.NewReadGuard(&u.lock)
	defer g.Release()
	return u.m.Len()
}
func (u *lockedLLRB) ForEach(f func(k, v uint64) bool) {
	g := Locks.NewReadGuard(&u.lock)
	defer g.Release()
	u.m.AscendGreaterOrEqual(llrbItem{}, func(it llrb.Item) bool {
		i := it.(llrbItem)
		return f(i.k, i.v)
	})
}
