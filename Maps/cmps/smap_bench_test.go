// Package cmps benchmarks the shard map against third-party concurrent maps
// under the same access shapes.
package cmps

import (
	"sync/atomic"
	"testing"

	"github.com/g-m-twostay/paged-maps/Maps"
	"github.com/g-m-twostay/paged-maps/Maps/ShardMap"
)

// sideEff keeps loads from being optimized away.
var sideEff bool

const (
	hits, misses = 1024, 1024
	readRatio    = 4
)

func hashU64(v uint64) uint64 { return Maps.Mix64(v) }
func cmpU64(x, y uint64) bool { return x == y }

func fillShardMap(b *testing.B, keyRange uint64) *ShardMap.ShardMap[uint64, uint64] {
	b.Helper()
	m := ShardMap.New[uint64, uint64](16, 64, hashU64, cmpU64)
	m.Reserve(uint32(keyRange))
	for i := uint64(0); i < keyRange; i++ {
		m.InsertLockless(i, i*2)
	}
	return m
}

func BenchmarkShardMap_Find_Balanced(b *testing.B) {
	m := fillShardMap(b, hits)
	var count atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, sideEff = m.Find((count.Add(1) - 1) % (hits + misses))
		}
	})
}

func BenchmarkShardMap_InsertErase_Balanced(b *testing.B) {
	m := fillShardMap(b, hits)
	var count atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			a := count.Add(1) - 1
			c := a % (hits + misses)
			if a%2 == 0 {
				m.Insert(c, a)
			} else {
				m.Erase(c)
			}
		}
	})
}

func BenchmarkShardMap_Case1(b *testing.B) {
	m := ShardMap.New[uint64, uint64](16, 64, hashU64, cmpU64)
	var loaded, count atomic.Uint64
	loaded.Store(1)
	m.Insert(0, 0)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			a := count.Add(1) - 1
			if a%readRatio == 0 {
				m.Insert(loaded.Add(1)-1, a)
			} else {
				_, sideEff = m.Find(a % loaded.Load())
			}
		}
	})
}

func BenchmarkShardMap_Rekey(b *testing.B) {
	m := fillShardMap(b, hits)
	var count atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			a := count.Add(1) - 1
			c := a % hits
			if m.Rekey(c, c+hits) {
				m.Rekey(c+hits, c)
			}
		}
	})
}
