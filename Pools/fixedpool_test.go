package Pools

import (
	"math/bits"
	"runtime"
	"sync"
	"testing"
)

const (
	poolThreads = 8
	poolIters   = 1 << 10
)

// popCount tallies the occupancy bitmap; at any quiescent point it must
// agree with Size().
func popCount[T any](P *Fixed[T]) uint32 {
	n := uint32(0)
	for i := range P.words {
		n += uint32(bits.OnesCount32(P.words[i].Load()))
	}
	return n
}

func TestFixed_ReserveRelease(t *testing.T) {
	P := NewFixed[int](8)
	ptrs := make([]*int, 0, 8)
	for i := 0; i < 8; i++ {
		p := P.Reserve(i)
		if p == nil {
			t.Fatalf("reserve %v failed on non-full pool", i)
		}
		if *p != i {
			t.Errorf("slot holds %v, want %v", *p, i)
		}
		ptrs = append(ptrs, p)
	}
	if !P.Full() || P.Size() != 8 {
		t.Errorf("full pool: size = %v", P.Size())
	}
	if pc := popCount(P); pc != P.Size() {
		t.Errorf("popcount %v != size %v", pc, P.Size())
	}
	if P.Reserve(9) != nil {
		t.Error("reserve succeeded on full pool")
	}
	for i, p := range ptrs {
		if *p != i {
			t.Errorf("slot %v clobbered: %v", i, *p)
		}
		if !P.Release(p) {
			t.Errorf("release %v failed", i)
		}
	}
	if P.Size() != 0 {
		t.Errorf("emptied pool: size = %v", P.Size())
	}
	if pc := popCount(P); pc != 0 {
		t.Errorf("popcount %v on an emptied pool", pc)
	}
	if P.Reserve(42) == nil {
		t.Error("reserve failed after draining")
	}
}

func TestFixed_DoubleFree(t *testing.T) {
	P := NewFixed[int](4)
	p := P.Reserve(1)
	P.Release(p)
	defer func() {
		if recover() == nil {
			t.Error("double free did not panic")
		}
	}()
	P.Release(p)
}

func TestFixed_ForeignPointer(t *testing.T) {
	P := NewFixed[int](4)
	x := 7
	if P.Release(&x) {
		t.Error("released a pointer the pool does not own")
	}
}

func TestFixed_Range(t *testing.T) {
	P := NewFixed[int](16)
	for i := 0; i < 10; i++ {
		P.Reserve(i)
	}
	sum, n := 0, 0
	P.Range(func(p *int) bool {
		sum += *p
		n++
		return true
	})
	if n != 10 || sum != 45 {
		t.Errorf("ranged %v slots summing %v, want 10 and 45", n, sum)
	}
	n = 0
	P.Range(func(p *int) bool {
		n++
		return n < 3
	})
	if n != 3 {
		t.Errorf("early stop ranged %v slots, want 3", n)
	}
}

func TestFixed_Clear(t *testing.T) {
	P := NewFixed[int](8)
	for i := 0; i < 8; i++ {
		P.Reserve(i)
	}
	P.Clear()
	if P.Size() != 0 {
		t.Errorf("cleared pool: size = %v", P.Size())
	}
	if P.Reserve(1) == nil {
		t.Error("reserve failed after clear")
	}
}

// Each goroutine cycles reserve/verify/release with its own tag; a slot
// handed to two owners at once shows up as a clobbered tag.
func TestFixed_Concurrent(t *testing.T) {
	P := NewFixed[int](64)
	wg := &sync.WaitGroup{}
	wg.Add(poolThreads)
	for g := 0; g < poolThreads; g++ {
		go func(tag int) {
			defer wg.Done()
			for i := 0; i < poolIters; i++ {
				p := P.Reserve(tag)
				if p == nil {
					continue
				}
				runtime.Gosched()
				if *p != tag {
					t.Errorf("slot clobbered: %v, want %v", *p, tag)
					return
				}
				P.Release(p)
			}
		}(g + 1)
	}
	wg.Wait()
	if P.Size() != 0 {
		t.Errorf("drained pool: size = %v", P.Size())
	}
	if pc := popCount(P); pc != P.Size() {
		t.Errorf("popcount %v != size %v after the stress", pc, P.Size())
	}
	// Counter and bitmap also agree at a half-full barrier.
	for i := 0; i < 32; i++ {
		P.Reserve(i)
	}
	if pc := popCount(P); pc != P.Size() || pc != 32 {
		t.Errorf("popcount %v, size %v, want 32", pc, P.Size())
	}
}
