package bench

import (
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/g-m-twostay/paged-maps/logutil"
)

// DefaultOpsPerThread matches the workload size the comparisons were tuned
// with.
const DefaultOpsPerThread = 100000

// ThreadCounts are the parallelism levels a full comparison sweeps.
var ThreadCounts = []int{1, 2, 4, 8, 16}

// Workload is one operation mix. Preload gives the number of sequential
// keys (value = key*2) inserted before timing starts.
type Workload struct {
	Name    string
	Preload uint64
	Op      func(m Map, s KeyStrategy, threadID, iteration uint64)
}

// Workloads returns the standard mixes.
func Workloads() []Workload {
	return []Workload{
		{Name: "insert", Op: func(m Map, s KeyStrategy, t, i uint64) {
			k := s.Key(t, i)
			m.Insert(k, k*2)
		}},
		{Name: "find", Preload: DefaultOpsPerThread, Op: func(m Map, s KeyStrategy, t, i uint64) {
			m.Find(s.Key(t, i) % DefaultOpsPerThread)
		}},
		{Name: "erase", Preload: DefaultOpsPerThread, Op: func(m Map, s KeyStrategy, t, i uint64) {
			m.Erase(s.Key(t, i) % DefaultOpsPerThread)
		}},
		{Name: "mixed90-10", Preload: DefaultOpsPerThread, Op: func(m Map, s KeyStrategy, t, i uint64) {
			k := s.Key(t, i)
			if i%10 == 9 {
				m.Insert(k, k*2)
			} else {
				m.Find(k % DefaultOpsPerThread)
			}
		}},
		{Name: "rekey", Preload: DefaultOpsPerThread, Op: func(m Map, s KeyStrategy, t, i uint64) {
			k := s.Key(t, i) % DefaultOpsPerThread
			if m.Rekey(k, k+DefaultOpsPerThread) {
				m.Rekey(k+DefaultOpsPerThread, k)
			}
		}},
	}
}

// Preload fills m with the sequential keys [0, n), value = key*2.
func Preload(m Map, n uint64) {
	for k := uint64(0); k < n; k++ {
		m.Insert(k, k*2)
	}
}

// Run executes w against m on a worker pool of the given size and returns
// the timing. Each worker drives opsPerThread operations.
func Run(m Map, w Workload, s KeyStrategy, threads int, opsPerThread uint64) Result {
	Preload(m, w.Preload)
	pool, err := ants.NewPool(threads)
	if err != nil {
		logutil.Fatalf("bench: pool of %d workers: %v", threads, err)
	}
	defer pool.Release()
	wg := &sync.WaitGroup{}
	start := time.Now()
	for t := 0; t < threads; t++ {
		tid := uint64(t)
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			for i := uint64(0); i < opsPerThread; i++ {
				w.Op(m, s, tid, i)
			}
		}); err != nil {
			wg.Done()
			logutil.Fatalf("bench: submit: %v", err)
		}
	}
	wg.Wait()
	return Result{
		Map:      m.Name(),
		Workload: w.Name,
		Strategy: s,
		Threads:  threads,
		Ops:      uint64(threads) * opsPerThread,
		Elapsed:  time.Since(start),
	}
}
