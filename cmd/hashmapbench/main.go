// hashmapbench sweeps the comparison workloads over every map wrapper and
// reports throughput.
package main

import (
	"flag"
	"strings"

	"go.uber.org/zap"

	"github.com/g-m-twostay/paged-maps/bench"
	"github.com/g-m-twostay/paged-maps/logutil"
)

func main() {
	ops := flag.Uint64("ops", bench.DefaultOpsPerThread, "operations per worker")
	workload := flag.String("workload", "", "run only this workload")
	mapName := flag.String("map", "", "run only wrappers whose name contains this")
	strategy := flag.String("keys", "sequential", "key strategy: sequential|random|contended|strided")
	flag.Parse()

	log := logutil.Logger()
	defer log.Sync()

	strategies := map[string]bench.KeyStrategy{
		"sequential": bench.Sequential,
		"random":     bench.Random,
		"contended":  bench.Contended,
		"strided":    bench.Strided,
	}
	s, ok := strategies[*strategy]
	if !ok {
		logutil.Fatalf("unknown key strategy %q", *strategy)
	}

	for _, w := range bench.Workloads() {
		if *workload != "" && w.Name != *workload {
			continue
		}
		for _, threads := range bench.ThreadCounts {
			for _, m := range bench.All() {
				if *mapName != "" && !strings.Contains(m.Name(), *mapName) {
					continue
				}
				res := bench.Run(m, w, s, threads, *ops)
				res.Log(log)
			}
		}
	}
	log.Info("sweep complete",
		zap.Uint64("opsPerThread", *ops),
		zap.Ints("threadCounts", bench.ThreadCounts))
}
