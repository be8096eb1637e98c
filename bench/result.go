package bench

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Result records one workload run.
type Result struct {
	Map      string
	Workload string
	Strategy KeyStrategy
	Threads  int
	Ops      uint64
	Elapsed  time.Duration
}

// OpsPerSec returns the aggregate throughput.
func (u Result) OpsPerSec() float64 {
	if u.Elapsed <= 0 {
		return 0
	}
	return float64(u.Ops) / u.Elapsed.Seconds()
}

// NsPerOp returns the mean latency in nanoseconds.
func (u Result) NsPerOp() float64 {
	if u.Ops == 0 {
		return 0
	}
	return float64(u.Elapsed.Nanoseconds()) / float64(u.Ops)
}

func (u Result) String() string {
	return fmt.Sprintf("%s/%s/%s t=%d ops=%d in %v (%.0f ops/s, %.1f ns/op)",
		u.Map, u.Workload, u.Strategy, u.Threads, u.Ops, u.Elapsed, u.OpsPerSec(), u.NsPerOp())
}

// Log reports the result through the given logger.
func (u Result) Log(l *zap.Logger) {
	l.Info("workload done",
		zap.String("map", u.Map),
		zap.String("workload", u.Workload),
		zap.Stringer("strategy", u.Strategy),
		zap.Int("threads", u.Threads),
		zap.Uint64("ops", u.Ops),
		zap.Duration("elapsed", u.Elapsed),
		zap.Float64("opsPerSec", u.OpsPerSec()),
		zap.Float64("nsPerOp", u.NsPerOp()),
	)
}
