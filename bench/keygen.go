// Package bench is a workload harness comparing the shard map against other
// concurrent and externally locked maps: key generation strategies, map
// wrappers with a uniform surface, a pooled runner and result records.
package bench

import "math/rand/v2"

// KeyStrategy selects how workload keys are produced.
type KeyStrategy uint8

const (
	// Sequential gives every thread its own dense key range.
	Sequential KeyStrategy = iota
	// Random draws uniform keys from a fixed space.
	Random
	// Contended cycles all threads through the same 100 keys.
	Contended
	// Strided interleaves the threads' keys across the space.
	Strided
)

const (
	sequentialRange = 1000000
	contendedKeys   = 100
	randomSpace     = 1 << 20
	stride          = 64
)

func (u KeyStrategy) String() string {
	switch u {
	case Sequential:
		return "sequential"
	case Random:
		return "random"
	case Contended:
		return "contended"
	case Strided:
		return "strided"
	}
	return "unknown"
}

// Key produces the iteration-th key for threadID under the strategy.
func (u KeyStrategy) Key(threadID, iteration uint64) uint64 {
	switch u {
	case Random:
		return rand.Uint64N(randomSpace)
	case Contended:
		return iteration % contendedKeys
	case Strided:
		return iteration*stride + threadID
	default:
		return threadID*sequentialRange + iteration
	}
}
