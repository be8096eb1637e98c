// Package Maps holds the numeric helpers shared by the map and pool
// packages: table sizing lookups and the Fibonacci hash mix.
package Maps

const fibonacciConstant uint64 = 11400714819323198485 // 2^64 / golden ratio

var tablePrimes = [...]uint32{
	1, 3, 7, 13, 31,
	53, 89, 211, 431, 827,
	1663, 4093, 8191, 16381, 32749,
	65519, 131071, 262139, 524287, 1048573,
	1572869, 2097143, 4194287, 8388587, 16777213,
	33554383, 67108859, 134217593, 268435367, 536870909,
	1073741789, 2147483647,
}

var powersOfTwo = [...]uint32{
	1, 2, 4, 8, 16, 32, 64, 128,
	256, 512, 1024, 2048, 4096, 8192,
	16384, 32768, 65536, 131072, 262144,
	524288, 1048576, 2097152, 4194304,
	8388608, 16777216, 33554432, 67108864,
	134217728, 268435456, 536870912,
	1073741824, 2147483648,
}

// NextTablePrime returns the smallest tabled prime >= v, saturating at the
// largest entry.
func NextTablePrime(v uint32) uint32 {
	for _, p := range tablePrimes {
		if p >= v {
			return p
		}
	}
	return tablePrimes[len(tablePrimes)-1]
}

// NextPowerOfTwo returns the smallest power of two >= v, saturating at 2^31.
func NextPowerOfTwo(v uint32) uint32 {
	for _, p := range powersOfTwo {
		if p >= v {
			return p
		}
	}
	return powersOfTwo[len(powersOfTwo)-1]
}

// Mix64 spreads the bits of h with a Fibonacci multiply. Suitable as the
// hash function for integer keys whose low bits are poorly distributed.
func Mix64(h uint64) uint64 {
	h ^= h >> 33
	return h * fibonacciConstant
}

// FibonacciIndex maps hash to a bucket index with shift significant bits of
// mix, the classic Fibonacci hashing scheme.
func FibonacciIndex(hash uint64, shift uint64) uint32 {
	hash ^= hash >> shift
	return uint32(fibonacciConstant * hash >> shift)
}
