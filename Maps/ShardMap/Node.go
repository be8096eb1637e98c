// Package ShardMap implements a sharded concurrent hash map whose elements
// live in a paging object pool: element pointers stay valid until erased and
// never move, even across resizes.
package ShardMap

import "unsafe"

// A node's bucket field holds the index of the bucket it is linked into, or
// one of these states.
const (
	invalidBucket     uint32 = 0xFFFFFFFF // not linked into any bucket
	reassigningBucket uint32 = 0xFFFFFFFE // claimed by an in-flight rekey

	decOne = ^uint32(0)
)

// Pair is one stored element. Val may be read and written freely by whoever
// holds the pointer; the key is only readable, it changes solely through the
// map's rekey operations.
type Pair[K, V any] struct {
	key K
	Val V
}

// Key returns the element's current key.
func (u *Pair[K, V]) Key() K {
	return u.key
}

// node extends Pair with the intrusive chain link and bucket state. Pair
// must remain the first field: the map converts between *Pair and *node.
type node[K, V any] struct {
	Pair[K, V]
	next   unsafe.Pointer // *node[K, V], atomic
	bucket uint32         // atomic
}

func nodeOf[K, V any](p *Pair[K, V]) *node[K, V] {
	return (*node[K, V])(unsafe.Pointer(p))
}
