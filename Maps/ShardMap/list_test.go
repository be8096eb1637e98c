package ShardMap

import "testing"

func mkNode(k, v uint64) *node[uint64, uint64] {
	return &node[uint64, uint64]{Pair: Pair[uint64, uint64]{key: k, Val: v}}
}

func eqU64(a, b uint64) bool { return a == b }

func TestList_InsertFindErase(t *testing.T) {
	l := &list[uint64, uint64]{}
	for i := uint64(0); i < 8; i++ {
		if !l.insert(mkNode(i, i*2)) {
			t.Fatalf("insert %v failed", i)
		}
	}
	for i := uint64(0); i < 8; i++ {
		n := l.find(i, eqU64)
		if n == nil || n.Val != i*2 {
			t.Fatalf("find %v: %+v", i, n)
		}
	}
	if l.find(99, eqU64) != nil {
		t.Error("found absent key")
	}
	if n := l.erase(3, eqU64); n == nil || n.key != 3 {
		t.Fatalf("erase 3 returned %+v", n)
	}
	if l.find(3, eqU64) != nil {
		t.Error("erased key still found")
	}
	if l.erase(3, eqU64) != nil {
		t.Error("erased an absent key")
	}
}

func TestList_EraseNode(t *testing.T) {
	l := &list[uint64, uint64]{}
	a, b := mkNode(1, 1), mkNode(1, 2)
	l.insert(a)
	l.insert(b)
	if l.eraseNode(a) != a {
		t.Fatal("eraseNode missed its target")
	}
	// The duplicate with the same key must survive.
	if n := l.find(1, eqU64); n != b {
		t.Errorf("wrong node left behind: %+v", n)
	}
	if l.eraseNode(a) != nil {
		t.Error("erased a detached node")
	}
}

func TestList_FindLast(t *testing.T) {
	l := &list[uint64, uint64]{}
	oldest := mkNode(5, 1)
	l.insert(oldest)
	l.insert(mkNode(6, 0))
	newest := mkNode(5, 2)
	l.insert(newest)
	// Head pushes mean the last match in chain order is the oldest insert.
	if n := l.findLast(5, eqU64); n != oldest {
		t.Errorf("findLast returned %+v, want the oldest", n)
	}
	if l.findLast(7, eqU64) != nil {
		t.Error("findLast found absent key")
	}
}

func TestList_InsertUnique(t *testing.T) {
	l := &list[uint64, uint64]{}
	if !l.insertUnique(mkNode(1, 1), eqU64) {
		t.Fatal("first insertUnique failed")
	}
	if l.insertUnique(mkNode(1, 2), eqU64) {
		t.Error("duplicate insertUnique succeeded")
	}
	if n := l.find(1, eqU64); n == nil || n.Val != 1 {
		t.Errorf("original displaced: %+v", n)
	}
}

func TestList_InsertUniqueConcurrent(t *testing.T) {
	l := &list[uint64, uint64]{}
	l.insert(mkNode(1, 1))
	if l.insertUniqueConcurrent(mkNode(1, 2), eqU64) {
		t.Error("duplicate insert not rolled back")
	}
	// Exactly the original remains.
	n := l.find(1, eqU64)
	if n == nil || n.Val != 1 {
		t.Fatalf("chain corrupted: %+v", n)
	}
	if l.findLast(1, eqU64) != n {
		t.Error("rollback left a duplicate behind")
	}
	if !l.insertUniqueConcurrent(mkNode(2, 4), eqU64) {
		t.Error("unique insert rejected")
	}
}
