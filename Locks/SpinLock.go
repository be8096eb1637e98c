// Package Locks provides a counting reader/writer spinlock with three
// acquisition disciplines sharing one packed 32-bit counter, plus scoped
// guards with upgrade/downgrade transfers.
package Locks

import (
	"runtime"
	"sync/atomic"

	"github.com/g-m-twostay/paged-maps/logutil"
)

const (
	writeIncrement uint32 = 0x10000
	writeMask      uint32 = 0xFFFF0000
	readMask       uint32 = 0x0000FFFF

	decOne   uint32 = ^uint32(0)
	decWrite uint32 = ^uint32(writeIncrement - 1)
)

// MaxAcquireRetries bounds every spin loop; exhausting it indicates a
// deadlock or a leaked lock and is fatal.
const MaxAcquireRetries uint32 = ^uint32(0)

// CountingSpinlock packs reader and writer counts into one 32-bit word:
// readers in the low 16 bits, writers in the high 16. The zero value is an
// unlocked lock. The three method families (bare, WP-, MRW-) are independent
// disciplines over the same counter; a given instance should be used with
// exactly one of them.
type CountingSpinlock struct {
	v atomic.Uint32
}

// Value returns the raw packed counter, for tests and diagnostics.
func (u *CountingSpinlock) Value() uint32 {
	return u.v.Load()
}

func noWriter(c uint32) bool { return c&writeMask == 0 }
func noReader(c uint32) bool { return c&readMask == 0 }
func free(c uint32) bool     { return c == 0 }

// soleWriter reports that at most one writer increment is outstanding.
func soleWriter(c uint32) bool { return c&writeMask <= writeIncrement }

// spinUntil yields until ok holds, with a bounded budget.
func (u *CountingSpinlock) spinUntil(ok func(uint32) bool, op string) {
	for r := MaxAcquireRetries; r > 0; r-- {
		if ok(u.v.Load()) {
			return
		}
		runtime.Gosched()
	}
	logutil.Fatalf("Locks: %s exceeded MaxAcquireRetries", op)
}

// Reader-priority discipline. Readers never back out: once a reader has
// bumped the count it waits in place for the writer to leave, so a stream of
// readers can starve writers.

// RLock acquires shared access, reader-priority.
func (u *CountingSpinlock) RLock() {
	if u.v.Add(1)&writeMask != 0 {
		u.spinUntil(noWriter, "RLock")
	}
}

// RUnlock releases shared access.
func (u *CountingSpinlock) RUnlock() {
	u.v.Add(decOne)
}

// Lock acquires exclusive access, reader-priority: on contention the writer
// backs out and waits for the counter to drain to zero.
func (u *CountingSpinlock) Lock() {
	for r := MaxAcquireRetries; r > 0; r-- {
		if u.v.Add(writeIncrement) == writeIncrement {
			return
		}
		if u.v.Add(decWrite) != 0 {
			u.spinUntil(free, "Lock")
		}
	}
	logutil.Fatalf("Locks: Lock exceeded MaxAcquireRetries")
}

// Unlock releases exclusive access.
func (u *CountingSpinlock) Unlock() {
	u.v.Add(decWrite)
}

// Upgrade converts a held read lock into a write lock. Not atomic when other
// readers or writers are present: the caller's access may lapse while the
// conversion backs out and reacquires.
func (u *CountingSpinlock) Upgrade() {
	if u.v.Add(writeIncrement)&writeMask == writeIncrement {
		if u.v.Add(decOne) == writeIncrement {
			return
		}
		// Readers remain and they have priority; back out and queue up.
		u.v.Add(decWrite)
		u.spinUntil(free, "Upgrade")
		u.Lock()
		return
	}
	u.v.Add(decWrite)
	u.v.Add(decOne)
	u.spinUntil(free, "Upgrade")
	u.Lock()
}

// Downgrade converts a held write lock into a read lock without a window for
// other writers.
func (u *CountingSpinlock) Downgrade() {
	u.v.Add(1)
	if u.v.Add(decWrite)&writeMask != 0 {
		u.spinUntil(noWriter, "Downgrade")
	}
}

// Write-priority discipline. A contended reader backs its increment out so a
// waiting writer can proceed; readers re-attempt only after the writer
// leaves.

// WPRLock acquires shared access, yielding to writers.
func (u *CountingSpinlock) WPRLock() {
	for r := MaxAcquireRetries; r > 0; r-- {
		if u.v.Add(1)&writeMask == 0 {
			return
		}
		u.v.Add(decOne)
		u.spinUntil(noWriter, "WPRLock")
	}
	logutil.Fatalf("Locks: WPRLock exceeded MaxAcquireRetries")
}

// WPRUnlock releases shared access.
func (u *CountingSpinlock) WPRUnlock() {
	u.v.Add(decOne)
}

// WPLock acquires exclusive access with writer priority: the first writer
// parks on the counter and waits for readers to drain; later writers back out
// and wait for the slot.
func (u *CountingSpinlock) WPLock() {
	for r := MaxAcquireRetries; r > 0; r-- {
		next := u.v.Add(writeIncrement)
		if next == writeIncrement {
			return
		}
		if next&writeMask > writeIncrement {
			u.v.Add(decWrite)
			u.spinUntil(soleWriter, "WPLock")
			continue
		}
		// Sole writer; readers drain out and new ones hold off.
		u.spinUntil(noReader, "WPLock")
		return
	}
	logutil.Fatalf("Locks: WPLock exceeded MaxAcquireRetries")
}

// WPUnlock releases exclusive access.
func (u *CountingSpinlock) WPUnlock() {
	u.v.Add(decWrite)
}

// WPUpgrade converts a held read lock into a write lock under the
// write-priority discipline.
func (u *CountingSpinlock) WPUpgrade() {
	if u.v.Add(writeIncrement)&writeMask == writeIncrement {
		if u.v.Add(decOne)&readMask == 0 {
			return
		}
		u.spinUntil(noReader, "WPUpgrade")
		return
	}
	u.v.Add(decWrite)
	u.v.Add(decOne)
	u.WPLock()
}

// WPDowngrade converts a held write lock into a read lock under the
// write-priority discipline.
func (u *CountingSpinlock) WPDowngrade() {
	u.v.Add(1)
	if u.v.Add(decWrite)&writeMask == 0 {
		return
	}
	u.v.Add(decOne)
	u.WPRLock()
}

// Symmetric multi-reader/writer discipline. Writer-acquire attempts race
// fairly on the high half of the counter; neither side has standing priority.

// MRWRLock acquires shared access.
func (u *CountingSpinlock) MRWRLock() {
	if u.v.Add(1)&writeMask != 0 {
		u.spinUntil(noWriter, "MRWRLock")
	}
}

// MRWRUnlock releases shared access.
func (u *CountingSpinlock) MRWRUnlock() {
	u.v.Add(decOne)
}

// MRWLock acquires write access: proceed once no readers remain. Writers
// never wait on each other (the high half is a count), so the increment is
// backed out before waiting lest it block readers forever.
func (u *CountingSpinlock) MRWLock() {
	for r := MaxAcquireRetries; r > 0; r-- {
		if u.v.Add(writeIncrement)&readMask == 0 {
			return
		}
		u.v.Add(decWrite)
		u.spinUntil(noReader, "MRWLock")
	}
	logutil.Fatalf("Locks: MRWLock exceeded MaxAcquireRetries")
}

// MRWUnlock releases write access.
func (u *CountingSpinlock) MRWUnlock() {
	u.v.Add(decWrite)
}

// MRWUpgrade converts a held read lock into a write lock under the symmetric
// discipline.
func (u *CountingSpinlock) MRWUpgrade() {
	u.v.Add(writeIncrement)
	if u.v.Add(decOne)&readMask == 0 {
		return
	}
	for r := MaxAcquireRetries; r > 0; r-- {
		u.v.Add(decWrite)
		u.spinUntil(noReader, "MRWUpgrade")
		if u.v.Add(writeIncrement)&readMask == 0 {
			return
		}
	}
	logutil.Fatalf("Locks: MRWUpgrade exceeded MaxAcquireRetries")
}

// MRWDowngrade converts a held write lock into a read lock under the
// symmetric discipline.
func (u *CountingSpinlock) MRWDowngrade() {
	u.v.Add(1)
	if u.v.Add(decWrite)&writeMask != 0 {
		u.spinUntil(noWriter, "MRWDowngrade")
	}
}
