package Locks

// Scoped guards. A guard acquires on construction and is single-use: after
// Release or a transfer (Upgrade/Downgrade) it is inert and further calls do
// nothing. Transfers use the discipline's own conversion call instead of
// release+reacquire, so the caller keeps some form of access throughout.

// ReadGuard holds reader-priority shared access.
type ReadGuard struct {
	l *CountingSpinlock
}

func NewReadGuard(l *CountingSpinlock) ReadGuard {
	l.RLock()
	return ReadGuard{l}
}

func (u *ReadGuard) Release() {
	if u.l != nil {
		u.l.RUnlock()
		u.l = nil
	}
}

// Upgrade converts this guard's read access into a WriteGuard.
func (u *ReadGuard) Upgrade() WriteGuard {
	l := u.l
	u.l = nil
	l.Upgrade()
	return WriteGuard{l}
}

// WriteGuard holds reader-priority exclusive access.
type WriteGuard struct {
	l *CountingSpinlock
}

func NewWriteGuard(l *CountingSpinlock) WriteGuard {
	l.Lock()
	return WriteGuard{l}
}

func (u *WriteGuard) Release() {
	if u.l != nil {
		u.l.Unlock()
		u.l = nil
	}
}

// Downgrade converts this guard's write access into a ReadGuard.
func (u *WriteGuard) Downgrade() ReadGuard {
	l := u.l
	u.l = nil
	l.Downgrade()
	return ReadGuard{l}
}

// WPReadGuard holds write-priority shared access.
type WPReadGuard struct {
	l *CountingSpinlock
}

func NewWPReadGuard(l *CountingSpinlock) WPReadGuard {
	l.WPRLock()
	return WPReadGuard{l}
}

func (u *WPReadGuard) Release() {
	if u.l != nil {
		u.l.WPRUnlock()
		u.l = nil
	}
}

func (u *WPReadGuard) Upgrade() WPWriteGuard {
	l := u.l
	u.l = nil
	l.WPUpgrade()
	return WPWriteGuard{l}
}

// WPWriteGuard holds write-priority exclusive access.
type WPWriteGuard struct {
	l *CountingSpinlock
}

func NewWPWriteGuard(l *CountingSpinlock) WPWriteGuard {
	l.WPLock()
	return WPWriteGuard{l}
}

func (u *WPWriteGuard) Release() {
	if u.l != nil {
		u.l.WPUnlock()
		u.l = nil
	}
}

func (u *WPWriteGuard) Downgrade() WPReadGuard {
	l := u.l
	u.l = nil
	l.WPDowngrade()
	return WPReadGuard{l}
}

// MRWReadGuard holds symmetric shared access.
type MRWReadGuard struct {
	l *CountingSpinlock
}

func NewMRWReadGuard(l *CountingSpinlock) MRWReadGuard {
	l.MRWRLock()
	return MRWReadGuard{l}
}

func (u *MRWReadGuard) Release() {
	if u.l != nil {
		u.l.MRWRUnlock()
		u.l = nil
	}
}

func (u *MRWReadGuard) Upgrade() MRWWriteGuard {
	l := u.l
	u.l = nil
	l.MRWUpgrade()
	return MRWWriteGuard{l}
}

// MRWWriteGuard holds symmetric write access.
type MRWWriteGuard struct {
	l *CountingSpinlock
}

func NewMRWWriteGuard(l *CountingSpinlock) MRWWriteGuard {
	l.MRWLock()
	return MRWWriteGuard{l}
}

func (u *MRWWriteGuard) Release() {
	if u.l != nil {
		u.l.MRWUnlock()
		u.l = nil
	}
}

func (u *MRWWriteGuard) Downgrade() MRWReadGuard {
	l := u.l
	u.l = nil
	l.MRWDowngrade()
	return MRWReadGuard{l}
}
