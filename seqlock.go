package olc

import (
	"runtime"
	"sync/atomic"
)

// Bit layout of a SeqLock's single word, as specified: the bottom countBits
// bits are the shared-holder count, the next bit is the exclusive flag, and
// everything above that is the version counter.
const (
	countBits     = 10
	countMask     = uint64(1)<<countBits - 1
	exclusiveMask = uint64(1) << countBits
	versionShift  = countBits + 1
)

// OlcVersion is a snapshot of a SeqLock's version field, captured at some
// optimistic read point. Two OlcVersions compare equal iff no exclusive
// critical section completed between the two snapshots.
type OlcVersion struct {
	v uint64
}

// VersionFilter gates a lock acquisition on the version observed at
// acquire time. It is a sealed interface (the check method is unexported)
// with exactly two implementations, mirroring the original's two
// VersionFilter impls for () and OlcVersion: AcceptAny never rejects,
// MustEqual rejects any version other than the one it was built with.
//
// Go cannot express the original's associated-result-type trick (Rust's
// F::R lets AcceptAny's lock_shared return the observed version while
// MustEqual's returns unit); instead every filter-taking SeqLock method
// returns an OlcVersion alongside the error (the observed version on
// success, the zero OlcVersion on rejection), which MustEqual callers are
// free to ignore.
type VersionFilter interface {
	check(v uint64) error
}

// AcceptAny is the filter used by a fresh acquisition that has no prior
// version to validate against.
type AcceptAny struct{}

func (AcceptAny) check(uint64) error { return nil }

// MustEqual is the filter used when upgrading from an optimistic read: the
// acquisition only succeeds if the lock's version still matches V.
type MustEqual struct {
	V OlcVersion
}

func (f MustEqual) check(v uint64) error {
	if v != f.V.v {
		return errOptimistic
	}
	return nil
}

// SeqLock is a single atomic word implementing the three-mode (optimistic,
// shared, exclusive) lock, laid out as the constants above describe. Its zero
// value - an all-zero word - is a valid, unlocked lock at version 0,
// matching the requirement that page frames (and their locks) are
// zero-initialized on pool creation.
type SeqLock struct {
	word atomic.Uint64
}

// LockShared acquires the lock for shared (read-only, counted) access.
// Spins until acquired or the filter rejects the observed version.
func (l *SeqLock) LockShared(f VersionFilter) (OlcVersion, error) {
	trackCheck(l, modeShared)
	x := l.word.Load()
	for {
		if err := f.check(x >> versionShift); err != nil {
			return OlcVersion{}, err
		}
		if x&(countMask|exclusiveMask) < countMask {
			if l.word.CompareAndSwap(x, x+1) {
				trackSet(l, modeShared)
				return OlcVersion{x >> versionShift}, nil
			}
			x = l.word.Load()
		} else {
			l.wait()
			x = l.word.Load()
		}
	}
}

// UnlockShared releases one shared hold and returns the version observed
// after release (shared release never changes the version). It is a
// programming error to call this without holding shared.
func (l *SeqLock) UnlockShared() OlcVersion {
	trackSet(l, modeNone)
	next := l.word.Add(^uint64(0)) // two's-complement -1: fetch-sub by another name.
	prev := next + 1
	if prev&countMask == 0 {
		programmingErrorf("unlock_shared called while not holding the shared lock")
	}
	return OlcVersion{next >> versionShift}
}

// LockExclusive acquires the lock for exclusive (single-writer) access,
// waiting for any shared holders to drain. Returns the version observed
// just before the section begins.
func (l *SeqLock) LockExclusive(f VersionFilter) (OlcVersion, error) {
	trackCheck(l, modeExclusive)
	for {
		x := l.word.Load()
		if err := f.check(x >> versionShift); err != nil {
			return OlcVersion{}, err
		}
		if x&exclusiveMask != 0 {
			l.wait()
			continue
		}
		prev := l.word.Or(exclusiveMask)
		if prev&exclusiveMask != 0 {
			// Someone else set it first; back off and retry from scratch.
			l.wait()
			continue
		}
		if err := f.check(prev >> versionShift); err != nil {
			// The filter rejects the version we just locked in: undo and fail.
			// A transient exclusive flag briefly visible to other spinners is
			// harmless since the version did not change (see spec.md §9's
			// open question).
			l.word.And(^exclusiveMask)
			return OlcVersion{}, err
		}
		if prev&countMask == 0 {
			trackSet(l, modeExclusive)
			return OlcVersion{prev >> versionShift}, nil
		}
		for {
			l.wait()
			x2 := l.word.Load()
			if x2&countMask == 0 {
				trackSet(l, modeExclusive)
				return OlcVersion{x2 >> versionShift}, nil
			}
		}
	}
}

// ForceLockExclusive unconditionally marks the lock exclusive, used only
// when the caller has already proven no other holder can exist (a frame
// freshly popped from the free list). It panics if the word already had
// the exclusive flag set or any shared holders; the version field may be
// non-zero.
func (l *SeqLock) ForceLockExclusive() OlcVersion {
	trackCheck(l, modeExclusive)
	trackSet(l, modeExclusive)
	prev := l.word.Or(exclusiveMask)
	if prev&(exclusiveMask|countMask) != 0 {
		programmingErrorf("force_lock_exclusive called on a non-idle lock (word=%#x)", prev)
	}
	return OlcVersion{prev >> versionShift}
}

// UnlockExclusive releases the exclusive hold and bumps the version by
// exactly one, returning the version observed after release. Adding
// exclusiveMask to a word with the exclusive bit set simultaneously clears
// that bit and carries one into the version field - a single RMW does
// both.
func (l *SeqLock) UnlockExclusive() OlcVersion {
	trackSet(l, modeNone)
	next := l.word.Add(exclusiveMask)
	prev := next - exclusiveMask
	if prev&exclusiveMask == 0 {
		programmingErrorf("unlock_exclusive called while not holding the exclusive lock")
	}
	return OlcVersion{next >> versionShift}
}

// LockOptimistic snapshots the current version with no state change,
// waiting out any in-progress exclusive section first.
func (l *SeqLock) LockOptimistic(f VersionFilter) (OlcVersion, error) {
	trackCheck(l, modeNone)
	for {
		x := l.word.Load()
		if err := f.check(x >> versionShift); err != nil {
			return OlcVersion{}, err
		}
		if x&exclusiveMask == 0 {
			return OlcVersion{x >> versionShift}, nil
		}
		l.wait()
	}
}

// TryUnlockOptimistic validates a previously captured OlcVersion: it
// succeeds iff the lock is not currently exclusively held and the version
// has not advanced since v was captured. Shared holders coming and going
// in between do not invalidate the read.
func (l *SeqLock) TryUnlockOptimistic(v OlcVersion) error {
	// A plain Load already carries sequentially-consistent ordering in Go's
	// atomic package, which is at least as strong as the acquire-fence-plus-
	// relaxed-load pairing the original specifies.
	x := l.word.Load()
	if x & ^countMask == v.v<<versionShift {
		return nil
	}
	return errOptimistic
}

// wait is the cooperative yield used whenever a spin loop above must back
// off and retry. No backoff schedule is mandated; RepeatWithBackoff (in
// backoff.go) offers a bounded-backoff alternative at the retry-boundary
// level instead of here, keeping this hot path a plain yield exactly like
// the original's SeqLock::wait.
func (l *SeqLock) wait() {
	runtime.Gosched()
}
