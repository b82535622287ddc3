package olc

// GuardO is an optimistic guard: it holds no lock at all, only a version
// snapshot, and grants bounds-checked reads through an OPtr. It is cheap to
// copy - call Clone to get an independent guard that will validate on its
// own Release, matching the original's Clone-but-not-Copy semantics (a type
// with a Drop impl cannot be Copy in Rust; the Go rendering is an ordinary
// struct value plus an explicit Clone that resets the "already released"
// bookkeeping so each clone validates independently).
type GuardO[P any] struct {
	bm      *BufferManager[P]
	pid     PageId
	version OlcVersion
	done    bool
}

// Clone returns an independent GuardO trusting the same version snapshot;
// both the original and the clone must each have Release called on them.
func (g GuardO[P]) Clone() GuardO[P] {
	return GuardO[P]{bm: g.bm, pid: g.pid, version: g.version, done: false}
}

// Ptr returns the bounds-checked OPtr for this guard's page. It is valid
// only while this GuardO (or a clone of it) is still live and unreleased.
func (g *GuardO[P]) Ptr() OPtr[P] {
	return PointerTo(&g.bm.pages[g.pid])
}

// PageId returns the page this guard refers to.
func (g *GuardO[P]) PageId() PageId {
	return g.pid
}

// Check validates the guard's version snapshot against the lock's current
// state right now, without waiting for Release. It returns the snapshot
// version on success; on mismatch it raises an OptimisticError, same as
// Release would.
func (g *GuardO[P]) Check() OlcVersion {
	if err := g.bm.locks[g.pid].TryUnlockOptimistic(g.version); err != nil {
		Fail()
	}
	return g.version
}

// ReleaseUnchecked consumes the guard without validating it - callers must
// have validated some other way (typically: they are about to Upgrade,
// which performs its own validation as part of the shared/exclusive
// acquisition).
func (g *GuardO[P]) ReleaseUnchecked() {
	g.done = true
}

// Release validates the guard's version snapshot, exactly like Check, and
// marks the guard consumed. Intended to be deferred: `defer g.Release()`.
//
// If a panic is already unwinding through the call stack when Release
// runs - whether an OptimisticError or anything else - Release does not
// attempt its own validation and simply lets the existing panic continue,
// per spec.md §4.5/§4.6/§9: "destructors must not raise while already
// unwinding". This is the recover-then-repanic idiom: Release's own
// recover() intercepts the in-flight panic just long enough to decide not
// to touch it, then re-panics with the original value.
func (g *GuardO[P]) Release() {
	if g.done {
		return
	}
	g.done = true
	if r := recover(); r != nil {
		panic(r)
	}
	if err := g.bm.locks[g.pid].TryUnlockOptimistic(g.version); err != nil {
		Fail()
	}
}

// UpgradeShared converts an optimistic guard into a shared guard, by
// re-acquiring shared with a must-equal filter against the snapshot
// version. On success the optimistic guard is released unchecked (the
// successful shared acquisition supersedes it); on failure it raises an
// OptimisticError.
func (g *GuardO[P]) UpgradeShared() *GuardS[P] {
	if _, err := g.bm.locks[g.pid].LockShared(MustEqual{V: g.version}); err != nil {
		Fail()
	}
	g.ReleaseUnchecked()
	return &GuardS[P]{bm: g.bm, pid: g.pid}
}

// UpgradeExclusive converts an optimistic guard into an exclusive guard,
// symmetric to UpgradeShared.
func (g *GuardO[P]) UpgradeExclusive() *GuardX[P] {
	if _, err := g.bm.locks[g.pid].LockExclusive(MustEqual{V: g.version}); err != nil {
		Fail()
	}
	g.ReleaseUnchecked()
	return &GuardX[P]{bm: g.bm, pid: g.pid}
}

// GuardS is a shared guard: it holds the lock's shared count incremented
// and grants read access to the frame. Not meant to be copied - each GuardS
// represents one real hold on the shared counter.
type GuardS[P any] struct {
	bm   *BufferManager[P]
	pid  PageId
	done bool
}

// Page returns a read-only pointer to the guarded frame.
func (g *GuardS[P]) Page() *P {
	return &g.bm.pages[g.pid]
}

// PageId returns the page this guard refers to.
func (g *GuardS[P]) PageId() PageId {
	return g.pid
}

// Release decrements the shared counter. It is always safe to call during
// unwinding - shared release cannot itself fail - so, unlike GuardO and
// GuardX, it needs no recover-based suppression logic.
func (g *GuardS[P]) Release() {
	if g.done {
		return
	}
	g.done = true
	g.bm.locks[g.pid].UnlockShared()
}

// GuardX is an exclusive guard: it holds the lock's exclusive flag set and
// grants mutable access to the frame. Not copyable.
type GuardX[P any] struct {
	bm      *BufferManager[P]
	pid     PageId
	written bool
	done    bool
}

// Page returns a read-only pointer to the guarded frame, without marking
// it written.
func (g *GuardX[P]) Page() *P {
	return &g.bm.pages[g.pid]
}

// Mut returns a mutable pointer to the guarded frame and marks the guard
// written - used by Release to forbid mutation during an optimistic
// unwind (spec.md §4.5: "asserts the written flag is false").
func (g *GuardX[P]) Mut() *P {
	g.written = true
	return &g.bm.pages[g.pid]
}

// PageId returns the page this guard refers to.
func (g *GuardX[P]) PageId() PageId {
	return g.pid
}

// Release either bumps the version and releases the exclusive hold
// normally, or - if unwinding due to an in-flight OptimisticError -
// asserts nothing was written during the doomed critical section before
// releasing, then re-panics to continue the unwind. Writing through Mut
// while an optimistic retry is in flight is a programming error: the
// caller's critical section was supposed to retry from scratch, not leave
// a partial write behind.
func (g *GuardX[P]) Release() {
	if g.done {
		return
	}
	g.done = true
	if r := recover(); r != nil {
		if IsUnwinding(r) && g.written {
			g.bm.locks[g.pid].UnlockExclusive()
			panic(ProgrammingError{Msg: "wrote through an exclusive guard during an optimistic unwind"})
		}
		g.bm.locks[g.pid].UnlockExclusive()
		panic(r)
	}
	g.bm.locks[g.pid].UnlockExclusive()
}

// Dealloc consumes the guard, releasing the exclusive lock and returning
// the frame to the pool's free list. Use this instead of Release when the
// page is being freed, not merely unlocked.
func (g *GuardX[P]) Dealloc() {
	g.done = true
	g.bm.locks[g.pid].UnlockExclusive()
	g.bm.pushFree(uint64(g.pid))
}
