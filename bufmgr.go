package olc

import (
	"sync"
	"unsafe"
)

// BufferManager owns a fixed-size pool of page frames of type P plus a
// parallel array of SeqLocks, and hands out guards against PageIds. It owns
// all frames and locks for its lifetime; it never grows, shrinks, evicts,
// or persists anything (see spec.md §1's Non-goals) - the only allocation
// policy is a simple free-list stack.
//
// P's zero value must be a valid "empty page" - frames are zero-initialized
// on pool creation, matching spec.md §6's "valid all-zero bit pattern"
// requirement. Frames are not cleared on Dealloc or Alloc: a reused frame
// keeps whatever contents it had when it was deallocated.
type BufferManager[P any] struct {
	pages []P
	locks []SeqLock

	freeMu   sync.Mutex
	freeList []uint64
}

// NewBufferManager allocates a pool of capacity frames, all initially free.
func NewBufferManager[P any](capacity int) *BufferManager[P] {
	if capacity <= 0 {
		programmingErrorf("buffer manager capacity must be positive, got %d", capacity)
	}
	free := make([]uint64, capacity)
	for i := range free {
		free[i] = uint64(i)
	}
	return &BufferManager[P]{
		pages:    make([]P, capacity),
		locks:    make([]SeqLock, capacity),
		freeList: free,
	}
}

// Capacity returns the total number of frames in the pool.
func (bm *BufferManager[P]) Capacity() int {
	return len(bm.pages)
}

// FreeCount returns the number of currently unallocated frames.
func (bm *BufferManager[P]) FreeCount() int {
	bm.freeMu.Lock()
	defer bm.freeMu.Unlock()
	return len(bm.freeList)
}

// PidFromAddress recovers the PageId owning a raw address, by offset
// arithmetic against the frame array's base address. It panics (a
// programming error, not an optimistic failure) if addr does not land
// exactly on a frame boundary within the pool.
func (bm *BufferManager[P]) PidFromAddress(addr unsafe.Pointer) PageId {
	base := uintptr(unsafe.Pointer(&bm.pages[0]))
	sz := sizeOf[P]()
	a := uintptr(addr)
	if a < base || a >= base+sz*uintptr(len(bm.pages)) {
		programmingErrorf("address %#x is not within the buffer pool's frame array", a)
	}
	offset := a - base
	if offset%sz != 0 {
		programmingErrorf("address %#x does not land on a frame boundary (offset %d, frame size %d)", a, offset, sz)
	}
	return PageId(offset / sz)
}

// popFree pops one index from the free list, or fails fatally if the pool
// is exhausted - running out of free pages has no recovery path in this
// simple realization (spec.md §4.6).
func (bm *BufferManager[P]) popFree() uint64 {
	bm.freeMu.Lock()
	defer bm.freeMu.Unlock()
	n := len(bm.freeList)
	if n == 0 {
		programmingErrorf("buffer pool exhausted: no free pages (capacity %d)", len(bm.pages))
	}
	pid := bm.freeList[n-1]
	bm.freeList = bm.freeList[:n-1]
	return pid
}

func (bm *BufferManager[P]) pushFree(pid uint64) {
	bm.freeMu.Lock()
	defer bm.freeMu.Unlock()
	bm.freeList = append(bm.freeList, pid)
}

// Alloc pops a frame from the free list and force-acquires its exclusive
// lock - valid because a freshly popped frame is provably unreferenced by
// anyone else - returning the guard that is the only way to initialize the
// frame's contents.
func (bm *BufferManager[P]) Alloc() *GuardX[P] {
	pid := bm.popFree()
	bm.locks[pid].ForceLockExclusive()
	return &GuardX[P]{bm: bm, pid: PageId(pid)}
}

// LockOptimistic builds an optimistic guard on pid, snapshotting the
// current version without blocking writers (it only waits out another
// exclusive holder already in progress).
func (bm *BufferManager[P]) LockOptimistic(pid PageId) *GuardO[P] {
	v, err := bm.locks[pid].LockOptimistic(AcceptAny{})
	if err != nil {
		// AcceptAny never rejects; unreachable, but keep the check honest.
		Fail()
	}
	return &GuardO[P]{bm: bm, pid: pid, version: v}
}

// LockShared blocks until pid's shared hold can be taken.
func (bm *BufferManager[P]) LockShared(pid PageId) *GuardS[P] {
	if _, err := bm.locks[pid].LockShared(AcceptAny{}); err != nil {
		Fail()
	}
	return &GuardS[P]{bm: bm, pid: pid}
}

// LockExclusive blocks until pid's exclusive hold can be taken.
func (bm *BufferManager[P]) LockExclusive(pid PageId) *GuardX[P] {
	if _, err := bm.locks[pid].LockExclusive(AcceptAny{}); err != nil {
		Fail()
	}
	return &GuardX[P]{bm: bm, pid: pid}
}
