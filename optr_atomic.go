package olc

import (
	"sync/atomic"
	"unsafe"
)

// loadAtomicU32 and loadAtomicU64 are split out from optr.go only because
// they need the unsafe-to-atomic-pointer cast isolated in one place.
func loadAtomicU32(p unsafe.Pointer) uint32 {
	return (*atomic.Uint32)(p).Load()
}

func loadAtomicU64(p unsafe.Pointer) uint64 {
	return (*atomic.Uint64)(p).Load()
}
