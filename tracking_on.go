//go:build olctrack

package olc

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

// The olctrack build carries a per-goroutine map from lock address to the
// mode currently held by that goroutine, implementing the "same-thread
// safety net" of spec.md §4.1/§4.6: any acquisition that would conflict
// with a mode already held by the calling goroutine panics, naming both
// modes, rather than deadlocking or corrupting state.
//
// Go has no public goroutine-identity API (unlike the original's
// std::thread_local!), so goroutine identity is recovered the same way the
// pack's own kolkov/racedetector does it for its (also debug-only) tooling:
// parsing the "goroutine N [running]:" line out of runtime.Stack. That
// package also ships an assembly fast path for production-grade,
// millions-of-calls-per-second use; this tracker is a compile-time-gated
// debug aid, so only the portable parsing slow path is carried over - the
// assembly fast path would be a mismatched amount of machinery for a
// feature that is supposed to not exist in production builds at all.
var (
	locksMu sync.Mutex
	locks   = map[goroutineID]map[unsafe.Pointer]lockMode{}
)

// trackingBuildEnabled lets tests assert tracking-specific behavior only
// when built with -tags olctrack.
const trackingBuildEnabled = true

type goroutineID int64

func currentGoroutineID() goroutineID {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return goroutineID(parseGoroutineID(buf[:n]))
}

// parseGoroutineID extracts the numeric id from the first line of a
// runtime.Stack dump, "goroutine 123 [running]:...".
func parseGoroutineID(b []byte) int64 {
	const prefix = "goroutine "
	if len(b) < len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	var id int64
	for _, c := range b[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}

func trackCheck(l *SeqLock, requested lockMode) {
	gid := currentGoroutineID()
	addr := unsafe.Pointer(l)

	locksMu.Lock()
	defer locksMu.Unlock()
	held, ok := locks[gid]
	if !ok {
		return
	}
	if existing, ok := held[addr]; ok {
		panic(ProgrammingError{Msg: fmt.Sprintf(
			"cannot acquire %s lock on %p: already held %s by this goroutine",
			requested, l, existing,
		)})
	}
}

func trackSet(l *SeqLock, mode lockMode) {
	gid := currentGoroutineID()
	addr := unsafe.Pointer(l)

	locksMu.Lock()
	defer locksMu.Unlock()
	if mode == modeNone {
		if held, ok := locks[gid]; ok {
			delete(held, addr)
			if len(held) == 0 {
				delete(locks, gid)
			}
		}
		return
	}
	held, ok := locks[gid]
	if !ok {
		held = map[unsafe.Pointer]lockMode{}
		locks[gid] = held
	}
	held[addr] = mode
}
