//go:build !olctrack

package olc

// With the olctrack build tag absent, the same-thread safety net compiles
// away entirely: trackCheck and trackSet are empty functions the compiler
// inlines to nothing, giving the zero production overhead spec.md §4.1 and
// §9 require. Enable the net for debugging with:
//
//	go build -tags olctrack ./...
func trackCheck(*SeqLock, lockMode) {}

func trackSet(*SeqLock, lockMode) {}

// trackingBuildEnabled lets tests skip tracking-specific assertions when
// built without -tags olctrack, rather than duplicating the build tag.
const trackingBuildEnabled = false
