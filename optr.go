package olc

import (
	"unsafe"
)

// OPtr is a copyable, lock-free handle describing where to read inside a
// page frame and how to validate the read later - it never itself holds a
// lock. Every read through an OPtr is bounds-checked against sizeof(T); an
// out-of-bounds read raises an OptimisticError rather than touching memory
// outside the frame, so a concurrent writer can make an OPtr's reads stale
// or torn but never unsafe.
//
// The zero value of OPtr is not useful (p is nil); always construct one
// with PointerTo or a guard's Ptr method.
type OPtr[T any] struct {
	p unsafe.Pointer
}

// PointerTo builds an OPtr to a live value - the in-package caller is
// GuardO.Ptr in guards.go; holding the resulting OPtr past the
// lifetime of the guard that produced it is a use-after-scope bug this
// package cannot itself prevent, exactly as spec.md §9 ("OPtr lifetime")
// notes.
func PointerTo[T any](p *T) OPtr[T] {
	return OPtr[T]{p: unsafe.Pointer(p)}
}

// Raw returns the underlying address, e.g. to pass to
// BufferManager.PidFromAddress to recover which page an OPtr refers to.
func (o OPtr[T]) Raw() unsafe.Pointer {
	return o.p
}

func sizeOf[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

func alignOf[T any]() uintptr {
	var zero T
	return unsafe.Alignof(zero)
}

// Project narrows an OPtr to one of T's subfields, returning an OPtr of the
// subfield's type. f must only compute an address (take the address of a
// field of *p) and must never dereference-read through p - the original's
// o_project! macro carries the same caveat ("make sure you cannot sneak in
// a[n] ... access here"); Go has no union types to worry about, but reading
// through p here would defeat the whole point of bounds-checked, possibly-
// torn optimistic reads.
func Project[T, R any](o OPtr[T], f func(*T) *R) OPtr[R] {
	return OPtr[R]{p: unsafe.Pointer(f((*T)(o.p)))}
}

// Cast reinterprets an OPtr as a layout-compatible type U: permitted only
// when the two types have identical size and U's alignment does not exceed
// T's.
func Cast[U, T any](o OPtr[T]) OPtr[U] {
	if sizeOf[T]() != sizeOf[U]() {
		programmingErrorf("OPtr cast: size mismatch (%d vs %d)", sizeOf[T](), sizeOf[U]())
	}
	if alignOf[T]() < alignOf[U]() {
		programmingErrorf("OPtr cast: alignment mismatch (%d vs %d)", alignOf[T](), alignOf[U]())
	}
	return OPtr[U]{p: o.p}
}

// AsSlice views a whole OPtr[T] as a slice of a plain-data element type U,
// permitted when sizeof(T) is a multiple of sizeof(U) and U's alignment
// does not exceed T's.
func AsSlice[U, T any](o OPtr[T]) OSlice[U] {
	tsz, usz := sizeOf[T](), sizeOf[U]()
	if usz == 0 || tsz%usz != 0 {
		programmingErrorf("OPtr as-slice: frame size %d is not a multiple of element size %d", tsz, usz)
	}
	if alignOf[T]() < alignOf[U]() {
		programmingErrorf("OPtr as-slice: alignment mismatch (%d vs %d)", alignOf[T](), alignOf[U]())
	}
	return OSlice[U]{p: o.p, n: int(tsz / usz)}
}

// ReadUnalignedU16 reads a little-endian-native uint16 at byte offset
// offset, bounds-checked against sizeof(T). Unaligned loads are assumed
// safe at the machine level (true on amd64/arm64, the platforms this
// package targets), same assumption the original's read_unaligned makes.
func (o OPtr[T]) ReadUnalignedU16(offset int) uint16 {
	if offset < 0 || uintptr(offset)+2 > sizeOf[T]() {
		Fail()
	}
	return *(*uint16)(unsafe.Add(o.p, offset))
}

// ReadUnalignedU64 reads a uint64 at byte offset offset, bounds-checked
// against sizeof(T).
func (o OPtr[T]) ReadUnalignedU64(offset int) uint64 {
	if offset < 0 || uintptr(offset)+8 > sizeOf[T]() {
		Fail()
	}
	return *(*uint64)(unsafe.Add(o.p, offset))
}

// LoadAtomicU32 performs an atomic load (sequentially consistent, as all
// sync/atomic loads are) of a uint32-sized field,
// so a concurrent writer racing on the same bytes produces a stale-but-
// defined value rather than a torn one; TryUnlockOptimistic is what turns
// "stale" into "must retry".
func LoadAtomicU32(o OPtr[uint32]) uint32 {
	return loadAtomicU32(o.p)
}

// LoadAtomicU64 is LoadAtomicU32's 64-bit counterpart.
func LoadAtomicU64(o OPtr[uint64]) uint64 {
	return loadAtomicU64(o.p)
}

// OSlice is a bounds-checked view of an OPtr as a run of Len() elements of
// type U. Indexing and sub-slicing are both bounds-checked; failure raises
// an OptimisticError rather than an out-of-bounds access.
type OSlice[U any] struct {
	p unsafe.Pointer
	n int
}

// Len returns the number of elements in the view.
func (s OSlice[U]) Len() int {
	return s.n
}

// Index returns an OPtr to the i'th element, bounds-checked.
func (s OSlice[U]) Index(i int) OPtr[U] {
	if i < 0 || i >= s.n {
		Fail()
	}
	return OPtr[U]{p: unsafe.Add(s.p, uintptr(i)*sizeOf[U]())}
}

// Sub returns the bounds-checked sub-view [offset, offset+length).
func (s OSlice[U]) Sub(offset, length int) OSlice[U] {
	if offset < 0 || length < 0 || offset+length > s.n {
		Fail()
	}
	return OSlice[U]{p: unsafe.Add(s.p, uintptr(offset)*sizeOf[U]()), n: length}
}

// LoadBytes copies a byte view into dst, which must be exactly Len() bytes
// long.
func LoadBytes(s OSlice[byte], dst []byte) {
	if len(dst) != s.n {
		programmingErrorf("LoadBytes: destination length %d does not match view length %d", len(dst), s.n)
	}
	src := unsafe.Slice((*byte)(s.p), s.n)
	copy(dst, src)
}

// CopyOut allocates a fresh []byte and copies the view's bytes into it.
func CopyOut(s OSlice[byte]) []byte {
	dst := make([]byte, s.n)
	LoadBytes(s, dst)
	return dst
}

// MemCompare compares a byte view against other using memcmp semantics:
// the shared prefix is compared first, and only if that prefix compares
// equal do the two lengths break the tie. This mirrors the original's
// `r.cmp(&0).then(self.len().cmp(&other.len()))` exactly (see SPEC_FULL.md's
// supplemented-features section). The return value follows the usual
// compare convention: negative, zero, or positive.
func MemCompare(s OSlice[byte], other []byte) int {
	n := s.n
	if len(other) < n {
		n = len(other)
	}
	src := unsafe.Slice((*byte)(s.p), s.n)
	for i := 0; i < n; i++ {
		if src[i] != other[i] {
			if src[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case s.n < len(other):
		return -1
	case s.n > len(other):
		return 1
	default:
		return 0
	}
}
