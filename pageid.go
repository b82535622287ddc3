package olc

import "fmt"

// PageId identifies a single frame in a BufferManager's pool. It is a
// 0-based index, always in [0, capacity) for a live buffer manager.
type PageId uint64

func (p PageId) String() string {
	return fmt.Sprintf("page(%d)", uint64(p))
}
