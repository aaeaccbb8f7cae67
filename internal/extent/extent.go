// Package extent implements the Extent Table Manager (§4.3): allocation and
// release of entries in the single global 512-slot extent table.
package extent

import (
	"github.com/a1fs/a1fs/errors"
	"github.com/a1fs/a1fs/internal/layout"
)

// Manager allocates and frees slots in an image's extent table. Slot 0 is
// reserved for the root directory's first extent at format time and is
// never handed out by Alloc.
type Manager struct {
	img *layout.Image
}

func New(img *layout.Image) Manager {
	return Manager{img: img}
}

// Alloc scans zero-based slots 1..511 for the first empty one, writes e into
// it, and returns its 1-based index as stored in an inode's extent array.
// It returns errors.ErrNoSpace if the table is full.
func (m Manager) Alloc(e layout.Extent) (uint32, error) {
	for slot := uint32(1); slot < layout.NumExtentSlots; slot++ {
		if m.img.ExtentAtSlot(slot).IsEmpty() {
			m.img.SetExtentAtSlot(slot, e)
			return slot + 1, nil
		}
	}
	return 0, errors.ErrNoSpace
}

// Free zeroes the extent at the given 1-based index.
func (m Manager) Free(oneBasedIndex uint32) {
	m.img.SetExtentAtSlot(oneBasedIndex-1, layout.Extent{})
}

// Get returns the extent named by a 1-based index.
func (m Manager) Get(oneBasedIndex uint32) layout.Extent {
	return m.img.ExtentAtSlot(oneBasedIndex - 1)
}

// Set overwrites the extent named by a 1-based index.
func (m Manager) Set(oneBasedIndex uint32, e layout.Extent) {
	m.img.SetExtentAtSlot(oneBasedIndex-1, e)
}

// CountReserved returns the number of non-empty slots across the whole
// table, used by fsck to verify reserved_extent_count (§3, §8 law 3).
func (m Manager) CountReserved() uint32 {
	count := uint32(0)
	for slot := uint32(0); slot < layout.NumExtentSlots; slot++ {
		if !m.img.ExtentAtSlot(slot).IsEmpty() {
			count++
		}
	}
	return count
}
