// Package bitmap implements the Bitmap Allocator (§4.2): deterministic,
// lowest-free-bit-first allocation and release of single bits in the inode
// and block bitmaps.
package bitmap

import (
	"fmt"

	gobitmap "github.com/boljen/go-bitmap"

	"github.com/a1fs/a1fs/errors"
)

// Allocator scans and mutates a single bitmap block in place. It is always
// constructed directly over the image's bitmap bytes (see layout.Image),
// so every Set call is already persisted into the mapping.
type Allocator struct {
	bits       gobitmap.Bitmap
	TotalUnits uint
}

// FromBytes wraps the backing bytes of a bitmap block. totalUnits is the
// number of meaningful bits (N for the inode bitmap, D for the block
// bitmap); bits beyond it, padding out to the block boundary, are never
// touched by Allocate/Free/PopCount.
func FromBytes(data []byte, totalUnits uint) Allocator {
	return Allocator{bits: gobitmap.Bitmap(data), TotalUnits: totalUnits}
}

// Get reports whether bit i is set.
func (a Allocator) Get(i uint) bool {
	return a.bits.Get(int(i))
}

// AllocateFirst scans ascending byte-then-bit order (LSB first within each
// byte, matching the on-disk bit ordering) and claims the first cleared bit.
// It returns errors.ErrNoSpace if every bit is set.
func (a Allocator) AllocateFirst() (uint, error) {
	for i := uint(0); i < a.TotalUnits; i++ {
		if !a.bits.Get(int(i)) {
			a.bits.Set(int(i), true)
			return i, nil
		}
	}
	return 0, errors.ErrNoSpace
}

// Free clears bit i. Freeing a bit that is already clear is an internal
// error (§4.2): callers only ever free bits they are certain are allocated.
func (a Allocator) Free(i uint) error {
	if i >= a.TotalUnits {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("bit %d not in range [0, %d)", i, a.TotalUnits))
	}
	if !a.bits.Get(int(i)) {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("bit %d is already free", i))
	}
	a.bits.Set(int(i), false)
	return nil
}

// Set directly marks bit i allocated or free, bypassing the linear scan.
// Callers use this only once they've already located the bit themselves,
// e.g. the File Data Engine's extend path, which groups a pre-scanned list
// of free bits into runs before claiming any of them.
func (a Allocator) Set(i uint, allocated bool) {
	a.bits.Set(int(i), allocated)
}

// PopCount returns the number of set bits among the first TotalUnits bits,
// used by fsck to cross-check the superblock's free counts (§8, laws 1-2).
func (a Allocator) PopCount() uint {
	count := uint(0)
	for i := uint(0); i < a.TotalUnits; i++ {
		if a.bits.Get(int(i)) {
			count++
		}
	}
	return count
}
