// Package fsck checks a mapped image against the invariants laid out for
// the on-disk layout, independent of any particular operation path. It is
// not invoked by the engine itself; callers run it explicitly (e.g. the
// mount command's -check flag, or a test).
package fsck

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/a1fs/a1fs/internal/bitmap"
	"github.com/a1fs/a1fs/internal/extent"
	"github.com/a1fs/a1fs/internal/inode"
	"github.com/a1fs/a1fs/internal/layout"
)

// Check runs every invariant from the testable-properties list against img
// and returns a single error aggregating every violation found, or nil if
// the image is consistent.
func Check(img *layout.Image) error {
	var result *multierror.Error

	sb := img.ReadSuperblock()
	if !sb.IsValid() {
		return multierror.Append(result, fmt.Errorf("superblock magic mismatch: image is not a formatted A1FS volume"))
	}

	inodeBits := bitmap.FromBytes(img.InodeBitmapBytes(), uint(sb.InodeCount))
	blockBits := bitmap.FromBytes(img.BlockBitmapBytes(), uint(sb.DataBlockCount))
	extents := extent.New(img)
	dataStart := layout.FirstMetaBlocks + uint64(sb.InodeBlocks)

	// format.Format sets bit 1 of each bitmap without giving it an owner or
	// counting it in the free counts, so invariants 1, 2 and 5 leave it out.
	inodeUsed, blockUsed := inodeBits.PopCount(), blockBits.PopCount()
	if inodeBits.TotalUnits > 1 && inodeBits.Get(1) {
		inodeUsed--
	}
	if blockBits.TotalUnits > 1 && blockBits.Get(1) {
		blockUsed--
	}

	// Invariant 1: free_inode_count == N - popcount(inode_bitmap).
	if got, want := sb.FreeInodeCount, sb.InodeCount-uint32(inodeUsed); got != want {
		result = multierror.Append(result, fmt.Errorf(
			"free_inode_count is %d, want %d (popcount mismatch)", got, want))
	}

	// Invariant 2: free_data_block_count == D - popcount(block_bitmap).
	if got, want := sb.FreeDataBlockCount, sb.DataBlockCount-uint64(blockUsed); got != want {
		result = multierror.Append(result, fmt.Errorf(
			"free_data_block_count is %d, want %d (popcount mismatch)", got, want))
	}

	// Invariant 3: reserved_extent_count == number of non-empty extent slots.
	if got, want := sb.ReservedExtentCount, extents.CountReserved(); got != want {
		result = multierror.Append(result, fmt.Errorf(
			"reserved_extent_count is %d, want %d", got, want))
	}

	// Invariants 4 and 5 require walking every allocated inode's extents.
	extentOwner := make(map[uint32]uint32) // 1-based extent index -> owning inode
	blockOwner := make(map[uint32]uint32)  // physical block -> owning inode
	blockReachable := make(map[uint32]bool)

	for i := uint32(0); i < sb.InodeCount; i++ {
		if !inodeBits.Get(uint(i)) {
			continue
		}
		n := inode.Get(img, i)

		for _, idx := range n.Raw.ExtentIndices {
			if idx == 0 {
				continue
			}
			if extents.Get(idx).IsEmpty() {
				result = multierror.Append(result, fmt.Errorf(
					"inode %d references extent index %d, which is empty", i, idx))
				continue
			}
			if owner, dup := extentOwner[idx]; dup {
				result = multierror.Append(result, fmt.Errorf(
					"extent index %d is referenced by both inode %d and inode %d", idx, owner, i))
			}
			extentOwner[idx] = i

			e := extents.Get(idx)
			for b := uint32(0); b < e.Count; b++ {
				physical := e.Start + b
				if owner, dup := blockOwner[physical]; dup {
					result = multierror.Append(result, fmt.Errorf(
						"block %d is reachable from both inode %d and inode %d", physical, owner, i))
				}
				blockOwner[physical] = i
				blockReachable[physical] = true
			}
		}

		// Invariant 7: size <= 4096 * sum(extent counts).
		var capacityBlocks uint64
		for _, idx := range n.Raw.ExtentIndices {
			if idx == 0 {
				continue
			}
			capacityBlocks += uint64(extents.Get(idx).Count)
		}
		if n.Raw.Size > capacityBlocks*layout.BlockSize {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d has size %d exceeding its %d-block capacity", i, n.Raw.Size, capacityBlocks))
		}

		// Invariant 6: directories start with "." -> self and a ".." entry.
		// The inode that ".." names is not checked against the parent.
		if n.IsDirectory() {
			if err := checkDotEntries(img, extents, n); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	// Invariant 5, continued: every set block-bitmap bit must be reachable,
	// and every reachable block must have its bit set.
	for bit := uint(0); bit < blockBits.TotalUnits; bit++ {
		physical := uint32(dataStart) + uint32(bit)
		set := blockBits.Get(bit)
		reachable := blockReachable[physical]
		if set && !reachable && bit != 1 {
			result = multierror.Append(result, fmt.Errorf(
				"block %d is marked allocated but reachable from no inode", physical))
		}
		if reachable && !set {
			result = multierror.Append(result, fmt.Errorf(
				"block %d is reachable from an inode but not marked allocated", physical))
		}
	}

	return result.ErrorOrNil()
}

// checkDotEntries checks invariant 6 for a single directory inode: slot 0 of
// its first block must be "." naming the directory itself and slot 1 must be
// named "..". The inode number stored in ".." is not checked.
func checkDotEntries(img *layout.Image, extents extent.Manager, dir inode.Inode) error {
	blocks := dir.LogicalBlockMap(extents)
	if len(blocks) == 0 {
		return fmt.Errorf("directory inode %d has no data blocks", dir.Index)
	}
	data := img.Block(layout.DataBlockIndex(blocks[0]))

	dot := layout.DentryAtSlot(data, 0)
	if dot.Name != "." || dot.Inode != dir.Index {
		return fmt.Errorf("directory inode %d's first entry is %q -> %d, want \".\" -> %d",
			dir.Index, dot.Name, dot.Inode, dir.Index)
	}

	dotdot := layout.DentryAtSlot(data, 1)
	if dotdot.Name != ".." {
		return fmt.Errorf("directory inode %d's second entry is %q, want \"..\"", dir.Index, dotdot.Name)
	}
	return nil
}
