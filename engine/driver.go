// Package engine implements the Path Resolver, Directory Operations, and
// File Data Engine (§4.1, §4.4, §4.5) on top of a mapped A1FS image. It is
// the only package adapter code (internal/fuseadapter) talks to.
package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/a1fs/a1fs/internal/bitmap"
	"github.com/a1fs/a1fs/internal/extent"
	"github.com/a1fs/a1fs/internal/inode"
	"github.com/a1fs/a1fs/internal/layout"
)

// RootInodeIndex is the fixed inode number of the filesystem root.
const RootInodeIndex uint32 = 0

// Driver is the top-level engine: every adapter-visible operation in §6.2 is
// a method on it. It holds no state beyond the mapped image; the image's
// superblock is the single source of truth and is re-read on every call.
type Driver struct {
	img     *layout.Image
	extents extent.Manager
	log     *logrus.Entry
}

// New constructs a Driver over an already-formatted image. It does not
// validate the superblock; callers that need that guarantee call Statfs or
// Check (internal/fsck) first.
func New(img *layout.Image, log *logrus.Entry) *Driver {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
		log.Logger.SetOutput(discardWriter{})
	}
	return &Driver{img: img, extents: extent.New(img), log: log}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (d *Driver) superblock() layout.Superblock {
	return d.img.ReadSuperblock()
}

func (d *Driver) putSuperblock(sb layout.Superblock) {
	d.img.WriteSuperblock(sb)
}

func (d *Driver) inodeCount() uint32 {
	return d.superblock().InodeCount
}

func (d *Driver) inodeAllocator() bitmap.Allocator {
	sb := d.superblock()
	return bitmap.FromBytes(d.img.InodeBitmapBytes(), uint(sb.InodeCount))
}

func (d *Driver) blockAllocator() bitmap.Allocator {
	sb := d.superblock()
	return bitmap.FromBytes(d.img.BlockBitmapBytes(), uint(sb.DataBlockCount))
}

// dataRegionStart is the physical block index of the first data block,
// 4+IB per the layout table.
func (d *Driver) dataRegionStart() uint64 {
	sb := d.superblock()
	return layout.FirstMetaBlocks + uint64(sb.InodeBlocks)
}

// allocInode claims the first free inode bit and updates the superblock's
// free count.
func (d *Driver) allocInode() (uint32, error) {
	idx, err := d.inodeAllocator().AllocateFirst()
	if err != nil {
		return 0, err
	}
	sb := d.superblock()
	sb.FreeInodeCount--
	d.putSuperblock(sb)
	return uint32(idx), nil
}

func (d *Driver) freeInode(index uint32) {
	_ = d.inodeAllocator().Free(uint(index))
	sb := d.superblock()
	sb.FreeInodeCount++
	d.putSuperblock(sb)
}

// allocDataBlock claims the first free data-region bit, zeroes the block
// (§9 open question 2: always zero on allocation), and returns its physical
// block index.
func (d *Driver) allocDataBlock() (uint32, error) {
	bit, err := d.blockAllocator().AllocateFirst()
	if err != nil {
		return 0, err
	}
	physical := uint32(d.dataRegionStart()) + uint32(bit)
	zeroBlock(d.img.Block(layout.DataBlockIndex(physical)))

	sb := d.superblock()
	sb.FreeDataBlockCount--
	d.putSuperblock(sb)
	return physical, nil
}

// collectFreeDataBlockBits returns every currently-free block-bitmap bit, in
// ascending order, as data-region-relative indices. The extend path (§4.5.2)
// groups this list into contiguous runs before allocating anything.
func (d *Driver) collectFreeDataBlockBits() []uint32 {
	alloc := d.blockAllocator()
	var free []uint32
	for i := uint(0); i < alloc.TotalUnits; i++ {
		if !alloc.Get(i) {
			free = append(free, uint32(i))
		}
	}
	return free
}

// claimDataBlockBit marks a previously free block-bitmap bit allocated,
// zeroes the corresponding physical block, and updates the superblock's free
// count. Unlike allocDataBlock, the caller already knows which bit it wants.
func (d *Driver) claimDataBlockBit(bit uint32) {
	d.blockAllocator().Set(uint(bit), true)
	physical := uint32(d.dataRegionStart()) + bit
	zeroBlock(d.img.Block(layout.DataBlockIndex(physical)))

	sb := d.superblock()
	sb.FreeDataBlockCount--
	d.putSuperblock(sb)
}

func (d *Driver) freeDataBlock(physical uint32) {
	bit := uint(physical) - uint(d.dataRegionStart())
	_ = d.blockAllocator().Free(bit)
	zeroBlock(d.img.Block(layout.DataBlockIndex(physical)))

	sb := d.superblock()
	sb.FreeDataBlockCount++
	d.putSuperblock(sb)
}

func (d *Driver) allocExtent(e layout.Extent) (uint32, error) {
	idx, err := d.extents.Alloc(e)
	if err != nil {
		return 0, err
	}
	sb := d.superblock()
	sb.ReservedExtentCount++
	d.putSuperblock(sb)
	return idx, nil
}

func (d *Driver) freeExtent(oneBasedIndex uint32) {
	d.extents.Free(oneBasedIndex)
	sb := d.superblock()
	sb.ReservedExtentCount--
	d.putSuperblock(sb)
}

func zeroBlock(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func (d *Driver) getInode(index uint32) inode.Inode {
	return inode.Get(d.img, index)
}

// releaseExtentAndBlocks zeroes and frees every physical block of the named
// extent, then frees the extent slot itself. Used by rmdir and unlink, which
// tear down a whole inode's data (§4.4).
func (d *Driver) releaseExtentAndBlocks(oneBasedIdx uint32) {
	e := d.extents.Get(oneBasedIdx)
	for j := uint32(0); j < e.Count; j++ {
		d.freeDataBlock(e.Start + j)
	}
	d.freeExtent(oneBasedIdx)
}
