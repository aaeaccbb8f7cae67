package engine

import (
	"github.com/a1fs/a1fs/errors"
	"github.com/a1fs/a1fs/internal/inode"
	"github.com/a1fs/a1fs/internal/layout"
)

func ceilDivBlocks(n uint64) uint64 {
	return (n + layout.BlockSize - 1) / layout.BlockSize
}

// Truncate implements truncate (§4.5.2): extend with zero-fill, or shrink
// with deallocation.
func (d *Driver) Truncate(path string, newSize uint64) error {
	target, err := d.resolve(path)
	if err != nil {
		return err
	}

	old := target.Raw.Size
	switch {
	case newSize > old:
		return d.extendFile(&target, old, newSize)
	case newSize < old:
		return d.shrinkFile(&target, old, newSize)
	default:
		return nil
	}
}

func (d *Driver) extendFile(n *inode.Inode, old, newSize uint64) error {
	need := ceilDivBlocks(newSize - old)

	sb := d.superblock()
	if need > sb.FreeDataBlockCount {
		return errors.ErrOutOfMemory
	}

	free := d.collectFreeDataBlockBits()
	committed := uint64(0)
	i := 0
	for committed < need && i < len(free) {
		runStart := free[i]
		runLen := uint32(1)
		j := i + 1
		for j < len(free) && free[j] == free[j-1]+1 && uint64(runLen) < need-committed {
			runLen++
			j++
		}

		slot := n.FirstFreeExtentSlot()
		if slot < 0 {
			return errors.ErrNoSpace
		}

		physicalStart := uint32(d.dataRegionStart()) + runStart
		extentIdx, err := d.allocExtent(layout.Extent{Start: physicalStart, Count: runLen})
		if err != nil {
			return err
		}
		for k := uint32(0); k < runLen; k++ {
			d.claimDataBlockBit(runStart + k)
		}
		n.Raw.ExtentIndices[slot] = extentIdx

		committed += uint64(runLen)
		i = j
	}

	n.Raw.Size = newSize
	n.Put(d.img)
	return nil
}

func (d *Driver) shrinkFile(n *inode.Inode, old, newSize uint64) error {
	// current counts every block the file holds, including any its size does
	// not reach (such as the block Create allocates), so the shrink releases
	// all blocks past the new size.
	target := ceilDivBlocks(newSize)
	current := uint64(len(n.LogicalBlockMap(d.extents)))
	drop := current - target

	d.zeroTailRange(*n, newSize, old)
	if drop == 0 {
		n.Raw.Size = newSize
		n.Put(d.img)
		return nil
	}

	for remaining := drop; remaining > 0; remaining-- {
		slot := n.LastUsedExtentSlot()
		if slot < 0 {
			break
		}
		idx := n.Raw.ExtentIndices[slot]
		e := d.extents.Get(idx)

		lastBlock := e.Start + e.Count - 1
		d.freeDataBlock(lastBlock)
		e.Count--

		if e.Count == 0 {
			d.freeExtent(idx)
			n.Raw.ExtentIndices[slot] = 0
		} else {
			d.extents.Set(idx, e)
		}
	}

	n.Raw.Size = newSize
	n.Put(d.img)
	return nil
}

// zeroTailRange clears bytes [newSize, old) that lie in the logical block
// holding offset newSize, the last block a shrink keeps unless newSize is
// block-aligned. The blocks after it are freed, and zeroed, by shrinkFile.
func (d *Driver) zeroTailRange(n inode.Inode, newSize, old uint64) {
	if newSize >= old {
		return
	}
	blockMap := n.LogicalBlockMap(d.extents)
	lastLogical := newSize / layout.BlockSize
	if int(lastLogical) >= len(blockMap) {
		return
	}

	physical := blockMap[lastLogical]
	data := d.img.Block(layout.DataBlockIndex(physical))

	localStart := newSize % layout.BlockSize
	localEnd := old - lastLogical*layout.BlockSize
	if localEnd > layout.BlockSize {
		localEnd = layout.BlockSize
	}
	for i := localStart; i < localEnd; i++ {
		data[i] = 0
	}
}

// Read implements read (§4.5.3).
func (d *Driver) Read(path string, buf []byte, offset uint64) (int, error) {
	target, err := d.resolve(path)
	if err != nil {
		return 0, err
	}
	if offset >= target.Raw.Size {
		return 0, nil
	}

	toRead := uint64(len(buf))
	if remaining := target.Raw.Size - offset; toRead > remaining {
		toRead = remaining
	}

	blockMap := target.LogicalBlockMap(d.extents)
	produced := uint64(0)
	for produced < toRead {
		logicalBlock := (offset + produced) / layout.BlockSize
		intra := (offset + produced) % layout.BlockSize
		if int(logicalBlock) >= len(blockMap) {
			break
		}

		data := d.img.Block(layout.DataBlockIndex(blockMap[logicalBlock]))
		n := layout.BlockSize - intra
		if remain := toRead - produced; n > remain {
			n = remain
		}
		copy(buf[produced:produced+n], data[intra:intra+n])
		produced += n
	}

	for i := produced; i < uint64(len(buf)); i++ {
		buf[i] = 0
	}
	return len(buf), nil
}

// Write implements write (§4.5.4): auto-extending, with eagerly zeroed holes
// courtesy of extendFile's zero-on-allocation.
func (d *Driver) Write(path string, buf []byte, offset uint64) (int, error) {
	target, err := d.resolve(path)
	if err != nil {
		return 0, err
	}

	need := offset + uint64(len(buf))
	if need > target.Raw.Size {
		if err := d.Truncate(path, need); err != nil {
			return 0, errors.ErrNoSpace
		}
		target = d.getInode(target.Index)
	}

	blockMap := target.LogicalBlockMap(d.extents)
	written := uint64(0)
	for written < uint64(len(buf)) {
		logicalBlock := (offset + written) / layout.BlockSize
		intra := (offset + written) % layout.BlockSize

		data := d.img.Block(layout.DataBlockIndex(blockMap[logicalBlock]))
		n := layout.BlockSize - intra
		if remain := uint64(len(buf)) - written; n > remain {
			n = remain
		}
		copy(data[intra:intra+n], buf[written:written+n])
		written += n
	}
	return len(buf), nil
}
