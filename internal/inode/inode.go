// Package inode implements the Inode/Extent Model (§2.5, §4.5.1): the tagged
// {Directory, File} variant dispatched from mode bits, and the corrected
// logical-to-physical block map.
package inode

import (
	"time"

	"github.com/a1fs/a1fs"
	"github.com/a1fs/a1fs/internal/extent"
	"github.com/a1fs/a1fs/internal/layout"
)

// Kind is the tagged variant derived from an inode's mode bits (§9: no
// polymorphism, callers dispatch on the tag).
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

// Inode pairs a decoded RawInode with the index it was read from.
type Inode struct {
	Index uint32
	Raw   layout.RawInode
}

// Get decodes the inode at index from the image.
func Get(img *layout.Image, index uint32) Inode {
	return Inode{Index: index, Raw: img.ReadInode(index)}
}

// Put persists the inode back to the image.
func (n Inode) Put(img *layout.Image) {
	img.WriteInode(n.Index, n.Raw)
}

// Kind reports whether the inode is a directory or a regular file, per the
// A1FS tagged-variant dispatch convention.
func (n Inode) Kind() Kind {
	if a1fs.IsDirMode(n.Raw.Mode) {
		return KindDirectory
	}
	return KindFile
}

func (n Inode) IsDirectory() bool {
	return n.Kind() == KindDirectory
}

// Mtime returns the inode's last-modification time.
func (n Inode) Mtime() time.Time {
	return time.Unix(n.Raw.MtimeSec, n.Raw.MtimeNsec)
}

// SetMtime stamps the inode's last-modification time.
func (n *Inode) SetMtime(t time.Time) {
	n.Raw.MtimeSec = t.Unix()
	n.Raw.MtimeNsec = int64(t.Nanosecond())
}

// BlockCount is ceil(size / BlockSize), the number of logical blocks the
// inode's data currently spans.
func (n Inode) BlockCount() uint64 {
	return ceilDiv(n.Raw.Size, layout.BlockSize)
}

func ceilDiv(a uint64, b uint64) uint64 {
	return (a + b - 1) / b
}

// FirstFreeExtentSlot returns the index (0..23) of the first unused entry in
// the inode's extent-index array, or -1 if all 24 are occupied.
func (n Inode) FirstFreeExtentSlot() int {
	for i, idx := range n.Raw.ExtentIndices {
		if idx == 0 {
			return i
		}
	}
	return -1
}

// LastUsedExtentSlot returns the index (0..23) of the highest-indexed
// occupied entry in the extent-index array, or -1 if none are used. Shrink
// (§4.5.2) walks extents from here downward.
func (n Inode) LastUsedExtentSlot() int {
	last := -1
	for i, idx := range n.Raw.ExtentIndices {
		if idx != 0 {
			last = i
		}
	}
	return last
}

// LogicalBlockMap concatenates the physical blocks of every used extent, in
// extent-slot order (index 0..23, skipping unused slots). Logical block k of
// the file is element k of the returned slice. This is the corrected
// mapping: block j of an extent is extent.Start + j, not extent.Start +
// extent.Count - 1.
func (n Inode) LogicalBlockMap(extents extent.Manager) []uint32 {
	var blocks []uint32
	for _, idx := range n.Raw.ExtentIndices {
		if idx == 0 {
			continue
		}
		e := extents.Get(idx)
		for j := uint32(0); j < e.Count; j++ {
			blocks = append(blocks, e.Start+j)
		}
	}
	return blocks
}
