package inode_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a1fs/a1fs"
	"github.com/a1fs/a1fs/internal/extent"
	"github.com/a1fs/a1fs/internal/inode"
	"github.com/a1fs/a1fs/internal/layout"
)

func TestKindDispatchesOnModeBits(t *testing.T) {
	img, err := layout.NewImage(make([]byte, 8*layout.BlockSize))
	require.NoError(t, err)

	dir := inode.Inode{Index: 0, Raw: layout.RawInode{Mode: a1fs.DefaultDirMode}}
	dir.Put(img)
	assert.True(t, inode.Get(img, 0).IsDirectory())

	file := inode.Inode{Index: 1, Raw: layout.RawInode{Mode: a1fs.S_IFREG}}
	file.Put(img)
	assert.False(t, inode.Get(img, 1).IsDirectory())
	assert.Equal(t, inode.KindFile, inode.Get(img, 1).Kind())
}

func TestMtimeRoundTrip(t *testing.T) {
	n := inode.Inode{}
	ts := time.Unix(1_700_000_000, 123)
	n.SetMtime(ts)
	assert.Equal(t, ts, n.Mtime())
}

func TestFirstFreeAndLastUsedExtentSlot(t *testing.T) {
	var n inode.Inode
	assert.Equal(t, 0, n.FirstFreeExtentSlot())
	assert.Equal(t, -1, n.LastUsedExtentSlot())

	n.Raw.ExtentIndices[0] = 5
	n.Raw.ExtentIndices[2] = 7
	assert.Equal(t, 1, n.FirstFreeExtentSlot())
	assert.Equal(t, 2, n.LastUsedExtentSlot())

	for i := range n.Raw.ExtentIndices {
		n.Raw.ExtentIndices[i] = uint32(i + 1)
	}
	assert.Equal(t, -1, n.FirstFreeExtentSlot())
	assert.Equal(t, layout.MaxInodeExtents-1, n.LastUsedExtentSlot())
}

func TestLogicalBlockMapIsCorrectedNotBuggy(t *testing.T) {
	img, err := layout.NewImage(make([]byte, 32*layout.BlockSize))
	require.NoError(t, err)
	extents := extent.New(img)

	idx, err := extents.Alloc(layout.Extent{Start: 10, Count: 3})
	require.NoError(t, err)

	var n inode.Inode
	n.Raw.ExtentIndices[0] = idx

	blocks := n.LogicalBlockMap(extents)
	// The corrected mapping is extent.Start+j per block, not a repeated
	// extent.Start+Count-1 for every block (§9 point 3's fixed bug).
	assert.Equal(t, []uint32{10, 11, 12}, blocks)
}

func TestLogicalBlockMapConcatenatesInSlotOrder(t *testing.T) {
	img, err := layout.NewImage(make([]byte, 32*layout.BlockSize))
	require.NoError(t, err)
	extents := extent.New(img)

	idxA, _ := extents.Alloc(layout.Extent{Start: 10, Count: 2})
	idxB, _ := extents.Alloc(layout.Extent{Start: 20, Count: 1})

	var n inode.Inode
	n.Raw.ExtentIndices[0] = idxA
	n.Raw.ExtentIndices[5] = idxB

	assert.Equal(t, []uint32{10, 11, 20}, n.LogicalBlockMap(extents))
}

func TestBlockCount(t *testing.T) {
	n := inode.Inode{Raw: layout.RawInode{Size: 0}}
	assert.Equal(t, uint64(0), n.BlockCount())

	n.Raw.Size = 1
	assert.Equal(t, uint64(1), n.BlockCount())

	n.Raw.Size = layout.BlockSize
	assert.Equal(t, uint64(1), n.BlockCount())

	n.Raw.Size = layout.BlockSize + 1
	assert.Equal(t, uint64(2), n.BlockCount())
}
