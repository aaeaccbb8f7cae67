package format_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a1fs/a1fs"
	"github.com/a1fs/a1fs/format"
	"github.com/a1fs/a1fs/internal/layout"
)

func TestValidateRejectsBadSize(t *testing.T) {
	assert.Error(t, format.Validate(0, 32))
	assert.Error(t, format.Validate(4097, 32))
	assert.Error(t, format.Validate(layout.BlockSize, 0))
}

func TestValidateRejectsTooSmallForInodeCount(t *testing.T) {
	// 5 blocks hold the 4 fixed metadata blocks and one inode table block,
	// leaving no block for data.
	err := format.Validate(5*layout.BlockSize, 32)
	assert.Error(t, err)
}

func TestFormatProducesValidSuperblock(t *testing.T) {
	const totalBlocks = 64
	var buf bytes.Buffer

	err := format.Format(&buf, totalBlocks*layout.BlockSize, 32, format.Options{})
	require.NoError(t, err)
	require.Equal(t, totalBlocks*layout.BlockSize, buf.Len())

	img, err := layout.NewImage(buf.Bytes())
	require.NoError(t, err)

	sb := img.ReadSuperblock()
	assert.True(t, sb.IsValid())
	assert.EqualValues(t, 32, sb.InodeCount)
	assert.EqualValues(t, 1, sb.InodeBlocks) // ceil(32/32) = 1
	assert.EqualValues(t, 31, sb.FreeInodeCount)
	assert.EqualValues(t, totalBlocks-5, sb.DataBlockCount)
	assert.EqualValues(t, totalBlocks-5-1, sb.FreeDataBlockCount)
	assert.EqualValues(t, 1, sb.ReservedExtentCount)
}

func TestFormatSetsTwoBitsPerBitmap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, format.Format(&buf, 64*layout.BlockSize, 32, format.Options{}))

	img, err := layout.NewImage(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, byte(0x03), img.InodeBitmapBytes()[0])
	assert.Equal(t, byte(0x03), img.BlockBitmapBytes()[0])
}

func TestFormatWritesRootInodeAndExtent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, format.Format(&buf, 64*layout.BlockSize, 32, format.Options{}))

	img, err := layout.NewImage(buf.Bytes())
	require.NoError(t, err)

	root := img.ReadInode(0)
	assert.Equal(t, uint32(a1fs.DefaultDirMode), root.Mode)
	assert.EqualValues(t, 2, root.Links)
	assert.EqualValues(t, 2*layout.DentrySize, root.Size)
	assert.EqualValues(t, 1, root.ExtentIndices[0])

	e := img.ExtentAtSlot(0)
	assert.EqualValues(t, 1, e.Count)
	assert.EqualValues(t, layout.FirstMetaBlocks+1, e.Start) // 4 + IB(1)

	rootData := img.Block(uint64(e.Start))
	dot := layout.DentryAtSlot(rootData, 0)
	assert.Equal(t, ".", dot.Name)
	assert.EqualValues(t, 0, dot.Inode)

	dotdot := layout.DentryAtSlot(rootData, 1)
	assert.Equal(t, "..", dotdot.Name)
	assert.EqualValues(t, 0, dotdot.Inode)

	third := layout.DentryAtSlot(rootData, 2)
	assert.True(t, layout.IsEmptyDentry(third.Inode, 32))
}
