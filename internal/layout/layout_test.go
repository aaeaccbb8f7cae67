package layout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a1fs/a1fs/internal/layout"
)

func newTestImage(t *testing.T, blocks int) *layout.Image {
	t.Helper()
	img, err := layout.NewImage(make([]byte, blocks*layout.BlockSize))
	require.NoError(t, err)
	return img
}

func TestNewImageRejectsBadSizes(t *testing.T) {
	_, err := layout.NewImage(nil)
	assert.Error(t, err)

	_, err = layout.NewImage(make([]byte, layout.BlockSize+1))
	assert.Error(t, err)
}

func TestSuperblockRoundTrip(t *testing.T) {
	img := newTestImage(t, 8)
	sb := layout.Superblock{
		Magic:               layout.Magic,
		Size:                8 * layout.BlockSize,
		InodeCount:          32,
		InodeBlocks:         1,
		FreeInodeCount:      31,
		DataBlockCount:      3,
		FreeDataBlockCount:  2,
		ReservedExtentCount: 1,
	}
	img.WriteSuperblock(sb)

	got := img.ReadSuperblock()
	assert.Equal(t, sb, got)
	assert.True(t, got.IsValid())
}

func TestSuperblockInvalidMagic(t *testing.T) {
	img := newTestImage(t, 8)
	sb := img.ReadSuperblock()
	assert.False(t, sb.IsValid())
}

func TestExtentAtSlotRoundTrip(t *testing.T) {
	img := newTestImage(t, 8)
	e := layout.Extent{Start: 42, Count: 7}
	img.SetExtentAtSlot(3, e)

	assert.Equal(t, e, img.ExtentAtSlot(3))
	assert.True(t, img.ExtentAtSlot(4).IsEmpty())
}

func TestInodeRoundTrip(t *testing.T) {
	img := newTestImage(t, 8)
	ri := layout.RawInode{Mode: 0755, Links: 2, Size: 1024, MtimeSec: 100, MtimeNsec: 200}
	ri.ExtentIndices[0] = 1
	img.WriteInode(5, ri)

	assert.Equal(t, ri, img.ReadInode(5))

	img.ZeroInode(5)
	assert.Equal(t, layout.RawInode{}, img.ReadInode(5))
}

func TestDentryAtSlotRoundTrip(t *testing.T) {
	block := make([]byte, layout.BlockSize)
	d := layout.RawDentry{Inode: 3, Name: "hello.txt"}
	layout.SetDentryAtSlot(block, 2, d)

	got := layout.DentryAtSlot(block, 2)
	assert.Equal(t, d, got)
}

func TestEmptyDentryConvention(t *testing.T) {
	assert.Equal(t, uint32(33), layout.EmptyInodeMarker(32))
	assert.True(t, layout.IsEmptyDentry(33, 32))
	assert.True(t, layout.IsEmptyDentry(100, 32))
	assert.False(t, layout.IsEmptyDentry(31, 32))
}

func TestBlockBoundsAreExact(t *testing.T) {
	img := newTestImage(t, 3)
	b := img.Block(2)
	assert.Len(t, b, layout.BlockSize)
}
