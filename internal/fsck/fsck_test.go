package fsck_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a1fs/a1fs/engine"
	"github.com/a1fs/a1fs/format"
	"github.com/a1fs/a1fs/internal/extent"
	"github.com/a1fs/a1fs/internal/fsck"
	"github.com/a1fs/a1fs/internal/layout"
)

func freshImage(t *testing.T) *layout.Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, format.Format(&buf, 64*layout.BlockSize, 32, format.Options{}))
	img, err := layout.NewImage(buf.Bytes())
	require.NoError(t, err)
	return img
}

func TestCheckPassesOnFreshlyFormattedImage(t *testing.T) {
	assert.NoError(t, fsck.Check(freshImage(t)))
}

func TestCheckPassesAfterOrdinaryActivity(t *testing.T) {
	img := freshImage(t)
	d := engine.New(img, nil)

	require.NoError(t, d.Mkdir("/a", 0755))
	require.NoError(t, d.Create("/a/f", 0644))
	_, err := d.Write("/a/f", bytes.Repeat([]byte("z"), 9000), 0)
	require.NoError(t, err)

	assert.NoError(t, fsck.Check(img))
}

func TestCheckRejectsBadSuperblockMagic(t *testing.T) {
	img := freshImage(t)
	sb := img.ReadSuperblock()
	sb.Magic = 0xdeadbeef
	img.WriteSuperblock(sb)

	err := fsck.Check(img)
	assert.Error(t, err)
}

func TestCheckDetectsFreeInodeCountMismatch(t *testing.T) {
	img := freshImage(t)
	sb := img.ReadSuperblock()
	sb.FreeInodeCount++
	img.WriteSuperblock(sb)

	err := fsck.Check(img)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "free_inode_count")
}

func TestCheckDetectsFreeDataBlockCountMismatch(t *testing.T) {
	img := freshImage(t)
	sb := img.ReadSuperblock()
	sb.FreeDataBlockCount += 3
	img.WriteSuperblock(sb)

	err := fsck.Check(img)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "free_data_block_count")
}

func TestCheckDetectsDanglingExtentReference(t *testing.T) {
	img := freshImage(t)
	root := img.ReadInode(0)
	// Point the root's second extent slot at a slot that was never allocated.
	root.ExtentIndices[1] = 5
	img.WriteInode(0, root)

	err := fsck.Check(img)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestCheckDetectsSharedExtentBetweenInodes(t *testing.T) {
	img := freshImage(t)
	d := engine.New(img, nil)
	require.NoError(t, d.Create("/a", 0644))
	require.NoError(t, d.Create("/b", 0644))

	// Inode 1 is reserved at format time, so /a and /b are inodes 2 and 3.
	a := img.ReadInode(2)
	b := img.ReadInode(3)
	b.ExtentIndices[1] = a.ExtentIndices[0]
	img.WriteInode(3, b)

	err := fsck.Check(img)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "referenced by both")
}

func TestCheckDetectsBadDotEntry(t *testing.T) {
	img := freshImage(t)
	d := engine.New(img, nil)
	require.NoError(t, d.Mkdir("/a", 0755))

	a := img.ReadInode(2) // inode 1 is reserved at format time
	extents := extent.New(img)
	e := extents.Get(a.ExtentIndices[0])
	data := img.Block(layout.DataBlockIndex(e.Start))
	dot := layout.DentryAtSlot(data, 0)
	require.Equal(t, ".", dot.Name)
	layout.SetDentryAtSlot(data, 0, layout.RawDentry{Inode: dot.Inode, Name: "x"})

	err := fsck.Check(img)
	assert.Error(t, err)
}

func TestCheckAggregatesMultipleErrors(t *testing.T) {
	img := freshImage(t)
	sb := img.ReadSuperblock()
	sb.FreeInodeCount += 1
	sb.FreeDataBlockCount += 1
	img.WriteSuperblock(sb)

	err := fsck.Check(img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "free_inode_count")
	assert.Contains(t, err.Error(), "free_data_block_count")
}
