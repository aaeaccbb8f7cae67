package dentry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a1fs/a1fs/internal/dentry"
	"github.com/a1fs/a1fs/internal/extent"
	"github.com/a1fs/a1fs/internal/inode"
	"github.com/a1fs/a1fs/internal/layout"
)

const inodeCount = 32

// newDir builds a one-extent, one-block directory inode initialized with
// "." and ".." pointing at self/parent, for exercising the dentry scan
// primitives in isolation from the engine.
func newDir(t *testing.T, img *layout.Image, extents extent.Manager, self, parent uint32) inode.Inode {
	t.Helper()
	blockIdx := uint32(10 + self)
	idx, err := extents.Alloc(layout.Extent{Start: blockIdx, Count: 1})
	require.NoError(t, err)

	data := img.Block(layout.DataBlockIndex(blockIdx))
	dentry.InitDirectoryBlock(data, self, parent, inodeCount)

	n := inode.Inode{Index: self}
	n.Raw.ExtentIndices[0] = idx
	n.Raw.Size = 2 * layout.DentrySize
	return n
}

func setup(t *testing.T) (*layout.Image, extent.Manager) {
	t.Helper()
	img, err := layout.NewImage(make([]byte, 64*layout.BlockSize))
	require.NoError(t, err)
	return img, extent.New(img)
}

func TestInitDirectoryBlockLaysOutDotAndDotDot(t *testing.T) {
	img, extents := setup(t)
	dir := newDir(t, img, extents, 1, 0)

	found, ok := dentry.FindByName(img, extents, dir, ".", inodeCount)
	require.True(t, ok)
	assert.Equal(t, uint32(1), found)

	found, ok = dentry.FindByName(img, extents, dir, "..", inodeCount)
	require.True(t, ok)
	assert.Equal(t, uint32(0), found)

	assert.False(t, dentry.HasEntryPastDotDot(img, extents, dir, inodeCount))
}

func TestFindEmptySlotAndInsert(t *testing.T) {
	img, extents := setup(t)
	dir := newDir(t, img, extents, 1, 0)

	data, slot, ok := dentry.FindEmptySlot(img, extents, dir, inodeCount)
	require.True(t, ok)
	assert.Equal(t, 2, slot, "first two slots are . and ..")

	layout.SetDentryAtSlot(data, slot, layout.RawDentry{Inode: 5, Name: "child"})

	got, ok := dentry.FindByName(img, extents, dir, "child", inodeCount)
	require.True(t, ok)
	assert.Equal(t, uint32(5), got)
	assert.True(t, dentry.HasEntryPastDotDot(img, extents, dir, inodeCount))
}

func TestRemoveByName(t *testing.T) {
	img, extents := setup(t)
	dir := newDir(t, img, extents, 1, 0)

	data, slot, _ := dentry.FindEmptySlot(img, extents, dir, inodeCount)
	layout.SetDentryAtSlot(data, slot, layout.RawDentry{Inode: 5, Name: "child"})

	removed := dentry.RemoveByName(img, extents, dir, "child", inodeCount)
	assert.True(t, removed)

	_, ok := dentry.FindByName(img, extents, dir, "child", inodeCount)
	assert.False(t, ok)
	assert.False(t, dentry.HasEntryPastDotDot(img, extents, dir, inodeCount))
}

func TestHasEntryPastDotDotOnlySkipsFirstBlock(t *testing.T) {
	img, extents := setup(t)
	dir := newDir(t, img, extents, 1, 0)

	// Add a second extent/block as a secondary directory block whose slot 0
	// is non-empty; this must NOT be treated as a sentinel "." slot.
	secondBlock := uint32(50)
	idx, err := extents.Alloc(layout.Extent{Start: secondBlock, Count: 1})
	require.NoError(t, err)
	data := img.Block(layout.DataBlockIndex(secondBlock))
	for s := 0; s < layout.DentriesPerBlock; s++ {
		layout.SetDentryAtSlot(data, s, dentry.EmptySentinel(inodeCount))
	}
	layout.SetDentryAtSlot(data, 0, layout.RawDentry{Inode: 9, Name: "leftover"})
	dir.Raw.ExtentIndices[1] = idx

	assert.True(t, dentry.HasEntryPastDotDot(img, extents, dir, inodeCount),
		"a non-empty slot 0 of a secondary block must count as non-empty (§9 point 5)")
}

func TestWalkStopsEarlyWhenVisitorReturnsFalse(t *testing.T) {
	img, extents := setup(t)
	dir := newDir(t, img, extents, 1, 0)

	visited := 0
	dentry.Walk(img, extents, dir, func(_ uint32, _ []byte) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}
