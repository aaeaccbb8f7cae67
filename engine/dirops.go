package engine

import (
	"time"

	"github.com/a1fs/a1fs"
	"github.com/a1fs/a1fs/errors"
	"github.com/a1fs/a1fs/internal/dentry"
	"github.com/a1fs/a1fs/internal/inode"
	"github.com/a1fs/a1fs/internal/layout"
)

// insertDentry is the primitive shared by mkdir, create, and rename (§4.4):
// reuse an empty slot in one of the parent's existing blocks if one exists,
// otherwise grow the parent by one data block and write the entry there.
func (d *Driver) insertDentry(parent *inode.Inode, name string, childInode uint32) error {
	if len(name) > layout.NameMax {
		return errors.ErrNameTooLong
	}

	if data, slot, ok := dentry.FindEmptySlot(d.img, d.extents, *parent, d.inodeCount()); ok {
		layout.SetDentryAtSlot(data, slot, layout.RawDentry{Inode: childInode, Name: name})
		parent.Raw.Size += layout.DentrySize
		parent.Put(d.img)
		return nil
	}

	freeExtentSlot := parent.FirstFreeExtentSlot()
	if freeExtentSlot < 0 {
		return errors.ErrNoSpace
	}

	blockIdx, err := d.allocDataBlock()
	if err != nil {
		return err
	}
	extentIdx, err := d.allocExtent(layout.Extent{Start: blockIdx, Count: 1})
	if err != nil {
		d.freeDataBlock(blockIdx)
		return err
	}

	blockData := d.img.Block(layout.DataBlockIndex(blockIdx))
	dentry.InitDirectoryBlock(blockData, parent.Index, parent.Index, d.inodeCount())
	layout.SetDentryAtSlot(blockData, 2, layout.RawDentry{Inode: childInode, Name: name})

	parent.Raw.ExtentIndices[freeExtentSlot] = extentIdx
	parent.Raw.Size += layout.DentrySize
	parent.Put(d.img)
	return nil
}

// newObjectInode allocates an inode, a data block, and an extent for a fresh
// file or directory, and wires the extent into the new inode's first slot.
// The block has already been zeroed by allocDataBlock.
func (d *Driver) newObjectInode(mode uint32, size uint64, links uint32) (inode.Inode, uint32, error) {
	inodeIdx, err := d.allocInode()
	if err != nil {
		return inode.Inode{}, 0, err
	}
	blockIdx, err := d.allocDataBlock()
	if err != nil {
		d.freeInode(inodeIdx)
		return inode.Inode{}, 0, err
	}
	extentIdx, err := d.allocExtent(layout.Extent{Start: blockIdx, Count: 1})
	if err != nil {
		d.freeDataBlock(blockIdx)
		d.freeInode(inodeIdx)
		return inode.Inode{}, 0, err
	}

	n := inode.Inode{Index: inodeIdx}
	n.Raw.Mode = mode
	n.Raw.Links = links
	n.Raw.Size = size
	n.Raw.ExtentIndices[0] = extentIdx
	n.SetMtime(time.Now())
	return n, blockIdx, nil
}

// Mkdir implements mkdir (§4.4).
func (d *Driver) Mkdir(path string, mode uint32) error {
	parent, name, err := d.resolveParent(path)
	if err != nil {
		return err
	}
	if !parent.IsDirectory() {
		return errors.ErrNotADirectory
	}
	if _, exists := dentry.FindByName(d.img, d.extents, parent, name, d.inodeCount()); exists {
		return errors.ErrExists
	}

	dirInode, blockIdx, err := d.newObjectInode(mode|a1fs.S_IFDIR, 2*layout.DentrySize, 2)
	if err != nil {
		return err
	}

	blockData := d.img.Block(layout.DataBlockIndex(blockIdx))
	dentry.InitDirectoryBlock(blockData, dirInode.Index, parent.Index, d.inodeCount())
	dirInode.Put(d.img)

	if err := d.insertDentry(&parent, name, dirInode.Index); err != nil {
		d.releaseExtentAndBlocks(dirInode.Raw.ExtentIndices[0])
		d.img.ZeroInode(dirInode.Index)
		d.freeInode(dirInode.Index)
		return err
	}
	return nil
}

// Create implements create (§4.4). The data block backing the new file is
// left as allocated-and-zeroed; reads beyond size still read as zero via
// the File Data Engine, not because the block holds garbage.
func (d *Driver) Create(path string, mode uint32) error {
	parent, name, err := d.resolveParent(path)
	if err != nil {
		return err
	}
	if !parent.IsDirectory() {
		return errors.ErrNotADirectory
	}
	if _, exists := dentry.FindByName(d.img, d.extents, parent, name, d.inodeCount()); exists {
		return errors.ErrExists
	}

	fileInode, _, err := d.newObjectInode(mode|a1fs.S_IFREG, 0, 1)
	if err != nil {
		return err
	}
	fileInode.Put(d.img)

	if err := d.insertDentry(&parent, name, fileInode.Index); err != nil {
		d.releaseExtentAndBlocks(fileInode.Raw.ExtentIndices[0])
		d.img.ZeroInode(fileInode.Index)
		d.freeInode(fileInode.Index)
		return err
	}
	return nil
}

// releaseAllExtents tears down every extent and data block referenced by n,
// and clears n's own extent-index array.
func (d *Driver) releaseAllExtents(n *inode.Inode) {
	for i, idx := range n.Raw.ExtentIndices {
		if idx == 0 {
			continue
		}
		d.releaseExtentAndBlocks(idx)
		n.Raw.ExtentIndices[i] = 0
	}
}

// Rmdir implements rmdir (§4.4), using the corrected emptiness check
// (§9 point 5): only the `.`/`..` of the directory's very first block are
// skipped, not the first two slots of every block.
func (d *Driver) Rmdir(path string) error {
	parent, name, err := d.resolveParent(path)
	if err != nil {
		return err
	}
	if !parent.IsDirectory() {
		return errors.ErrNotADirectory
	}
	targetIdx, ok := dentry.FindByName(d.img, d.extents, parent, name, d.inodeCount())
	if !ok {
		return errors.ErrNoEntry
	}
	target := d.getInode(targetIdx)
	if !target.IsDirectory() {
		return errors.ErrNotADirectory
	}
	if dentry.HasEntryPastDotDot(d.img, d.extents, target, d.inodeCount()) {
		return errors.ErrNotEmpty
	}

	d.releaseAllExtents(&target)
	d.img.ZeroInode(target.Index)
	d.freeInode(target.Index)

	dentry.RemoveByName(d.img, d.extents, parent, name, d.inodeCount())
	return nil
}

// Unlink implements unlink (§4.4).
func (d *Driver) Unlink(path string) error {
	parent, name, err := d.resolveParent(path)
	if err != nil {
		return err
	}
	if !parent.IsDirectory() {
		return errors.ErrNotADirectory
	}
	targetIdx, ok := dentry.FindByName(d.img, d.extents, parent, name, d.inodeCount())
	if !ok {
		return errors.ErrNoEntry
	}
	target := d.getInode(targetIdx)
	if target.IsDirectory() {
		return errors.ErrNotADirectory
	}

	d.releaseAllExtents(&target)
	d.img.ZeroInode(target.Index)
	d.freeInode(target.Index)

	dentry.RemoveByName(d.img, d.extents, parent, name, d.inodeCount())
	return nil
}

// Rename implements rename (§4.4), preserving the source's quirky handling
// of an existing "to" rather than POSIX replace semantics (§9 point 4, a
// deliberately pinned choice: see DESIGN.md).
func (d *Driver) Rename(from, to string) error {
	fromParent, fromName, err := d.resolveParent(from)
	if err != nil {
		return err
	}
	if !fromParent.IsDirectory() {
		return errors.ErrNotADirectory
	}
	fromInodeIdx, ok := dentry.FindByName(d.img, d.extents, fromParent, fromName, d.inodeCount())
	if !ok {
		return errors.ErrNoEntry
	}

	toParent, toName, err := d.resolveParent(to)
	if err != nil {
		return err
	}
	if !toParent.IsDirectory() {
		return errors.ErrNotADirectory
	}

	destInodeIdx, destExists := dentry.FindByName(d.img, d.extents, toParent, toName, d.inodeCount())
	if destExists {
		destInode := d.getInode(destInodeIdx)
		if destInode.IsDirectory() {
			// Insert under the *original* name into the existing directory.
			dentry.RemoveByName(d.img, d.extents, fromParent, fromName, d.inodeCount())
			return d.insertDentry(&destInode, fromName, fromInodeIdx)
		}
		return errors.ErrNoSpace
	}

	dentry.RemoveByName(d.img, d.extents, fromParent, fromName, d.inodeCount())
	return d.insertDentry(&toParent, toName, fromInodeIdx)
}

// DirEntry is one name emitted by Readdir.
type DirEntry struct {
	Name  string
	Inode uint32
}

// Readdir implements readdir (§4.4). emit is called once per non-empty
// dentry in logical order; it returns false when the caller's buffer is
// full, which Readdir reports back to the adapter as OUT_OF_MEMORY.
func (d *Driver) Readdir(path string, emit func(DirEntry) bool) error {
	target, err := d.resolve(path)
	if err != nil {
		return err
	}
	if !target.IsDirectory() {
		return errors.ErrNotADirectory
	}

	full := false
	dentry.Walk(d.img, d.extents, target, func(_ uint32, data []byte) bool {
		for slot := 0; slot < layout.DentriesPerBlock; slot++ {
			raw := layout.DentryAtSlot(data, slot)
			if layout.IsEmptyDentry(raw.Inode, d.inodeCount()) {
				continue
			}
			if !emit(DirEntry{Name: raw.Name, Inode: raw.Inode}) {
				full = true
				return false
			}
		}
		return true
	})
	if full {
		return errors.ErrOutOfMemory
	}
	return nil
}

// Utimens implements utimens (§4.4). Only mtime is ever recorded.
func (d *Driver) Utimens(path string, mtime time.Time) error {
	target, err := d.resolve(path)
	if err != nil {
		return err
	}
	target.SetMtime(mtime)
	target.Put(d.img)
	return nil
}
