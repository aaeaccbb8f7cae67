// Package dentry implements the directory-entry codec and the scan
// primitives shared by every Directory Operation (§3, §4.4): locating a name,
// finding an empty slot to reuse, and initializing a fresh directory block.
package dentry

import (
	"github.com/a1fs/a1fs/internal/extent"
	"github.com/a1fs/a1fs/internal/inode"
	"github.com/a1fs/a1fs/internal/layout"
)

// Visitor is called once per physical data block of a directory, in logical
// order. It returns false to stop the scan early.
type Visitor func(physicalBlock uint32, data []byte) bool

// Walk visits every data block of dir in logical order (every extent, every
// block within the extent), matching the traversal order the Path Resolver
// and readdir both use (§4.1, §4.4).
func Walk(img *layout.Image, extents extent.Manager, dir inode.Inode, visit Visitor) {
	for _, physBlock := range dir.LogicalBlockMap(extents) {
		data := img.Block(layout.DataBlockIndex(physBlock))
		if !visit(physBlock, data) {
			return
		}
	}
}

// FindByName scans dir for an exact, non-empty name match and returns the
// matched inode number.
func FindByName(img *layout.Image, extents extent.Manager, dir inode.Inode, name string, inodeCount uint32) (uint32, bool) {
	var found uint32
	var ok bool
	Walk(img, extents, dir, func(_ uint32, data []byte) bool {
		for slot := 0; slot < layout.DentriesPerBlock; slot++ {
			d := layout.DentryAtSlot(data, slot)
			if layout.IsEmptyDentry(d.Inode, inodeCount) {
				continue
			}
			if d.Name == name {
				found, ok = d.Inode, true
				return false
			}
		}
		return true
	})
	return found, ok
}

// FindEmptySlot returns the first empty dentry slot across dir's existing
// data blocks, used by the shared insert primitive (§4.4) before it resorts
// to allocating a new block.
func FindEmptySlot(img *layout.Image, extents extent.Manager, dir inode.Inode, inodeCount uint32) (data []byte, slot int, ok bool) {
	Walk(img, extents, dir, func(_ uint32, blockData []byte) bool {
		for s := 0; s < layout.DentriesPerBlock; s++ {
			d := layout.DentryAtSlot(blockData, s)
			if layout.IsEmptyDentry(d.Inode, inodeCount) {
				data, slot, ok = blockData, s, true
				return false
			}
		}
		return true
	})
	return
}

// RemoveByName clears the first matching non-empty dentry, resetting it to
// the empty sentinel. It reports whether a match was found.
func RemoveByName(img *layout.Image, extents extent.Manager, dir inode.Inode, name string, inodeCount uint32) bool {
	removed := false
	Walk(img, extents, dir, func(_ uint32, data []byte) bool {
		for slot := 0; slot < layout.DentriesPerBlock; slot++ {
			d := layout.DentryAtSlot(data, slot)
			if layout.IsEmptyDentry(d.Inode, inodeCount) {
				continue
			}
			if d.Name == name {
				layout.SetDentryAtSlot(data, slot, EmptySentinel(inodeCount))
				removed = true
				return false
			}
		}
		return true
	})
	return removed
}

// HasEntryPastDotDot reports whether any dentry after the first two of dir's
// very first data block (its `.` and `..`), across every extent and block of
// the directory as a whole, is non-empty. This is the corrected rmdir
// emptiness check: the buggy source only skipped slots 0 and 1 within *each*
// block rather than only the directory's first block (§9, point 5).
func HasEntryPastDotDot(img *layout.Image, extents extent.Manager, dir inode.Inode, inodeCount uint32) bool {
	first := true
	found := false
	Walk(img, extents, dir, func(_ uint32, data []byte) bool {
		start := 0
		if first {
			start = 2
			first = false
		}
		for slot := start; slot < layout.DentriesPerBlock; slot++ {
			d := layout.DentryAtSlot(data, slot)
			if !layout.IsEmptyDentry(d.Inode, inodeCount) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// EmptySentinel builds the canonical empty-dentry value for an image with
// the given inode count.
func EmptySentinel(inodeCount uint32) layout.RawDentry {
	return layout.RawDentry{Inode: layout.EmptyInodeMarker(inodeCount), Name: ""}
}

// InitDirectoryBlock lays out a freshly allocated directory data block: `.`
// pointing at self, `..` pointing at parent, and the remaining 14 slots set
// to the empty sentinel (§4.4, §4.6).
func InitDirectoryBlock(data []byte, self, parent, inodeCount uint32) {
	layout.SetDentryAtSlot(data, 0, layout.RawDentry{Inode: self, Name: "."})
	layout.SetDentryAtSlot(data, 1, layout.RawDentry{Inode: parent, Name: ".."})
	for slot := 2; slot < layout.DentriesPerBlock; slot++ {
		layout.SetDentryAtSlot(data, slot, EmptySentinel(inodeCount))
	}
}
