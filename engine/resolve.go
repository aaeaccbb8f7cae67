package engine

import (
	"strings"

	"github.com/a1fs/a1fs/errors"
	"github.com/a1fs/a1fs/internal/dentry"
	"github.com/a1fs/a1fs/internal/inode"
)

// splitComponents splits a path on '/', discarding empty components (a
// leading slash, or a trailing slash on anything but the root).
func splitComponents(path string) []string {
	var out []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolve walks path from the root, component by component (§4.1). Resolving
// "/" returns the root inode with no iteration.
func (d *Driver) resolve(path string) (inode.Inode, error) {
	components := splitComponents(path)
	current := d.getInode(RootInodeIndex)

	for i, name := range components {
		isFinal := i == len(components)-1
		if !current.IsDirectory() && !isFinal {
			return inode.Inode{}, errors.ErrNotADirectory
		}

		childIdx, ok := dentry.FindByName(d.img, d.extents, current, name, d.inodeCount())
		if !ok {
			return inode.Inode{}, errors.ErrNoEntry
		}
		current = d.getInode(childIdx)
	}
	return current, nil
}

// resolveParent resolves every component but the last, returning the
// parent directory's inode plus the unresolved final component. It's used
// by every operation that creates, removes, or renames an entry.
func (d *Driver) resolveParent(path string) (inode.Inode, string, error) {
	components := splitComponents(path)
	if len(components) == 0 {
		return inode.Inode{}, "", errors.ErrInvalidArgument.WithMessage("path has no final component")
	}

	final := components[len(components)-1]
	current := d.getInode(RootInodeIndex)

	for _, name := range components[:len(components)-1] {
		if !current.IsDirectory() {
			return inode.Inode{}, "", errors.ErrNotADirectory
		}
		childIdx, ok := dentry.FindByName(d.img, d.extents, current, name, d.inodeCount())
		if !ok {
			return inode.Inode{}, "", errors.ErrNoEntry
		}
		current = d.getInode(childIdx)
	}
	return current, final, nil
}
