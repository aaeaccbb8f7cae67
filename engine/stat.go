package engine

import (
	"github.com/a1fs/a1fs"
	"github.com/a1fs/a1fs/errors"
	"github.com/a1fs/a1fs/internal/layout"
)

// Getattr implements getattr (§6.2).
func (d *Driver) Getattr(path string) (a1fs.FileStat, error) {
	target, err := d.resolve(path)
	if err != nil {
		return a1fs.FileStat{}, err
	}
	return a1fs.FileStat{
		InodeNumber: uint64(target.Index),
		Nlinks:      target.Raw.Links,
		ModeFlags:   target.Raw.Mode,
		Size:        int64(target.Raw.Size),
		BlockSize:   layout.BlockSize,
		NumBlocks:   int64(target.Raw.Size) / 512, // POSIX st_blocks units, §3 supplement
		LastModified: target.Mtime(),
	}, nil
}

// Statfs implements statfs (§6.2): reports CORRUPT_IMAGE if the superblock
// magic doesn't match.
func (d *Driver) Statfs() (a1fs.FSStat, error) {
	sb := d.superblock()
	if !sb.IsValid() {
		return a1fs.FSStat{}, errors.ErrCorruptImage
	}
	return a1fs.FSStat{
		BlockSize:       layout.BlockSize,
		TotalBlocks:     sb.DataBlockCount,
		BlocksFree:      sb.FreeDataBlockCount,
		BlocksAvailable: sb.FreeDataBlockCount,
		Files:           uint64(sb.InodeCount) - uint64(sb.FreeInodeCount),
		FilesFree:       uint64(sb.FreeInodeCount),
		MaxNameLength:   layout.NameMax,
	}, nil
}
