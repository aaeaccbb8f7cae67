// Package a1fs holds the types shared by every layer of the driver: the
// mode-bit constants, the DriverError wrapper, and the stat structures
// handed back across the adapter boundary.
package a1fs

import (
	"math"
	"time"
)

// FileStat is a platform-independent form of [syscall.Stat_t], filled in by
// engine.Driver.Getattr.
type FileStat struct {
	InodeNumber  uint64
	Nlinks       uint32
	ModeFlags    uint32
	Size         int64
	BlockSize    int64
	NumBlocks    int64 // in 512-byte units, per POSIX st_blocks
	LastModified time.Time
}

func (stat *FileStat) IsDir() bool {
	return IsDirMode(stat.ModeFlags)
}

func (stat *FileStat) IsFile() bool {
	return IsRegularMode(stat.ModeFlags)
}

// FSStat is a platform-independent form of [syscall.Statfs_t], filled in by
// engine.Driver.Statfs.
type FSStat struct {
	BlockSize       int64
	TotalBlocks     uint64
	BlocksFree      uint64
	BlocksAvailable uint64
	Files           uint64
	FilesFree       uint64
	MaxNameLength   int64
}

// UndefinedTimestamp is used where a timestamp field doesn't apply, such as
// the access time this file system never records.
var UndefinedTimestamp = time.UnixMicro(math.MaxInt64)
