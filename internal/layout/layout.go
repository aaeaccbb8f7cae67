// Package layout provides typed, bounds-checked views over a mapped A1FS
// image. Nothing in this package does raw pointer arithmetic; every accessor
// works in block or slot indices and returns a bounded []byte or a decoded
// struct.
package layout

import "fmt"

// BlockSize is the fixed size, in bytes, of every block in the image.
const BlockSize = 4096

// Fixed block indices for the metadata region; see the layout table.
const (
	SuperblockIndex  = 0
	InodeBitmapIndex = 1
	BlockBitmapIndex = 2
	ExtentTableIndex = 3
	FirstMetaBlocks  = 4 // inode table starts here
)

// NumExtentSlots is the size of the global extent table.
const NumExtentSlots = 512

// MaxInodeExtents is the number of extent-index slots carried by each inode.
const MaxInodeExtents = 24

// InodeSize is the on-disk size, in bytes, of one packed inode record.
const InodeSize = 128

// InodesPerBlock is how many inode records fit in one block.
const InodesPerBlock = BlockSize / InodeSize

// DentrySize is the on-disk size, in bytes, of one directory entry.
const DentrySize = 256

// DentriesPerBlock is how many directory entries fit in one block.
const DentriesPerBlock = BlockSize / DentrySize

// NameMax is the longest name (excluding the terminating NUL) a dentry can
// hold.
const NameMax = DentrySize - 4 - 1

// PathMax is the longest full path (including the terminating NUL) the
// adapter accepts before resolving it, matching the reference driver's
// A1FS_PATH_MAX/PATH_MAX convention.
const PathMax = 4096

// Image is a typed view over a mapped A1FS image. All other layout views are
// obtained from an Image rather than constructed directly.
type Image struct {
	data []byte
}

// NewImage wraps a byte slice that must already be sized to a whole number
// of blocks. The caller (the Image Mapper, outside this package's scope)
// owns the lifetime of data; Image never reallocates it.
func NewImage(data []byte) (*Image, error) {
	if len(data) == 0 || len(data)%BlockSize != 0 {
		return nil, fmt.Errorf("image size %d is not a positive multiple of %d", len(data), BlockSize)
	}
	return &Image{data: data}, nil
}

// TotalBlocks returns the number of blocks in the whole image.
func (img *Image) TotalBlocks() uint64 {
	return uint64(len(img.data)) / BlockSize
}

// Bytes returns the entire backing slice, for walking the image outside the
// normal block-indexed accessors.
func (img *Image) Bytes() []byte {
	return img.data
}

// Block returns the bounded byte range for physical block index i.
func (img *Image) Block(i uint64) []byte {
	start := i * BlockSize
	return img.data[start : start+BlockSize]
}

// InodeBitmapBytes returns the backing bytes of the inode bitmap block.
func (img *Image) InodeBitmapBytes() []byte {
	return img.Block(InodeBitmapIndex)
}

// BlockBitmapBytes returns the backing bytes of the block bitmap block.
func (img *Image) BlockBitmapBytes() []byte {
	return img.Block(BlockBitmapIndex)
}

// DataBlockIndex converts a data block's physical index (as stored in an
// extent's start field) into the index type used by Block. Extents store
// absolute physical indices directly (see §6.1), so this is the identity function; it exists
// so callers never have to remember that fact themselves.
func DataBlockIndex(physical uint32) uint64 {
	return uint64(physical)
}
