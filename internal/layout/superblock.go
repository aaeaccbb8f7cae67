package layout

import "encoding/binary"

// Magic identifies a block 0 as belonging to a formatted A1FS image. It's
// the ASCII bytes "A1FS_MAG" read as a little-endian uint64.
var Magic = binary.LittleEndian.Uint64([]byte("A1FS_MAG"))

// Superblock field byte offsets within block 0, in on-disk order.
const (
	sbOffMagic               = 0
	sbOffSize                = 8
	sbOffInodeCount          = 16
	sbOffInodeBlocks         = 20
	sbOffFreeInodeCount      = 24
	sbOffDataBlockCount      = 28
	sbOffFreeDataBlockCount  = 36
	sbOffReservedExtentCount = 44
)

// Superblock is a decoded in-memory copy of block 0. Callers read it with
// ReadSuperblock, mutate the copy, then persist it with WriteSuperblock.
type Superblock struct {
	Magic               uint64
	Size                uint64
	InodeCount          uint32
	InodeBlocks         uint32
	FreeInodeCount      uint32
	DataBlockCount      uint64
	FreeDataBlockCount  uint64
	ReservedExtentCount uint32
}

// ReadSuperblock decodes block 0 of the image.
func (img *Image) ReadSuperblock() Superblock {
	b := img.Block(SuperblockIndex)
	return Superblock{
		Magic:               binary.LittleEndian.Uint64(b[sbOffMagic:]),
		Size:                binary.LittleEndian.Uint64(b[sbOffSize:]),
		InodeCount:          binary.LittleEndian.Uint32(b[sbOffInodeCount:]),
		InodeBlocks:         binary.LittleEndian.Uint32(b[sbOffInodeBlocks:]),
		FreeInodeCount:      binary.LittleEndian.Uint32(b[sbOffFreeInodeCount:]),
		DataBlockCount:      binary.LittleEndian.Uint64(b[sbOffDataBlockCount:]),
		FreeDataBlockCount:  binary.LittleEndian.Uint64(b[sbOffFreeDataBlockCount:]),
		ReservedExtentCount: binary.LittleEndian.Uint32(b[sbOffReservedExtentCount:]),
	}
}

// WriteSuperblock persists sb into block 0. The remainder of the block is
// left untouched by this call; callers that need a pristine block (the
// formatter) should zero it first.
func (img *Image) WriteSuperblock(sb Superblock) {
	b := img.Block(SuperblockIndex)
	binary.LittleEndian.PutUint64(b[sbOffMagic:], sb.Magic)
	binary.LittleEndian.PutUint64(b[sbOffSize:], sb.Size)
	binary.LittleEndian.PutUint32(b[sbOffInodeCount:], sb.InodeCount)
	binary.LittleEndian.PutUint32(b[sbOffInodeBlocks:], sb.InodeBlocks)
	binary.LittleEndian.PutUint32(b[sbOffFreeInodeCount:], sb.FreeInodeCount)
	binary.LittleEndian.PutUint64(b[sbOffDataBlockCount:], sb.DataBlockCount)
	binary.LittleEndian.PutUint64(b[sbOffFreeDataBlockCount:], sb.FreeDataBlockCount)
	binary.LittleEndian.PutUint32(b[sbOffReservedExtentCount:], sb.ReservedExtentCount)
}

// IsValid reports whether the superblock's magic matches; callers use this
// to detect an unformatted or corrupted image (§7, CORRUPT_IMAGE).
func (sb Superblock) IsValid() bool {
	return sb.Magic == Magic
}
