package layout

import "encoding/binary"

// RawInode is the exact on-disk inode layout (§6.1): mode, links, size,
// mtime as (sec, nsec), and 24 fixed extent-table indices (1-based, 0 =
// unused).
type RawInode struct {
	Mode          uint32
	Links         uint32
	Size          uint64
	MtimeSec      int64
	MtimeNsec     int64
	ExtentIndices [MaxInodeExtents]uint32
}

const (
	inoOffMode    = 0
	inoOffLinks   = 4
	inoOffSize    = 8
	inoOffMtimeS  = 16
	inoOffMtimeNS = 24
	inoOffExtents = 32
)

// inodeBlockAndOffset locates inode index within the inode table, which
// begins immediately after the extent table at block FirstMetaBlocks.
func inodeBlockAndOffset(index uint32) (block uint64, offset int) {
	block = FirstMetaBlocks + uint64(index)/InodesPerBlock
	offset = int(index%InodesPerBlock) * InodeSize
	return
}

// ReadInode decodes the inode at the given index.
func (img *Image) ReadInode(index uint32) RawInode {
	block, off := inodeBlockAndOffset(index)
	b := img.Block(block)[off : off+InodeSize]

	var ri RawInode
	ri.Mode = binary.LittleEndian.Uint32(b[inoOffMode:])
	ri.Links = binary.LittleEndian.Uint32(b[inoOffLinks:])
	ri.Size = binary.LittleEndian.Uint64(b[inoOffSize:])
	ri.MtimeSec = int64(binary.LittleEndian.Uint64(b[inoOffMtimeS:]))
	ri.MtimeNsec = int64(binary.LittleEndian.Uint64(b[inoOffMtimeNS:]))
	for i := 0; i < MaxInodeExtents; i++ {
		ri.ExtentIndices[i] = binary.LittleEndian.Uint32(b[inoOffExtents+4*i:])
	}
	return ri
}

// WriteInode persists ri at the given index.
func (img *Image) WriteInode(index uint32, ri RawInode) {
	block, off := inodeBlockAndOffset(index)
	b := img.Block(block)[off : off+InodeSize]

	binary.LittleEndian.PutUint32(b[inoOffMode:], ri.Mode)
	binary.LittleEndian.PutUint32(b[inoOffLinks:], ri.Links)
	binary.LittleEndian.PutUint64(b[inoOffSize:], ri.Size)
	binary.LittleEndian.PutUint64(b[inoOffMtimeS:], uint64(ri.MtimeSec))
	binary.LittleEndian.PutUint64(b[inoOffMtimeNS:], uint64(ri.MtimeNsec))
	for i := 0; i < MaxInodeExtents; i++ {
		binary.LittleEndian.PutUint32(b[inoOffExtents+4*i:], ri.ExtentIndices[i])
	}
}

// ZeroInode overwrites the inode slot with all zero bytes, used when freeing
// an inode.
func (img *Image) ZeroInode(index uint32) {
	block, off := inodeBlockAndOffset(index)
	b := img.Block(block)[off : off+InodeSize]
	for i := range b {
		b[i] = 0
	}
}
