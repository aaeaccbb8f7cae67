package layout

import "encoding/binary"

// RawDentry is the exact on-disk directory entry layout (§6.1): a 32-bit
// inode number plus a fixed-width NUL-terminated name.
type RawDentry struct {
	Inode uint32
	Name  string
}

// EmptyInodeMarker is the convention-defined inode value a sentinel empty
// dentry carries: the first value outside [0, N).
func EmptyInodeMarker(inodeCount uint32) uint32 {
	return inodeCount + 1
}

// IsEmptyDentry reports whether inode falls outside the valid inode range
// [0, inodeCount), the definition of an empty dentry slot (§3).
func IsEmptyDentry(inode, inodeCount uint32) bool {
	return inode >= inodeCount
}

// DentryAtSlot decodes dentry slot (0..15) from the given data block.
func DentryAtSlot(block []byte, slot int) RawDentry {
	off := slot * DentrySize
	b := block[off : off+DentrySize]
	inode := binary.LittleEndian.Uint32(b[:4])
	nameBytes := b[4:]
	nul := len(nameBytes)
	for i, c := range nameBytes {
		if c == 0 {
			nul = i
			break
		}
	}
	return RawDentry{Inode: inode, Name: string(nameBytes[:nul])}
}

// SetDentryAtSlot encodes d into slot (0..15) of the given data block.
func SetDentryAtSlot(block []byte, slot int, d RawDentry) {
	off := slot * DentrySize
	b := block[off : off+DentrySize]
	binary.LittleEndian.PutUint32(b[:4], d.Inode)

	nameField := b[4:]
	for i := range nameField {
		nameField[i] = 0
	}
	copy(nameField, d.Name)
}
