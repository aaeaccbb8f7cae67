package layout

import "encoding/binary"

const extentRecordSize = 8 // (start: u32, count: u32)

// Extent is a decoded (start, count) record: a run of count contiguous
// physical blocks beginning at the physical block index start.
type Extent struct {
	Start uint32
	Count uint32
}

// IsEmpty reports whether the slot holding this extent is unused.
func (e Extent) IsEmpty() bool {
	return e.Start == 0 && e.Count == 0
}

// ExtentAtSlot decodes the zero-based slot from the extent table (block 3).
func (img *Image) ExtentAtSlot(slot uint32) Extent {
	b := img.Block(ExtentTableIndex)
	off := int(slot) * extentRecordSize
	return Extent{
		Start: binary.LittleEndian.Uint32(b[off:]),
		Count: binary.LittleEndian.Uint32(b[off+4:]),
	}
}

// SetExtentAtSlot writes e into the zero-based slot of the extent table.
func (img *Image) SetExtentAtSlot(slot uint32, e Extent) {
	b := img.Block(ExtentTableIndex)
	off := int(slot) * extentRecordSize
	binary.LittleEndian.PutUint32(b[off:], e.Start)
	binary.LittleEndian.PutUint32(b[off+4:], e.Count)
}
