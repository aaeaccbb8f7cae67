// Package format implements the Formatter (§4.6): laying out a fresh A1FS
// image that the engine can mount.
package format

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/noxer/bytewriter"
	"github.com/sirupsen/logrus"

	"github.com/a1fs/a1fs"
	"github.com/a1fs/a1fs/internal/dentry"
	"github.com/a1fs/a1fs/internal/layout"
)

// Options controls formatter behavior beyond the bare (size, inodeCount)
// pair. Only logging is set here; the CLI handles its -f, -s and -z flags
// itself (§6.3).
type Options struct {
	Log *logrus.Entry
}

func ceilDiv(a, b uint64) uint64 { return (a + b - 1) / b }

// Validate checks the preconditions shared by Format and its CLI (§4.6):
// size must be a positive multiple of the block size, inodeCount must be
// positive, and the fixed metadata region plus the inode table must leave
// at least one block for data.
func Validate(size int64, inodeCount uint32) error {
	if size <= 0 || size%layout.BlockSize != 0 {
		return fmt.Errorf("image size %d is not a positive multiple of %d", size, layout.BlockSize)
	}
	if inodeCount == 0 {
		return fmt.Errorf("inode count must be greater than zero")
	}

	inodeBlocks := ceilDiv(uint64(inodeCount), layout.InodesPerBlock)
	totalBlocks := uint64(size) / layout.BlockSize
	if inodeBlocks+5 > totalBlocks {
		return fmt.Errorf(
			"image too small for %d inodes: need at least %d blocks, have %d",
			inodeCount, inodeBlocks+5, totalBlocks)
	}
	return nil
}

// Format lays out a brand new image and writes every byte of it to dst.
// It runs Validate on size and inodeCount before writing anything; the CLI
// also calls Validate first so it can report a clean error before touching
// the image file.
func Format(dst io.Writer, size int64, inodeCount uint32, opts Options) error {
	if err := Validate(size, inodeCount); err != nil {
		return err
	}

	totalBlocks := uint64(size) / layout.BlockSize
	inodeBlocks := ceilDiv(uint64(inodeCount), layout.InodesPerBlock)
	dataBlockCount := totalBlocks - layout.FirstMetaBlocks - inodeBlocks
	rootDataBlock := uint32(layout.FirstMetaBlocks + inodeBlocks)

	image := make([]byte, size)
	bw := bytewriter.New(image)

	if err := writeBlock(bw, writeSuperblockBlock(layout.Superblock{
		Magic:               layout.Magic,
		Size:                uint64(size),
		InodeCount:          inodeCount,
		InodeBlocks:         uint32(inodeBlocks),
		FreeInodeCount:      inodeCount - 1,
		DataBlockCount:      dataBlockCount,
		FreeDataBlockCount:  dataBlockCount - 1,
		ReservedExtentCount: 1,
	})); err != nil {
		return err
	}

	// Both bitmaps get two bits set at format time (bits 0 and 1), though
	// only index 0 is ever referenced elsewhere. Preserved from the source
	// rather than corrected (§9, point 1).
	if err := writeBlock(bw, writeBitmapBlock(0x03)); err != nil {
		return err
	}
	if err := writeBlock(bw, writeBitmapBlock(0x03)); err != nil {
		return err
	}

	if err := writeBlock(bw, writeExtentTableBlock(layout.Extent{Start: rootDataBlock, Count: 1})); err != nil {
		return err
	}

	now := time.Now()
	rootInode := layout.RawInode{
		Mode:      a1fs.DefaultDirMode,
		Links:     2,
		Size:      2 * layout.DentrySize,
		MtimeSec:  now.Unix(),
		MtimeNsec: int64(now.Nanosecond()),
	}
	rootInode.ExtentIndices[0] = 1 // slot 0's 1-based index

	for block := uint64(0); block < inodeBlocks; block++ {
		inodes := [layout.InodesPerBlock]layout.RawInode{}
		if block == 0 {
			inodes[0] = rootInode
		}
		if err := writeBlock(bw, writeInodeTableBlock(inodes[:])); err != nil {
			return err
		}
	}

	rootDirData := make([]byte, layout.BlockSize)
	dentry.InitDirectoryBlock(rootDirData, 0, 0, inodeCount)
	if err := writeBlock(bw, func(b []byte) { copy(b, rootDirData) }); err != nil {
		return err
	}

	for block := rootDataBlock + 1; uint64(block) < totalBlocks; block++ {
		if err := writeBlock(bw, func(b []byte) {}); err != nil {
			return err
		}
	}

	if opts.Log != nil {
		opts.Log.WithField("size", size).
			WithField("inode_count", inodeCount).
			WithField("data_blocks", dataBlockCount).
			Info("formatted image")
	}

	_, err := dst.Write(image)
	return err
}

// writeBlock fills a fresh, zeroed block-sized buffer with fn and advances
// bw by exactly one block.
func writeBlock(bw io.Writer, fn func([]byte)) error {
	buf := make([]byte, layout.BlockSize)
	fn(buf)
	_, err := bw.Write(buf)
	return err
}

func writeSuperblockBlock(sb layout.Superblock) func([]byte) {
	return func(b []byte) {
		binary.LittleEndian.PutUint64(b[0:], sb.Magic)
		binary.LittleEndian.PutUint64(b[8:], sb.Size)
		binary.LittleEndian.PutUint32(b[16:], sb.InodeCount)
		binary.LittleEndian.PutUint32(b[20:], sb.InodeBlocks)
		binary.LittleEndian.PutUint32(b[24:], sb.FreeInodeCount)
		binary.LittleEndian.PutUint64(b[28:], sb.DataBlockCount)
		binary.LittleEndian.PutUint64(b[36:], sb.FreeDataBlockCount)
		binary.LittleEndian.PutUint32(b[44:], sb.ReservedExtentCount)
	}
}

func writeBitmapBlock(firstByte byte) func([]byte) {
	return func(b []byte) { b[0] = firstByte }
}

func writeExtentTableBlock(first layout.Extent) func([]byte) {
	return func(b []byte) {
		binary.LittleEndian.PutUint32(b[0:], first.Start)
		binary.LittleEndian.PutUint32(b[4:], first.Count)
	}
}

func writeInodeTableBlock(inodes []layout.RawInode) func([]byte) {
	return func(b []byte) {
		for i, ri := range inodes {
			off := i * layout.InodeSize
			binary.LittleEndian.PutUint32(b[off:], ri.Mode)
			binary.LittleEndian.PutUint32(b[off+4:], ri.Links)
			binary.LittleEndian.PutUint64(b[off+8:], ri.Size)
			binary.LittleEndian.PutUint64(b[off+16:], uint64(ri.MtimeSec))
			binary.LittleEndian.PutUint64(b[off+24:], uint64(ri.MtimeNsec))
			for j, idx := range ri.ExtentIndices {
				binary.LittleEndian.PutUint32(b[off+32+4*j:], idx)
			}
		}
	}
}
