// Command mkfs.a1fs formats an image file with a fresh A1FS layout (§6.3).
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/xaionaro-go/bytesextra"

	"github.com/a1fs/a1fs/internal/layout"

	"github.com/a1fs/a1fs/format"
)

func main() {
	app := &cli.App{
		Name:      "mkfs.a1fs",
		Usage:     "initialize an A1FS image",
		ArgsUsage: "IMAGE_PATH",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "i", Usage: "inode count", Required: true},
			&cli.BoolFlag{Name: "f", Usage: "force reformat over an existing A1FS image"},
			&cli.BoolFlag{Name: "s", Usage: "sync to disk after format"},
			&cli.BoolFlag{Name: "v", Usage: "verbose"},
			&cli.BoolFlag{Name: "z", Usage: "zero the image first"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("mkfs.a1fs: %s", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("exactly one image path is required", 1)
	}
	imagePath := c.Args().First()
	inodeCount := c.Uint("i")
	if inodeCount == 0 {
		return cli.Exit("-i must be a positive inode count", 1)
	}

	log := logrus.New()
	if !c.Bool("v") {
		log.SetLevel(logrus.WarnLevel)
	}
	entry := log.WithField("image", imagePath)

	f, err := os.OpenFile(imagePath, os.O_RDWR, 0)
	if err != nil {
		return cli.Exit(fmt.Sprintf("opening image: %s", err), 1)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return cli.Exit(fmt.Sprintf("stating image: %s", err), 1)
	}
	size := info.Size()

	if !c.Bool("f") {
		if alreadyFormatted(f) {
			return cli.Exit("image already contains an A1FS filesystem; use -f to force", 1)
		}
	}

	if c.Bool("z") {
		if err := zeroFile(f, size); err != nil {
			return cli.Exit(fmt.Sprintf("zeroing image: %s", err), 1)
		}
	}

	if err := format.Validate(size, uint32(inodeCount)); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// Build the whole image in memory before touching the file, so a failure
	// partway through Format never leaves a half-written image on disk.
	staged := make([]byte, size)
	stream := bytesextra.NewReadWriteSeeker(staged)
	if err := format.Format(stream, size, uint32(inodeCount), format.Options{Log: entry}); err != nil {
		return cli.Exit(fmt.Sprintf("format failed: %s", err), 1)
	}
	if _, err := f.WriteAt(staged, 0); err != nil {
		return cli.Exit(fmt.Sprintf("writing formatted image: %s", err), 1)
	}

	if c.Bool("s") {
		if err := f.Sync(); err != nil {
			return cli.Exit(fmt.Sprintf("flush failed: %s", err), 1)
		}
	}

	entry.Info("format complete")
	return nil
}

// alreadyFormatted peeks at block 0 without disturbing the file offset the
// caller will use for the real format pass.
func alreadyFormatted(f *os.File) bool {
	buf := make([]byte, layout.BlockSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return false
	}
	sb, err := layout.NewImage(buf)
	if err != nil {
		return false
	}
	return sb.ReadSuperblock().IsValid()
}

func zeroFile(f *os.File, size int64) error {
	buf := make([]byte, layout.BlockSize)
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	for written := int64(0); written < size; written += layout.BlockSize {
		n := int64(layout.BlockSize)
		if size-written < n {
			n = size - written
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return err
		}
	}
	return nil
}
