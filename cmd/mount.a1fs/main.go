// Command mount.a1fs mmaps an A1FS image and serves it over FUSE until
// unmounted (§2 item 1, Image Mapper; §2 item 10, Kernel-Bridge Adapter).
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"

	"github.com/a1fs/a1fs/engine"
	"github.com/a1fs/a1fs/internal/fsck"
	"github.com/a1fs/a1fs/internal/fuseadapter"
	"github.com/a1fs/a1fs/internal/layout"
)

func main() {
	app := &cli.App{
		Name:      "mount.a1fs",
		Usage:     "mount an A1FS image",
		ArgsUsage: "IMAGE_PATH MOUNT_POINT",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "sync", Usage: "flush the mapping synchronously at unmount"},
			&cli.BoolFlag{Name: "check", Usage: "run a consistency check before mounting"},
			&cli.BoolFlag{Name: "v", Usage: "verbose"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("mount.a1fs: %s", err)
	}
}

func run(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: mount.a1fs IMAGE_PATH MOUNT_POINT", 1)
	}
	imagePath := c.Args().Get(0)
	mountPoint := c.Args().Get(1)

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
		return cli.Exit(err.Error(), 1)
	}
	if info.Size() == 0 || info.Size()%layout.BlockSize != 0 {
		return cli.Exit("image size is not a positive multiple of the block size", 1)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return cli.Exit(fmt.Sprintf("mmap failed: %s", err), 1)
	}
	defer unix.Munmap(data)

	img, err := layout.NewImage(data)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if !img.ReadSuperblock().IsValid() {
		return cli.Exit("image is not a formatted A1FS volume", 1)
	}
	if c.Bool("check") {
		if err := fsck.Check(img); err != nil {
			return cli.Exit(fmt.Sprintf("consistency check failed: %s", err), 1)
		}
	}

	driver := engine.New(img, entry)
	fs := fuseadapter.New(driver, entry)
	server := fuseutil.NewFileSystemServer(fs)

	mfs, err := fuse.Mount(mountPoint, server, &fuse.MountConfig{
		FSName:      "a1fs",
		ErrorLogger: log2StdLogger(entry),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("mount failed: %s", err), 1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		entry.Info("unmount requested")
		if err := fuse.Unmount(mountPoint); err != nil {
			entry.WithError(err).Error("unmount failed")
		}
	}()

	if err := mfs.Join(c.Context); err != nil {
		return cli.Exit(fmt.Sprintf("serving filesystem: %s", err), 1)
	}

	if c.Bool("sync") {
		if err := unix.Msync(data, unix.MS_SYNC); err != nil {
			return cli.Exit(fmt.Sprintf("sync at unmount failed: %s", err), 1)
		}
	}
	return nil
}

func log2StdLogger(entry *logrus.Entry) *log.Logger {
	return log.New(entry.WriterLevel(logrus.ErrorLevel), "", 0)
}
