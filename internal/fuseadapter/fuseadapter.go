// Package fuseadapter implements the Kernel-Bridge Adapter (§2, item 10):
// a jacobsa/fuse fuseutil.FileSystem that dispatches each op to an
// engine.Driver and translates the result back into fuseops types. The
// adapter holds the single coarse lock the engine's concurrency model
// allows for (§5, §9): every op runs under it, serializing access exactly
// as the single-threaded cooperative model assumes.
package fuseadapter

import (
	"context"
	"os"
	"path"
	"sync"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/sirupsen/logrus"

	"github.com/a1fs/a1fs"
	aerrors "github.com/a1fs/a1fs/errors"
	"github.com/a1fs/a1fs/engine"
	"github.com/a1fs/a1fs/internal/layout"
)

// FileSystem adapts an engine.Driver to fuseutil.FileSystem. Paths are the
// engine's native addressing; the adapter's only real job beyond dispatch is
// remembering the path each inode ID and handle ID corresponds to, since
// FUSE addresses everything after the initial lookup by ID rather than path.
type FileSystem struct {
	fuseutil.NotImplementedFileSystem

	mu     sync.Mutex
	driver *engine.Driver
	log    *logrus.Entry

	pathByInode map[fuseops.InodeID]string
	nextHandle  fuseops.HandleID
	dirHandles  map[fuseops.HandleID]string
	fileHandles map[fuseops.HandleID]string
}

// New wraps driver for serving over FUSE. log may be nil.
func New(driver *engine.Driver, log *logrus.Entry) *FileSystem {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &FileSystem{
		driver:      driver,
		log:         log,
		pathByInode: map[fuseops.InodeID]string{fuseops.RootInodeID: "/"},
		dirHandles:  map[fuseops.HandleID]string{},
		fileHandles: map[fuseops.HandleID]string{},
	}
}

// inodeID maps an a1fs inode index to the FUSE ID space, where 1 is
// reserved for the root. a1fs's root index is 0, so this is a flat offset.
func inodeID(a1fsIndex uint32) fuseops.InodeID {
	return fuseops.InodeID(a1fsIndex) + 1
}

func (fs *FileSystem) pathFor(id fuseops.InodeID) (string, bool) {
	p, ok := fs.pathByInode[id]
	return p, ok
}

func (fs *FileSystem) remember(id fuseops.InodeID, p string) {
	fs.pathByInode[id] = p
}

// childPath joins parent and name and enforces the total-path-length limit
// the adapter is responsible for (spec §4.1, §7: NAME_TOO_LONG on path
// length >= the path-max constant), independent of any per-component name
// length check the engine applies on insert.
func childPath(parent, name string) (string, error) {
	p := path.Join(parent, name)
	if len(p) >= layout.PathMax {
		return "", aerrors.ErrNameTooLong
	}
	return p, nil
}

// toErrno translates the engine's DiskoError taxonomy into a plain errno,
// the return type fuseutil.FileSystem methods expect.
func toErrno(err error) error {
	if err == nil {
		return nil
	}
	if de, ok := err.(aerrors.DiskoError); ok {
		return de.Errno()
	}
	return err
}

func toAttr(stat a1fs.FileStat) fuseops.InodeAttributes {
	mode := os.FileMode(stat.ModeFlags & (a1fs.S_IRWXU | a1fs.S_IRWXG | a1fs.S_IRWXO))
	if stat.IsDir() {
		mode |= os.ModeDir
	}
	return fuseops.InodeAttributes{
		Size:  uint64(stat.Size),
		Nlink: stat.Nlinks,
		Mode:  mode,
		Mtime: stat.LastModified,
		Atime: stat.LastModified,
		Ctime: stat.LastModified,
	}
}

func (fs *FileSystem) statAndRemember(p string) (fuseops.InodeAttributes, error) {
	stat, err := fs.driver.Getattr(p)
	if err != nil {
		return fuseops.InodeAttributes{}, toErrno(err)
	}
	fs.remember(inodeID(stat.InodeNumber), p)
	return toAttr(stat), nil
}

func (fs *FileSystem) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	stat, err := fs.driver.Statfs()
	if err != nil {
		return toErrno(err)
	}
	op.BlockSize = uint32(stat.BlockSize)
	op.Blocks = stat.TotalBlocks
	op.BlocksFree = stat.BlocksFree
	op.BlocksAvailable = stat.BlocksAvailable
	op.Inodes = stat.Files + stat.FilesFree
	op.InodesFree = stat.FilesFree
	return nil
}

func (fs *FileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		return aerrors.ErrNoEntry.Errno()
	}
	p, err := childPath(parentPath, op.Name)
	if err != nil {
		return toErrno(err)
	}

	attr, err := fs.statAndRemember(p)
	if err != nil {
		return err
	}
	stat, _ := fs.driver.Getattr(p)
	op.Entry.Child = inodeID(stat.InodeNumber)
	op.Entry.Attributes = attr
	return nil
}

func (fs *FileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, ok := fs.pathFor(op.Inode)
	if !ok {
		return aerrors.ErrNoEntry.Errno()
	}
	attr, err := fs.statAndRemember(p)
	if err != nil {
		return err
	}
	op.Attributes = attr
	return nil
}

func (fs *FileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, ok := fs.pathFor(op.Inode)
	if !ok {
		return aerrors.ErrNoEntry.Errno()
	}
	if op.Size != nil {
		if err := fs.driver.Truncate(p, *op.Size); err != nil {
			return toErrno(err)
		}
	}
	if op.Mtime != nil {
		if err := fs.driver.Utimens(p, *op.Mtime); err != nil {
			return toErrno(err)
		}
	}
	attr, err := fs.statAndRemember(p)
	if err != nil {
		return err
	}
	op.Attributes = attr
	return nil
}

func (fs *FileSystem) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.pathByInode, op.Inode)
	return nil
}

func (fs *FileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		return aerrors.ErrNoEntry.Errno()
	}
	p, err := childPath(parentPath, op.Name)
	if err != nil {
		return toErrno(err)
	}
	if err := fs.driver.Mkdir(p, uint32(op.Mode.Perm())); err != nil {
		return toErrno(err)
	}

	attr, err := fs.statAndRemember(p)
	if err != nil {
		return err
	}
	stat, _ := fs.driver.Getattr(p)
	op.Entry.Child = inodeID(stat.InodeNumber)
	op.Entry.Attributes = attr
	return nil
}

func (fs *FileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		return aerrors.ErrNoEntry.Errno()
	}
	p, err := childPath(parentPath, op.Name)
	if err != nil {
		return toErrno(err)
	}
	if err := fs.driver.Create(p, uint32(op.Mode.Perm())); err != nil {
		return toErrno(err)
	}

	attr, err := fs.statAndRemember(p)
	if err != nil {
		return err
	}
	stat, _ := fs.driver.Getattr(p)
	op.Entry.Child = inodeID(stat.InodeNumber)
	op.Entry.Attributes = attr

	fs.nextHandle++
	op.Handle = fs.nextHandle
	fs.fileHandles[op.Handle] = p
	return nil
}

func (fs *FileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		return aerrors.ErrNoEntry.Errno()
	}
	p, err := childPath(parentPath, op.Name)
	if err != nil {
		return toErrno(err)
	}
	return toErrno(fs.driver.Rmdir(p))
}

func (fs *FileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		return aerrors.ErrNoEntry.Errno()
	}
	p, err := childPath(parentPath, op.Name)
	if err != nil {
		return toErrno(err)
	}
	return toErrno(fs.driver.Unlink(p))
}

func (fs *FileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	oldParent, ok := fs.pathFor(op.OldParent)
	if !ok {
		return aerrors.ErrNoEntry.Errno()
	}
	newParent, ok := fs.pathFor(op.NewParent)
	if !ok {
		return aerrors.ErrNoEntry.Errno()
	}
	oldPath, err := childPath(oldParent, op.OldName)
	if err != nil {
		return toErrno(err)
	}
	newPath, err := childPath(newParent, op.NewName)
	if err != nil {
		return toErrno(err)
	}
	return toErrno(fs.driver.Rename(oldPath, newPath))
}

func (fs *FileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, ok := fs.pathFor(op.Inode)
	if !ok {
		return aerrors.ErrNoEntry.Errno()
	}
	fs.nextHandle++
	op.Handle = fs.nextHandle
	fs.dirHandles[op.Handle] = p
	return nil
}

func (fs *FileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, ok := fs.dirHandles[op.Handle]
	if !ok {
		return aerrors.ErrInvalidArgument.Errno()
	}

	var entries []fuseutil.Dirent
	offset := fuseops.DirOffset(0)
	err := fs.driver.Readdir(p, func(e engine.DirEntry) bool {
		offset++
		entries = append(entries, fuseutil.Dirent{
			Offset: offset,
			Inode:  inodeID(e.Inode),
			Name:   e.Name,
			Type:   fuseutil.DT_Unknown,
		})
		return true
	})
	if err != nil {
		return toErrno(err)
	}

	if int(op.Offset) >= len(entries) {
		return nil
	}
	n := 0
	for _, e := range entries[op.Offset:] {
		written := fuseutil.WriteDirent(op.Dst[n:], e)
		if written == 0 {
			break
		}
		n += written
	}
	op.BytesRead = n
	return nil
}

func (fs *FileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.dirHandles, op.Handle)
	return nil
}

func (fs *FileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, ok := fs.pathFor(op.Inode)
	if !ok {
		return aerrors.ErrNoEntry.Errno()
	}
	fs.nextHandle++
	op.Handle = fs.nextHandle
	fs.fileHandles[op.Handle] = p
	return nil
}

func (fs *FileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, ok := fs.fileHandles[op.Handle]
	if !ok {
		return aerrors.ErrInvalidArgument.Errno()
	}
	n, err := fs.driver.Read(p, op.Dst[:op.Size], uint64(op.Offset))
	if err != nil {
		return toErrno(err)
	}
	op.BytesRead = n
	return nil
}

func (fs *FileSystem) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, ok := fs.fileHandles[op.Handle]
	if !ok {
		return aerrors.ErrInvalidArgument.Errno()
	}
	_, err := fs.driver.Write(p, op.Data, uint64(op.Offset))
	return toErrno(err)
}

func (fs *FileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.fileHandles, op.Handle)
	return nil
}

// SyncFile and FlushFile are no-ops beyond success: every write already
// lands directly in the mapping (§5), so there is nothing to flush except
// at unmount, which the Image Mapper handles outside the engine's scope.
func (fs *FileSystem) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error   { return nil }
func (fs *FileSystem) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error { return nil }

func (fs *FileSystem) Destroy() {}
