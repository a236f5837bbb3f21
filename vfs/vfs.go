//go:build fuse

// Package vfs implements spec.md §6.4: the VFS adaptor mapping kernel
// upcalls onto journeyfs operations. It is built on go-fuse/v2's high-level
// fs package, the pack's own convention for a FUSE surface (see
// KarpelesLab-squashfs/inode_fuse.go, built behind the same //go:build fuse
// tag), rather than a bespoke syscall-level mount loop.
package vfs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/pascalmouret/jfs/fserr"
	"github.com/pascalmouret/jfs/journeyfs"
	"github.com/pascalmouret/jfs/meta"
)

// errnoFor maps an fserr.Error onto the syscall.Errno go-fuse expects,
// following the Kind→errno table in spec.md §7.
func errnoFor(err error) syscall.Errno {
	fsErr, ok := err.(*fserr.Error)
	if !ok {
		return syscall.EIO
	}
	return syscall.Errno(fsErr.Errno)
}

// Root is the FUSE root node for a mounted journeyfs filesystem.
type Root struct {
	fs.Inode
	FS   *journeyfs.JourneyFS
	path string
}

var (
	_ fs.NodeLookuper  = (*Root)(nil)
	_ fs.NodeGetattrer = (*Root)(nil)
	_ fs.NodeSetattrer = (*Root)(nil)
	_ fs.NodeMkdirer   = (*Root)(nil)
	_ fs.NodeCreater   = (*Root)(nil)
	_ fs.NodeUnlinker  = (*Root)(nil)
	_ fs.NodeRmdirer   = (*Root)(nil)
	_ fs.NodeReaddirer = (*Root)(nil)
	_ fs.NodeReader    = (*Root)(nil)
	_ fs.NodeWriter    = (*Root)(nil)
)

func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func (n *Root) child(path string) *Root {
	return &Root{FS: n.FS, path: path}
}

// fillAttr populates out from an inode's metadata, the journeyfs analogue of
// getattr(ino) → read_inode in spec.md §6.4's correspondence table.
func fillAttr(out *fuse.Attr, size uint64, m *meta.Metadata) {
	out.Size = size
	out.Mode = uint32(m.Permissions)
	if m.InodeType == meta.TypeDirectory {
		out.Mode |= syscall.S_IFDIR
	} else {
		out.Mode |= syscall.S_IFREG
	}
	out.Nlink = m.NLinks
	out.Uid = m.UserID
	out.Gid = m.GroupID
	out.Rdev = m.Rdev
	out.Atime = uint64(m.AccessedAt.Unix())
	out.Mtime = uint64(m.ModifiedAt.Unix())
	out.Ctime = uint64(m.ChangedAt.Unix())
}

// Getattr implements getattr(ino) → read_inode.
func (n *Root) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	inode, err := n.FS.Stat(n.path)
	if err != nil {
		return errnoFor(err)
	}
	fillAttr(&out.Attr, inode.Size, &inode.Meta)
	return 0
}

// Setattr implements setattr → mutate metadata fields. Size changes return
// EOPNOTSUPP per spec.md §6.4: journeyfs's Inode has no truncate operation.
func (n *Root) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if _, ok := in.GetSize(); ok {
		return errnoFor(fserr.NotSupported("truncate is not implemented"))
	}

	inode, err := n.FS.Stat(n.path)
	if err != nil {
		return errnoFor(err)
	}
	if mode, ok := in.GetMode(); ok {
		inode.Meta.Permissions = uint16(mode &^ syscall.S_IFMT)
	}
	if uid, ok := in.GetUID(); ok {
		inode.Meta.UserID = uid
	}
	if gid, ok := in.GetGID(); ok {
		inode.Meta.GroupID = gid
	}
	if err := n.FS.WriteInode(inode); err != nil {
		return errnoFor(err)
	}

	fillAttr(&out.Attr, inode.Size, &inode.Meta)
	return 0
}

// Lookup implements lookup → directory+inode payload operations.
func (n *Root) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := childPath(n.path, name)
	inode, err := n.FS.Stat(path)
	if err != nil {
		return nil, errnoFor(err)
	}

	fillAttr(&out.Attr, inode.Size, &inode.Meta)
	child := n.child(path)
	mode := uint32(syscall.S_IFREG)
	if inode.Meta.InodeType == meta.TypeDirectory {
		mode = syscall.S_IFDIR
	}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: mode, Ino: inode.ID}), 0
}

// Mkdir implements mkdir(parent, name, mode) → Directory::add_directory.
func (n *Root) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := childPath(n.path, name)
	if _, err := n.FS.Mkdir(path, uint16(mode)); err != nil {
		return nil, errnoFor(err)
	}

	inode, err := n.FS.Stat(path)
	if err != nil {
		return nil, errnoFor(err)
	}
	fillAttr(&out.Attr, inode.Size, &inode.Meta)
	return n.NewInode(ctx, n.child(path), fs.StableAttr{Mode: syscall.S_IFDIR, Ino: inode.ID}), 0
}

// Create implements file creation, handing back the new inode. It returns no
// file handle: Read and Write are served by the node itself.
func (n *Root) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	path := childPath(n.path, name)
	if _, err := n.FS.Create(path, uint16(mode)); err != nil {
		return nil, nil, 0, errnoFor(err)
	}

	inode, err := n.FS.Stat(path)
	if err != nil {
		return nil, nil, 0, errnoFor(err)
	}
	fillAttr(&out.Attr, inode.Size, &inode.Meta)
	child := n.child(path)
	return n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFREG, Ino: inode.ID}), nil, 0, 0
}

// Read implements read → inode payload read.
func (n *Root) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := n.FS.ReadFile(n.path)
	if err != nil {
		return nil, errnoFor(err)
	}
	if off >= int64(len(data)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return fuse.ReadResultData(data[off:end]), 0
}

// Write implements write → inode payload write. journeyfs has no partial
// in-place write; every Write rewrites the whole file, reading the current
// contents first so offset writes compose with earlier ones.
func (n *Root) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	existing, err := n.FS.ReadFile(n.path)
	if err != nil {
		return 0, errnoFor(err)
	}

	end := off + int64(len(data))
	if end < int64(len(existing)) {
		end = int64(len(existing))
	}
	buf := make([]byte, end)
	copy(buf, existing)
	copy(buf[off:], data)

	if err := n.FS.WriteFile(n.path, buf); err != nil {
		return 0, errnoFor(err)
	}
	return uint32(len(data)), 0
}

// Unlink implements unlink → Directory::remove_entry.
func (n *Root) Unlink(ctx context.Context, name string) syscall.Errno {
	if err := n.FS.Remove(childPath(n.path, name)); err != nil {
		return errnoFor(err)
	}
	return 0
}

// Rmdir implements rmdir → Directory::remove_entry.
func (n *Root) Rmdir(ctx context.Context, name string) syscall.Errno {
	if err := n.FS.Remove(childPath(n.path, name)); err != nil {
		return errnoFor(err)
	}
	return 0
}

// Readdir implements readdir → Directory::get_entries.
func (n *Root) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.FS.ListDir(n.path)
	if err != nil {
		return nil, errnoFor(err)
	}

	fuseEntries := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		child, err := n.FS.GetInode(e.ID)
		mode := uint32(syscall.S_IFREG)
		if err == nil && child.Meta.InodeType == meta.TypeDirectory {
			mode = syscall.S_IFDIR
		}
		fuseEntries = append(fuseEntries, fuse.DirEntry{Name: e.Name, Ino: e.ID, Mode: mode})
	}
	return fs.NewListDirStream(fuseEntries), 0
}

// Mount mounts journey at mountPoint and returns the running server without
// blocking; the caller's server.Wait() blocks until it is unmounted.
func Mount(mountPoint string, journey *journeyfs.JourneyFS, debug bool) (*fuse.Server, error) {
	root := &Root{FS: journey, path: "/"}
	return fs.Mount(mountPoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{Debug: debug},
	})
}
