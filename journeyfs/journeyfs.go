// Package journeyfs implements spec.md's top-level "JourneyFS" façade: a
// single mount-or-format entry point plus path-walking operations layered on
// top of the single-segment directory/file operations, as SPEC_FULL.md §4.12
// describes. It is the Go analogue of the original Rust source's JourneyFS
// (src/ops/mod.rs), generalized from a single concrete metadata type to
// mount-or-format dispatch plus multi-segment paths.
package journeyfs

import (
	"strings"

	"github.com/pascalmouret/jfs/backend"
	"github.com/pascalmouret/jfs/blockio"
	"github.com/pascalmouret/jfs/device"
	"github.com/pascalmouret/jfs/directory"
	"github.com/pascalmouret/jfs/file"
	"github.com/pascalmouret/jfs/fserr"
	"github.com/pascalmouret/jfs/inode"
	"github.com/pascalmouret/jfs/meta"
	"github.com/pascalmouret/jfs/structure"
)

type fsStructure = structure.Structure[meta.Metadata, *meta.Metadata]
type fsInode = inode.Inode[meta.Metadata, *meta.Metadata]

// JourneyFS is the top-level handle to a mounted filesystem: everything a
// CLI or VFS adaptor needs, addressed by path rather than by raw inode id.
type JourneyFS struct {
	structure *fsStructure
	rootID    uint64
	UserID    uint32
	GroupID   uint32
}

// Mount opens storage as a journeyfs filesystem: format it if it isn't
// already initialized, else mount the existing one. This mirrors
// Structure::is_initialized dispatch in the original Rust source's
// JourneyFS::new.
func Mount(storage backend.Storage, sectorSize, blockSize int, userID, groupID uint32) (*JourneyFS, error) {
	dev, err := device.New(storage, sectorSize)
	if err != nil {
		return nil, err
	}
	io, err := blockio.New(dev, blockSize)
	if err != nil {
		return nil, err
	}

	if structure.IsInitialized(io) {
		s, err := structure.Mount[meta.Metadata, *meta.Metadata](io)
		if err != nil {
			return nil, err
		}
		return &JourneyFS{structure: s, rootID: s.SuperBlock.RootInode, UserID: userID, GroupID: groupID}, nil
	}

	s, err := structure.New[meta.Metadata, *meta.Metadata](io, blockSize)
	if err != nil {
		return nil, err
	}
	root, err := directory.New(s, userID, groupID, 0o755)
	if err != nil {
		return nil, err
	}
	if err := s.SetRootInode(root.Inode); err != nil {
		return nil, err
	}

	return &JourneyFS{structure: s, rootID: root.Inode.ID, UserID: userID, GroupID: groupID}, nil
}

// BlockSize returns the mounted filesystem's fixed block size.
func (j *JourneyFS) BlockSize() int {
	return j.structure.BlockSize()
}

// Root returns the root directory.
func (j *JourneyFS) Root() (*directory.Directory, error) {
	n, err := j.structure.ReadInode(j.rootID)
	if err != nil {
		return nil, err
	}
	return directory.FromInode(n)
}

// GetInode loads the inode with the given id.
func (j *JourneyFS) GetInode(id uint64) (*fsInode, error) {
	return j.structure.ReadInode(id)
}

// WriteInode persists changes made directly to an inode fetched via GetInode
// or Stat, e.g. metadata updates from a VFS adaptor's setattr.
func (j *JourneyFS) WriteInode(n *fsInode) error {
	return j.structure.WriteInode(n)
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// resolveParent walks path's segments from the root, returning the directory
// holding the final segment and the final segment's name. A path that points
// at the root itself has no final segment and yields fserr.NotFound.
func (j *JourneyFS) resolveParent(path string) (*directory.Directory, string, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, "", fserr.NotFound("path has no final segment")
	}

	dir, err := j.Root()
	if err != nil {
		return nil, "", err
	}

	for _, seg := range segments[:len(segments)-1] {
		id, ok, err := dir.Lookup(j.structure, seg)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			return nil, "", fserr.NotFound("path segment " + seg + " does not exist")
		}
		n, err := j.structure.ReadInode(id)
		if err != nil {
			return nil, "", err
		}
		dir, err = directory.FromInode(n)
		if err != nil {
			return nil, "", err
		}
	}

	return dir, segments[len(segments)-1], nil
}

// Lookup resolves path to an inode id, walking every path segment from the
// root.
func (j *JourneyFS) Lookup(path string) (uint64, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return j.rootID, nil
	}

	parent, name, err := j.resolveParent(path)
	if err != nil {
		return 0, err
	}
	id, ok, err := parent.Lookup(j.structure, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fserr.NotFound("path segment " + name + " does not exist")
	}
	return id, nil
}

// Stat loads the inode a path resolves to.
func (j *JourneyFS) Stat(path string) (*fsInode, error) {
	id, err := j.Lookup(path)
	if err != nil {
		return nil, err
	}
	return j.structure.ReadInode(id)
}

// Mkdir creates a new directory at path. The parent must already exist.
func (j *JourneyFS) Mkdir(path string, permissions uint16) (*directory.Directory, error) {
	parent, name, err := j.resolveParent(path)
	if err != nil {
		return nil, err
	}
	return parent.AddDirectory(j.structure, name, j.UserID, j.GroupID, permissions)
}

// Create creates a new, empty file at path. The parent must already exist.
func (j *JourneyFS) Create(path string, permissions uint16) (*file.File, error) {
	parent, name, err := j.resolveParent(path)
	if err != nil {
		return nil, err
	}

	f, err := file.New(j.structure, j.UserID, j.GroupID, permissions)
	if err != nil {
		return nil, err
	}
	if err := parent.AddFile(j.structure, name, f.Inode); err != nil {
		return nil, err
	}
	return f, nil
}

// Open resolves path to a File, for reading or writing its data.
func (j *JourneyFS) Open(path string) (*file.File, error) {
	n, err := j.Stat(path)
	if err != nil {
		return nil, err
	}
	if n.Meta.InodeType != meta.TypeFile {
		return nil, fserr.NotADirectory("path does not refer to a file")
	}
	return file.FromInode(n), nil
}

// ListDir resolves path to a directory and returns its entries.
func (j *JourneyFS) ListDir(path string) ([]directory.Entry, error) {
	segments := splitPath(path)

	var dir *directory.Directory
	var err error
	if len(segments) == 0 {
		dir, err = j.Root()
	} else {
		id, lookupErr := j.Lookup(path)
		if lookupErr != nil {
			return nil, lookupErr
		}
		n, readErr := j.structure.ReadInode(id)
		if readErr != nil {
			return nil, readErr
		}
		dir, err = directory.FromInode(n)
	}
	if err != nil {
		return nil, err
	}

	return dir.GetEntries(j.structure)
}

// ReadFile resolves path to a file and returns its full contents.
func (j *JourneyFS) ReadFile(path string) ([]byte, error) {
	f, err := j.Open(path)
	if err != nil {
		return nil, err
	}
	return f.GetData(j.structure)
}

// WriteFile resolves path to a file and replaces its full contents.
func (j *JourneyFS) WriteFile(path string, data []byte) error {
	f, err := j.Open(path)
	if err != nil {
		return err
	}
	return f.SetData(j.structure, data)
}

// Remove deletes the directory entry at path, decrementing and (if it
// reaches zero) releasing the target inode's link count — spec.md §9
// "Namespace consistency".
func (j *JourneyFS) Remove(path string) error {
	parent, name, err := j.resolveParent(path)
	if err != nil {
		return err
	}

	id, ok, err := parent.Lookup(j.structure, name)
	if err != nil {
		return err
	}
	if !ok {
		return fserr.NotFound("path segment " + name + " does not exist")
	}

	target, err := j.structure.ReadInode(id)
	if err != nil {
		return err
	}

	if err := parent.RemoveEntry(j.structure, name); err != nil {
		return err
	}

	if target.Meta.InodeType == meta.TypeDirectory {
		// A directory's NLinks starts at 2 (directory.New: self + the
		// implicit "."), and AddDirectory only ever bumps the *parent's*
		// NLinks for the child's implicit ".." entry — the child's own
		// NLinks is never touched again. Removing its one entry from the
		// parent therefore drops both of the child's own references (the
		// parent's named entry and its self "."), at once, or it would
		// never reach zero. The parent's NLinks is decremented
		// symmetrically to undo AddDirectory's increment.
		target.Meta.NLinks -= 2
		parent.Inode.Meta.NLinks--
		if err := j.structure.WriteInode(parent.Inode); err != nil {
			return err
		}
	} else {
		target.Meta.NLinks--
	}

	if target.Meta.NLinks > 0 {
		return j.structure.WriteInode(target)
	}

	allocate := func() (uint64, error) { return j.structure.AllocateBlock() }
	free := func(b uint64) error { return j.structure.FreeBlock(b) }
	if err := target.SetData(j.structure.IO, allocate, free, nil); err != nil {
		return err
	}
	if err := j.structure.WriteInode(target); err != nil {
		return err
	}
	return j.structure.InodeTable.FreeInode(j.structure.IO, id)
}
