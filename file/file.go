// Package file implements spec.md §4.8: a thin typed view over a file
// inode's data payload. It is the Go analogue of the original Rust source's
// File (src/ops/file.rs).
package file

import (
	"github.com/pascalmouret/jfs/inode"
	"github.com/pascalmouret/jfs/meta"
	"github.com/pascalmouret/jfs/structure"
)

type fsStructure = structure.Structure[meta.Metadata, *meta.Metadata]
type fsInode = inode.Inode[meta.Metadata, *meta.Metadata]

// File wraps a file inode, forwarding reads and writes to its direct blocks.
type File struct {
	Inode *fsInode
}

// New creates a fresh, empty file inode owned by (uid, gid) with the given
// permissions.
func New(s *fsStructure, userID, groupID uint32, permissions uint16) (*File, error) {
	n, err := s.CreateInode(*meta.New(meta.TypeFile, userID, groupID, permissions, 1))
	if err != nil {
		return nil, err
	}
	return &File{Inode: n}, nil
}

// FromInode wraps an existing inode as a File.
func FromInode(n *fsInode) *File {
	return &File{Inode: n}
}

// SetData replaces the file's contents, growing or shrinking its direct
// block allocation as needed, and persists the updated inode record.
func (f *File) SetData(s *fsStructure, data []byte) error {
	allocate := func() (uint64, error) { return s.AllocateBlock() }
	free := func(b uint64) error { return s.FreeBlock(b) }
	if err := f.Inode.SetData(s.IO, allocate, free, data); err != nil {
		return err
	}
	return s.WriteInode(f.Inode)
}

// GetData reads the file's full contents.
func (f *File) GetData(s *fsStructure) ([]byte, error) {
	return f.Inode.GetData(s.IO)
}
