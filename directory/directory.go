// Package directory implements spec.md §4.7: a directory's entry list,
// serialized into its inode's data payload. It is the Go analogue of the
// original Rust source's Directory (src/ops/directory.rs), supplemented
// with Lookup, RemoveEntry, name-uniqueness enforcement, and nlink
// bookkeeping, which spec.md §4.7/§9 require but the original lacks.
package directory

import (
	"encoding/binary"

	"github.com/pascalmouret/jfs/fserr"
	"github.com/pascalmouret/jfs/inode"
	"github.com/pascalmouret/jfs/meta"
	"github.com/pascalmouret/jfs/structure"
)

// MaxNameLength is spec.md's FILE_NAME_LENGTH.
const MaxNameLength = 255

type fsStructure = structure.Structure[meta.Metadata, *meta.Metadata]
type fsInode = inode.Inode[meta.Metadata, *meta.Metadata]

// Entry is one directory-entry record: a child's name and inode id.
type Entry struct {
	Name string
	ID   uint64
}

// entriesToBytes serializes an entry list as id(u64 LE) | name_len(u8) | name,
// concatenated in order — the wire format spec.md §6 and scenario S5 specify.
func entriesToBytes(entries []Entry) []byte {
	buf := make([]byte, 0, len(entries)*16)
	for _, e := range entries {
		idBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(idBytes, e.ID)
		buf = append(buf, idBytes...)
		buf = append(buf, byte(len(e.Name)))
		buf = append(buf, []byte(e.Name)...)
	}
	return buf
}

func entriesFromBytes(buf []byte) []Entry {
	entries := make([]Entry, 0)
	for len(buf) > 0 {
		id := binary.LittleEndian.Uint64(buf[0:8])
		nameLen := int(buf[8])
		name := string(buf[9 : 9+nameLen])
		entries = append(entries, Entry{Name: name, ID: id})
		buf = buf[9+nameLen:]
	}
	return entries
}

// Directory is a typed view over a directory inode's entry list.
type Directory struct {
	Inode *fsInode
}

// New creates a fresh, empty directory inode owned by (uid, gid) with the
// given permissions.
func New(s *fsStructure, userID, groupID uint32, permissions uint16) (*Directory, error) {
	n, err := s.CreateInode(*meta.New(meta.TypeDirectory, userID, groupID, permissions, 2))
	if err != nil {
		return nil, err
	}
	return &Directory{Inode: n}, nil
}

// FromInode wraps an existing inode as a Directory. It returns
// fserr.NotADirectory if the inode's metadata does not mark it as one.
func FromInode(n *fsInode) (*Directory, error) {
	if n.Meta.InodeType != meta.TypeDirectory {
		return nil, fserr.NotADirectory("inode is not a directory")
	}
	return &Directory{Inode: n}, nil
}

// GetEntries reads and deserializes the directory's entry list.
func (d *Directory) GetEntries(s *fsStructure) ([]Entry, error) {
	if d.Inode.Size == 0 {
		return []Entry{}, nil
	}
	data, err := d.Inode.GetData(s.IO)
	if err != nil {
		return nil, err
	}
	return entriesFromBytes(data), nil
}

// Lookup returns the id of the entry named name, if present.
func (d *Directory) Lookup(s *fsStructure, name string) (uint64, bool, error) {
	entries, err := d.GetEntries(s)
	if err != nil {
		return 0, false, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e.ID, true, nil
		}
	}
	return 0, false, nil
}

func (d *Directory) persist(s *fsStructure, entries []Entry) error {
	allocate := func() (uint64, error) { return s.AllocateBlock() }
	free := func(b uint64) error { return s.FreeBlock(b) }
	if err := d.Inode.SetData(s.IO, allocate, free, entriesToBytes(entries)); err != nil {
		return err
	}
	return s.WriteInode(d.Inode)
}

// AddEntry appends (name, id) to the directory's entry list. It returns
// fserr.NameTooLong if name exceeds MaxNameLength, and fserr.AlreadyExists
// if an entry with the same name is already present — spec.md §4.7
// requires both; the original Rust source enforces neither.
func (d *Directory) AddEntry(s *fsStructure, name string, id uint64) error {
	if len(name) > MaxNameLength {
		return fserr.NameTooLong("entry name exceeds the maximum length")
	}

	entries, err := d.GetEntries(s)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == name {
			return fserr.AlreadyExists("an entry with this name already exists")
		}
	}

	entries = append(entries, Entry{Name: name, ID: id})
	return d.persist(s, entries)
}

// RemoveEntry deletes the entry named name from the directory's entry list.
// spec.md §4.7/§9 require this operation (absent from the original source);
// nlink/inode-freeing bookkeeping for the removed target is the caller's
// responsibility (see AddDirectory/AddFile's symmetric counterpart in
// journeyfs), since Directory itself has no reference to the target's
// Structure-level inode beyond its id.
func (d *Directory) RemoveEntry(s *fsStructure, name string) error {
	entries, err := d.GetEntries(s)
	if err != nil {
		return err
	}

	filtered := make([]Entry, 0, len(entries))
	found := false
	for _, e := range entries {
		if e.Name == name && !found {
			found = true
			continue
		}
		filtered = append(filtered, e)
	}
	if !found {
		return fserr.NotFound("no entry with this name exists")
	}

	return d.persist(s, filtered)
}

// AddDirectory creates a new subdirectory named name and links it in,
// bumping this directory's nlink for the new ".." back-reference the
// subdirectory implicitly holds — conventional Unix nlink bookkeeping that
// spec.md §9 calls for without spelling out the exact rule.
func (d *Directory) AddDirectory(s *fsStructure, name string, userID, groupID uint32, permissions uint16) (*Directory, error) {
	child, err := New(s, userID, groupID, permissions)
	if err != nil {
		return nil, err
	}
	if err := d.AddEntry(s, name, child.Inode.ID); err != nil {
		return nil, err
	}

	d.Inode.Meta.NLinks++
	if err := s.WriteInode(d.Inode); err != nil {
		return nil, err
	}

	return child, nil
}

// AddFile links an existing file inode into this directory under name.
func (d *Directory) AddFile(s *fsStructure, name string, target *fsInode) error {
	return d.AddEntry(s, name, target.ID)
}
