// Package meta implements spec.md §6.3: the POSIX metadata payload stored
// inside every inode's Meta field. It is the Go analogue of the original
// Rust source's Metadata struct (src/ops/meta.rs), adapted to satisfy
// inode.Codec so it can be used as the META type parameter of a generic
// Inode/InodeTable/Structure.
package meta

import (
	"encoding/binary"
	"time"

	"github.com/pascalmouret/jfs/fserr"
	"github.com/pascalmouret/jfs/util/timestamp"
)

// InodeType distinguishes a file inode from a directory inode.
type InodeType uint8

const (
	TypeFile      InodeType = 0
	TypeDirectory InodeType = 1
)

// timestampSize is secs_since_epoch (u64) | nanos (u32), padded to 8-byte
// alignment — 16 bytes per timestamp rather than the unpadded 12, which is
// what brings Metadata's total on-disk size to the 87 bytes spec.md §6.3
// mandates.
const timestampSize = 16

// SizeOnDisk is the number of bytes Metadata occupies in its serialized
// form: 1 (inode_type) + 4*16 (four timestamps) + 2 (permissions) +
// 4*4 (nlinks, uid, gid, rdev) + 4 (flags) = 87. It must always be computed
// from the field layout below, never hard-coded — the original Rust source's
// hard-coded 71 silently drifted from its own field layout once alignment
// was taken into account, corrupting every inode read after the drift.
func SizeOnDisk() int {
	return 1 + 4*timestampSize + 2 + 4 + 4 + 4 + 4 + 4
}

// Metadata is the POSIX payload carried by every inode in a mounted
// journeyfs filesystem.
type Metadata struct {
	InodeType   InodeType
	CreatedAt   time.Time
	ModifiedAt  time.Time
	AccessedAt  time.Time
	ChangedAt   time.Time
	Permissions uint16
	NLinks      uint32
	UserID      uint32
	GroupID     uint32
	Rdev        uint32
	Flags       uint32
}

// New builds fresh Metadata for a newly created inode, stamping all four
// timestamps with the current time (honoring SOURCE_DATE_EPOCH via
// util/timestamp, for reproducible test fixtures).
func New(inodeType InodeType, userID, groupID uint32, permissions uint16, nlinks uint32) *Metadata {
	now := timestamp.GetTime()
	return &Metadata{
		InodeType:   inodeType,
		CreatedAt:   now,
		ModifiedAt:  now,
		AccessedAt:  now,
		ChangedAt:   now,
		Permissions: permissions,
		NLinks:      nlinks,
		UserID:      userID,
		GroupID:     groupID,
	}
}

func putTimestamp(buf []byte, t time.Time) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(t.Unix()))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(t.Nanosecond()))
}

func getTimestamp(buf []byte) time.Time {
	secs := int64(binary.LittleEndian.Uint64(buf[0:8]))
	nanos := int64(binary.LittleEndian.Uint32(buf[8:12]))
	return time.Unix(secs, nanos).UTC()
}

// SizeOnDisk implements inode.Codec's SizeOnDisk as an instance method,
// delegating to the package-level SizeOnDisk() since Metadata's wire size
// does not depend on its contents.
func (m *Metadata) SizeOnDisk() int {
	return SizeOnDisk()
}

// ToBytes serializes Metadata in the canonical field order from spec.md §6.3.
func (m *Metadata) ToBytes() []byte {
	buf := make([]byte, SizeOnDisk())
	buf[0] = byte(m.InodeType)

	offset := 1
	for _, ts := range []time.Time{m.CreatedAt, m.ModifiedAt, m.AccessedAt, m.ChangedAt} {
		putTimestamp(buf[offset:offset+timestampSize], ts)
		offset += timestampSize
	}

	binary.LittleEndian.PutUint16(buf[offset:offset+2], m.Permissions)
	offset += 2
	binary.LittleEndian.PutUint32(buf[offset:offset+4], m.NLinks)
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:offset+4], m.UserID)
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:offset+4], m.GroupID)
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:offset+4], m.Rdev)
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:offset+4], m.Flags)

	return buf
}

// FromBytes deserializes Metadata from exactly SizeOnDisk() bytes.
func (m *Metadata) FromBytes(buf []byte) error {
	if len(buf) != SizeOnDisk() {
		return fserr.SizeMismatch("metadata buffer does not match SizeOnDisk()")
	}

	inodeType := InodeType(buf[0])
	if inodeType != TypeFile && inodeType != TypeDirectory {
		return fserr.NotAFilesystem("invalid inode type byte in metadata")
	}
	m.InodeType = inodeType

	offset := 1
	times := make([]time.Time, 4)
	for i := range times {
		times[i] = getTimestamp(buf[offset : offset+timestampSize])
		offset += timestampSize
	}
	m.CreatedAt, m.ModifiedAt, m.AccessedAt, m.ChangedAt = times[0], times[1], times[2], times[3]

	m.Permissions = binary.LittleEndian.Uint16(buf[offset : offset+2])
	offset += 2
	m.NLinks = binary.LittleEndian.Uint32(buf[offset : offset+4])
	offset += 4
	m.UserID = binary.LittleEndian.Uint32(buf[offset : offset+4])
	offset += 4
	m.GroupID = binary.LittleEndian.Uint32(buf[offset : offset+4])
	offset += 4
	m.Rdev = binary.LittleEndian.Uint32(buf[offset : offset+4])
	offset += 4
	m.Flags = binary.LittleEndian.Uint32(buf[offset : offset+4])

	return nil
}
