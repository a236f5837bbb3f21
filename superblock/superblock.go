// Package superblock implements spec.md §4.2: the fixed-location, fixed-size
// record at block 0 describing the filesystem as a whole. It is the Go
// analogue of the original Rust source's SuperBlock struct
// (src/structure/superblock.rs).
package superblock

import (
	"encoding/binary"
	"fmt"

	"github.com/pascalmouret/jfs/blockio"
	"github.com/pascalmouret/jfs/fserr"
)

// Magic identifies a block 0 as holding a valid SuperBlock.
const Magic uint32 = 0xdeadbeef

// Size is the nominal on-disk size of a SuperBlock record in bytes. When the
// filesystem's block size is smaller than Size, Read spans multiple blocks
// to gather enough bytes; Write does not — see the Write doc comment.
const Size = 1024

// wireSize is the number of bytes the fixed fields actually occupy.
const wireSize = 4 + 4 + 8 + 8 + 8

// SuperBlock is the root metadata record of a mounted filesystem.
type SuperBlock struct {
	Magic      uint32
	BlockSize  uint32
	BlockCount uint64
	InodeCount uint64
	RootInode  uint64
}

// New builds a fresh SuperBlock for a newly formatted filesystem. InodeCount
// and RootInode are populated later, once the inode table and root directory
// exist.
func New(blockSize uint32, blockCount uint64) *SuperBlock {
	return &SuperBlock{
		Magic:      Magic,
		BlockSize:  blockSize,
		BlockCount: blockCount,
	}
}

// Read loads the SuperBlock from block 0 of io. If the block size is smaller
// than Size, it keeps reading consecutive blocks until it has assembled a
// full Size-byte region to parse from, per spec.md §4.2's "if B ≥ 1024 parses
// directly; else reads additional blocks until 1024 bytes are assembled"
// wording — not merely until wireSize's 32 fixed-field bytes are available,
// which every block size this driver supports already exceeds on the first
// read. It returns fserr.NotAFilesystem if the magic number does not match,
// per spec.md's Mount invariant.
func Read(io *blockio.IO) (*SuperBlock, error) {
	buf, err := io.ReadBlock(0)
	if err != nil {
		return nil, err
	}

	if uint64(io.BlockSize()) < Size {
		for i := uint64(1); uint64(len(buf)) < Size; i++ {
			next, err := io.ReadBlock(i)
			if err != nil {
				return nil, err
			}
			buf = append(buf, next...)
		}
	}

	if len(buf) < wireSize {
		return nil, fserr.NotAFilesystem("block too small to hold a superblock")
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return nil, fserr.NotAFilesystem(fmt.Sprintf("magic %#x does not match expected %#x", magic, Magic))
	}

	return &SuperBlock{
		Magic:      magic,
		BlockSize:  binary.LittleEndian.Uint32(buf[4:8]),
		BlockCount: binary.LittleEndian.Uint64(buf[8:16]),
		InodeCount: binary.LittleEndian.Uint64(buf[16:24]),
		RootInode:  binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}

// toBuffer serializes the fixed fields in the canonical on-disk order:
// magic, block_size, block_count, inode_count, root_inode, all little-endian.
func (s *SuperBlock) toBuffer() []byte {
	buf := make([]byte, wireSize)
	binary.LittleEndian.PutUint32(buf[0:4], s.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], s.BlockSize)
	binary.LittleEndian.PutUint64(buf[8:16], s.BlockCount)
	binary.LittleEndian.PutUint64(buf[16:24], s.InodeCount)
	binary.LittleEndian.PutUint64(buf[24:32], s.RootInode)
	return buf
}

// Write persists the SuperBlock to block 0. Like the original Rust
// implementation, Write only ever touches a single block: if the filesystem's
// block size is smaller than wireSize, the fixed fields do not fit and Write
// returns an error rather than silently truncating the record. spec.md
// documents this as a known limitation of very small block sizes rather than
// something this driver works around. journeyfs has no separate block-size
// check of its own, so such a configuration surfaces as this error from
// structure.New at format time.
func (s *SuperBlock) Write(io *blockio.IO) error {
	if io.BlockSize() < wireSize {
		return fserr.TooLarge(fmt.Sprintf("block size %d is too small to hold a superblock (%d bytes)", io.BlockSize(), wireSize))
	}

	buf := s.toBuffer()
	padded := make([]byte, io.BlockSize())
	copy(padded, buf)
	return io.WriteBlock(0, padded)
}

// SetInodeCount updates InodeCount and persists the change immediately.
func (s *SuperBlock) SetInodeCount(io *blockio.IO, count uint64) error {
	s.InodeCount = count
	return s.Write(io)
}

// SetRootInode updates RootInode and persists the change immediately.
func (s *SuperBlock) SetRootInode(io *blockio.IO, id uint64) error {
	s.RootInode = id
	return s.Write(io)
}
