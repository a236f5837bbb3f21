// Package structure implements spec.md §4.6: the composition of superblock,
// block allocator, and inode table into the single object every higher
// layer (directory, file, journeyfs) talks to. It is the Go analogue of the
// original Rust source's generic Structure<META> (src/structure/mod.rs).
package structure

import (
	"github.com/pascalmouret/jfs/blockio"
	"github.com/pascalmouret/jfs/blockmap"
	"github.com/pascalmouret/jfs/fserr"
	"github.com/pascalmouret/jfs/inode"
	"github.com/pascalmouret/jfs/superblock"
)

// superblockBlocks is how many blocks the fixed-size superblock region
// reserves, rounded up from spec.md §4.2's SUPERBLOCK_SIZE.
func superblockBlocks(blockSize int) uint64 {
	n := superblock.Size / blockSize
	if superblock.Size%blockSize != 0 {
		n++
	}
	if n == 0 {
		n = 1
	}
	return uint64(n)
}

// Structure owns every on-disk bookkeeping region of a mounted filesystem.
type Structure[META any, PM inode.Codec[META]] struct {
	IO         *blockio.IO
	SuperBlock *superblock.SuperBlock
	BlockMap   *blockmap.BlockMap
	InodeTable *inode.Table[META, PM]
}

// IsInitialized reports whether io's block 0 already holds a valid
// superblock, i.e. whether New (format) or Mount should be used.
func IsInitialized(io *blockio.IO) bool {
	_, err := superblock.Read(io)
	return err == nil
}

// New formats a fresh filesystem over io at the given block size,
// writing a superblock, a block bitmap, and an empty inode table.
func New[META any, PM inode.Codec[META]](io *blockio.IO, blockSize int) (*Structure[META, PM], error) {
	if err := io.SetBlockSize(blockSize); err != nil {
		return nil, err
	}

	sb := superblock.New(uint32(blockSize), io.BlockCount())
	if err := sb.Write(io); err != nil {
		return nil, err
	}

	bm := blockmap.New(superblockBlocks(blockSize), sb.BlockCount, blockSize)
	if err := bm.WriteFull(io); err != nil {
		return nil, err
	}

	inodeIndex := bm.LastBlock + 1
	table, err := inode.Create[META, PM](io, inodeIndex)
	if err != nil {
		return nil, err
	}
	for i := 0; i < table.BlockCount; i++ {
		if err := bm.MarkUsed(io, inodeIndex+uint64(i)); err != nil {
			return nil, err
		}
	}

	if err := sb.SetInodeCount(io, table.InodeCount); err != nil {
		return nil, err
	}

	return &Structure[META, PM]{IO: io, SuperBlock: sb, BlockMap: bm, InodeTable: table}, nil
}

// Mount loads a previously formatted filesystem from io. io's block size is
// taken from the persisted superblock, not the caller's.
func Mount[META any, PM inode.Codec[META]](io *blockio.IO) (*Structure[META, PM], error) {
	sb, err := superblock.Read(io)
	if err != nil {
		return nil, err
	}

	if err := io.SetBlockSize(int(sb.BlockSize)); err != nil {
		return nil, err
	}

	bm, err := blockmap.Read(io, superblockBlocks(int(sb.BlockSize)))
	if err != nil {
		return nil, err
	}

	table, err := inode.Read[META, PM](io, bm.LastBlock+1, sb.InodeCount)
	if err != nil {
		return nil, err
	}

	return &Structure[META, PM]{IO: io, SuperBlock: sb, BlockMap: bm, InodeTable: table}, nil
}

// SetRootInode records n's id as the filesystem's root directory.
func (s *Structure[META, PM]) SetRootInode(n *inode.Inode[META, PM]) error {
	if !n.HasID() {
		return fserr.OutOfRange("cannot set an unpersisted inode as root")
	}
	return s.SuperBlock.SetRootInode(s.IO, n.ID)
}

// GetRootInode reads the filesystem's root directory inode.
func (s *Structure[META, PM]) GetRootInode() (*inode.Inode[META, PM], error) {
	return s.InodeTable.ReadInode(s.IO, s.SuperBlock.RootInode)
}

// CreateInode allocates and persists a brand-new inode carrying meta.
func (s *Structure[META, PM]) CreateInode(meta META) (*inode.Inode[META, PM], error) {
	n := inode.New[META, PM](meta)
	if err := s.InodeTable.WriteInode(s.IO, n); err != nil {
		return nil, err
	}
	return n, nil
}

// ReadInode loads the inode with the given id.
func (s *Structure[META, PM]) ReadInode(id uint64) (*inode.Inode[META, PM], error) {
	return s.InodeTable.ReadInode(s.IO, id)
}

// WriteInode persists n, assigning it an id first if it doesn't have one.
func (s *Structure[META, PM]) WriteInode(n *inode.Inode[META, PM]) error {
	return s.InodeTable.WriteInode(s.IO, n)
}

// AllocateBlock hands out one free data block.
func (s *Structure[META, PM]) AllocateBlock() (uint64, error) {
	return s.BlockMap.Allocate(s.IO)
}

// FreeBlock returns a data block to the free pool.
func (s *Structure[META, PM]) FreeBlock(block uint64) error {
	return s.BlockMap.MarkFree(s.IO, block)
}

// BlockSize returns the filesystem's fixed block size in bytes.
func (s *Structure[META, PM]) BlockSize() int {
	return s.IO.BlockSize()
}
