// Package blockmap implements spec.md §4.3: the free/used bitmap over every
// block in the filesystem, stored at a fixed block range and updated with
// write-through semantics. It is the Go analogue of the original Rust
// source's BlockMap struct (src/structure/blockmap.rs), built on top of the
// teacher-derived util/bitmap package instead of a bespoke byte slice.
package blockmap

import (
	"fmt"

	"github.com/pascalmouret/jfs/blockio"
	"github.com/pascalmouret/jfs/fserr"
	"github.com/pascalmouret/jfs/util/bitmap"
)

// BlockMap is a bit-per-block free/used map persisted across one or more
// contiguous blocks starting at FirstBlock. A set bit means used.
type BlockMap struct {
	FirstBlock uint64
	LastBlock  uint64
	bits       *bitmap.Bitmap
	blockSize  int
}

// dataSize computes the byte length of the bitmap's backing storage, rounded
// up to a whole number of blocks so it can be read and written block-at-a-time.
func dataSize(blockCount uint64, blockSize int) int {
	n := int(blockCount) / 8
	if int(blockCount)%8 != 0 {
		n++
	}
	if n%blockSize != 0 {
		n += blockSize - (n % blockSize)
	}
	return n
}

// New creates a fresh BlockMap covering blockCount blocks, starting its own
// storage at firstBlock. Every block from 0 through LastBlock is marked used
// immediately: the blocks before firstBlock, the bitmap's own blocks, and
// block LastBlock itself, which is the first block past the bitmap's storage.
func New(firstBlock uint64, blockCount uint64, blockSize int) *BlockMap {
	size := dataSize(blockCount, blockSize)
	bm := &BlockMap{
		FirstBlock: firstBlock,
		LastBlock:  firstBlock + uint64(size)/uint64(blockSize),
		bits:       bitmap.NewBytes(size),
		blockSize:  blockSize,
	}
	// Reserve blocks 0..=LastBlock: the superblock region (blocks before
	// firstBlock), the bitmap's own storage, and the block just past it.
	for i := uint64(0); i <= bm.LastBlock; i++ {
		_ = bm.bits.Set(int(i))
	}
	return bm
}

// Read loads a BlockMap previously written at block index within io.
func Read(io *blockio.IO, index uint64) (*BlockMap, error) {
	size := dataSize(io.BlockCount(), io.BlockSize())
	lastBlock := index + uint64(size)/uint64(io.BlockSize())

	data := make([]byte, 0, size)
	for i := index; i < lastBlock; i++ {
		block, err := io.ReadBlock(i)
		if err != nil {
			return nil, err
		}
		data = append(data, block...)
	}

	return &BlockMap{
		FirstBlock: index,
		LastBlock:  lastBlock,
		bits:       bitmap.FromBytes(data),
		blockSize:  io.BlockSize(),
	}, nil
}

// WriteFull persists the entire bitmap across its block range.
func (m *BlockMap) WriteFull(io *blockio.IO) error {
	raw := m.bits.ToBytes()
	for i := m.FirstBlock; i < m.LastBlock; i++ {
		offset := int(i-m.FirstBlock) * m.blockSize
		if err := io.WriteBlock(i, raw[offset:offset+m.blockSize]); err != nil {
			return err
		}
	}
	return nil
}

// writePart persists only the single block holding bit includingIndex, the
// write-through unit used by Allocate, MarkUsed, and MarkFree.
func (m *BlockMap) writePart(io *blockio.IO, includingIndex uint64) error {
	block := includingIndex / uint64(m.blockSize) / 8
	raw := m.bits.ToBytes()
	offset := int(block) * m.blockSize
	if offset+m.blockSize > len(raw) {
		return fserr.OutOfRange(fmt.Sprintf("bit %d is outside the blockmap's backing storage", includingIndex))
	}
	return io.WriteBlock(m.FirstBlock+block, raw[offset:offset+m.blockSize])
}

// Allocate finds the first free bit, marks it used, persists the change, and
// returns its index. It returns fserr.NoSpace if the map is full; padding
// bits at or past io.BlockCount() do not count as free blocks.
func (m *BlockMap) Allocate(io *blockio.IO) (uint64, error) {
	free := m.bits.FirstFree()
	if free < 0 || uint64(free) >= io.BlockCount() {
		return 0, fserr.NoSpace("no free blocks remain")
	}
	if err := m.MarkUsed(io, uint64(free)); err != nil {
		return 0, err
	}
	return uint64(free), nil
}

// IsFree reports whether the bit at index is currently unset.
func (m *BlockMap) IsFree(index uint64) (bool, error) {
	set, err := m.bits.IsSet(int(index))
	if err != nil {
		return false, err
	}
	return !set, nil
}

// IsUsed reports whether the bit at index is currently set.
func (m *BlockMap) IsUsed(index uint64) (bool, error) {
	set, err := m.bits.IsSet(int(index))
	if err != nil {
		return false, err
	}
	return set, nil
}

// MarkUsed sets the bit at index and immediately persists the containing block.
func (m *BlockMap) MarkUsed(io *blockio.IO, index uint64) error {
	if err := m.bits.Set(int(index)); err != nil {
		return err
	}
	return m.writePart(io, index)
}

// MarkFree clears the bit at index and immediately persists the containing block.
func (m *BlockMap) MarkFree(io *blockio.IO, index uint64) error {
	if err := m.bits.Clear(int(index)); err != nil {
		return err
	}
	return m.writePart(io, index)
}

// CountUsed returns the number of blocks currently marked used.
func (m *BlockMap) CountUsed() int {
	return m.bits.CountSet()
}
