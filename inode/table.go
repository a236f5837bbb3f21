package inode

import (
	"fmt"

	"github.com/pascalmouret/jfs/blockio"
	"github.com/pascalmouret/jfs/fserr"
	"github.com/pascalmouret/jfs/util/bitmap"
)

// Table is the on-disk inode table: a bit-per-inode allocation bitmap
// followed by a packed array of fixed-size inode records. It is the Go
// analogue of the original Rust source's InodeTable<META>
// (src/structure/inode_table.rs).
type Table[META any, PM Codec[META]] struct {
	bits       *bitmap.Bitmap
	mapIndex   uint64
	InodeCount uint64
	tableIndex uint64
	BlockCount int
}

// calculateInodeCount mirrors the original Rust source's
// calculate_inode_count, with the small-image floor spec.md §4.4 and §9
// require: an image with fewer than BLOCKS_PER_INODE_MAP blocks still gets
// some inodes rather than zero.
//
// The floor is sized in terms of recordSize, not a flat "B·8" bits-per-block
// figure: a literal B·8-inode floor (one full bitmap block's worth of ids)
// forces the record *array* to occupy 8·recordSize blocks regardless of
// block size, since the inode count it implies always divides down to
// exactly one inode per (recordSize/blockSize) fraction of a block — for
// this port's 191-byte record that is over a thousand blocks, more than
// small test images have to give. Rounding the number of records that fit
// in a single table block up to a byte-aligned bitmap size keeps both the
// bitmap and the record array to a handful of blocks, satisfying "small
// images still get inodes" without exhausting them before the first data
// block is allocated.
func calculateInodeCount(blockCount uint64, blockSize int, recordSize int) uint64 {
	bitsPerBlock := uint64(blockSize) * 8
	blocks := blockCount / blocksPerInodeMap
	if blocks == 0 {
		inodesPerBlock := uint64(blockSize) / uint64(recordSize)
		if inodesPerBlock == 0 {
			inodesPerBlock = 1
		}
		if rem := inodesPerBlock % 8; rem != 0 {
			inodesPerBlock += 8 - rem
		}
		return inodesPerBlock
	}
	return blocks * bitsPerBlock
}

// ceilDiv divides rounding up, used wherever a bitmap or record region must
// cover a remainder that does not fill a whole block.
func ceilDiv(a, b uint64) uint64 {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}

func inodeRecordSize[META any, PM Codec[META]]() int {
	return wireSize[META, PM]()
}

// Create formats a fresh inode table starting at block index, zeroing every
// block it occupies (bitmap blocks followed by record blocks).
func Create[META any, PM Codec[META]](io *blockio.IO, index uint64) (*Table[META, PM], error) {
	blockSize := io.BlockSize()
	recordSize := inodeRecordSize[META, PM]()
	inodeCount := calculateInodeCount(io.BlockCount(), blockSize, recordSize)
	mapBlocks := ceilDiv(ceilDiv(inodeCount, 8), uint64(blockSize))
	inodesPerBlock := uint64(blockSize) / uint64(recordSize)
	tableBlocks := inodeCount / inodesPerBlock
	if inodeCount%inodesPerBlock != 0 {
		tableBlocks++
	}
	totalBlocks := mapBlocks + tableBlocks

	zero := make([]byte, blockSize)
	for i := uint64(0); i < totalBlocks; i++ {
		if err := io.WriteBlock(index+i, zero); err != nil {
			return nil, err
		}
	}

	return &Table[META, PM]{
		bits:       bitmap.NewBytes(int(mapBlocks) * blockSize),
		mapIndex:   index,
		InodeCount: inodeCount,
		tableIndex: index + mapBlocks,
		BlockCount: int(totalBlocks),
	}, nil
}

// Read loads a previously formatted inode table starting at block index,
// holding inodeCount inodes (as recorded in the superblock).
func Read[META any, PM Codec[META]](io *blockio.IO, index uint64, inodeCount uint64) (*Table[META, PM], error) {
	blockSize := io.BlockSize()
	mapBlocks := ceilDiv(ceilDiv(inodeCount, 8), uint64(blockSize))
	recordSize := inodeRecordSize[META, PM]()
	inodesPerBlock := uint64(blockSize) / uint64(recordSize)
	tableBlocks := inodeCount / inodesPerBlock
	if inodeCount%inodesPerBlock != 0 {
		tableBlocks++
	}
	totalBlocks := mapBlocks + tableBlocks

	data := make([]byte, 0, inodeCount/8)
	for i := uint64(0); i < mapBlocks; i++ {
		block, err := io.ReadBlock(index + i)
		if err != nil {
			return nil, err
		}
		data = append(data, block...)
	}

	return &Table[META, PM]{
		bits:       bitmap.FromBytes(data),
		mapIndex:   index,
		InodeCount: inodeCount,
		tableIndex: index + mapBlocks,
		BlockCount: int(totalBlocks),
	}, nil
}

func (t *Table[META, PM]) inodeBlock(id uint64, blockSize int) uint64 {
	perBlock := uint64(blockSize) / uint64(inodeRecordSize[META, PM]())
	return t.tableIndex + id/perBlock
}

func (t *Table[META, PM]) inodeOffset(id uint64, blockSize int) int {
	perBlock := uint64(blockSize) / uint64(inodeRecordSize[META, PM]())
	return int(id%perBlock) * inodeRecordSize[META, PM]()
}

// ReadInode loads the inode record with the given id.
func (t *Table[META, PM]) ReadInode(io *blockio.IO, id uint64) (*Inode[META, PM], error) {
	if id >= t.InodeCount {
		return nil, fserr.OutOfRange(fmt.Sprintf("inode id %d out of range (%d inodes)", id, t.InodeCount))
	}

	recordSize := inodeRecordSize[META, PM]()
	blockIndex := t.inodeBlock(id, io.BlockSize())
	offset := t.inodeOffset(id, io.BlockSize())

	block, err := io.ReadBlock(blockIndex)
	if err != nil {
		return nil, err
	}
	return fromBytes[META, PM](id, block[offset:offset+recordSize])
}

// WriteInode persists n's record, allocating a fresh id first if it doesn't
// have one yet.
func (t *Table[META, PM]) WriteInode(io *blockio.IO, n *Inode[META, PM]) error {
	if !n.hasID {
		id, err := t.allocate(io)
		if err != nil {
			return err
		}
		n.setID(id)
	}

	recordSize := inodeRecordSize[META, PM]()
	blockIndex := t.inodeBlock(n.ID, io.BlockSize())
	offset := t.inodeOffset(n.ID, io.BlockSize())

	block, err := io.ReadBlock(blockIndex)
	if err != nil {
		return err
	}
	copy(block[offset:offset+recordSize], n.toBytes())
	return io.WriteBlock(blockIndex, block)
}

// FreeInode clears the inode id's bit, releasing it for reuse. It does not
// free the inode's data blocks — the caller must do that first.
func (t *Table[META, PM]) FreeInode(io *blockio.IO, id uint64) error {
	if err := t.bits.Clear(int(id)); err != nil {
		return err
	}
	return t.writeMapPart(io, id)
}

func (t *Table[META, PM]) allocate(io *blockio.IO) (uint64, error) {
	free := t.bits.FirstFree()
	if free < 0 || uint64(free) >= t.InodeCount {
		return 0, fserr.NoSpace("no free inodes remain")
	}
	if err := t.bits.Set(free); err != nil {
		return 0, err
	}
	if err := t.writeMapPart(io, uint64(free)); err != nil {
		return 0, err
	}
	return uint64(free), nil
}

// writeMapPart persists only the single block of the inode bitmap holding
// id's bit, mirroring blockmap.BlockMap.writePart's block-index-from-bit-
// position calculation. spec.md §4.4 is explicit that an id allocate/free is
// a "write-through a single block of the bitmap per change", unlike the
// original Rust source's inode_table.rs, which rewrites the whole bitmap on
// every change (flagged there with its own "TODO: optimize this") — that
// behavior resolves an ambiguity nowhere in spec.md's text, so it is not
// carried forward here.
func (t *Table[META, PM]) writeMapPart(io *blockio.IO, id uint64) error {
	blockSize := io.BlockSize()
	block := id / uint64(blockSize) / 8
	raw := t.bits.ToBytes()
	offset := int(block) * blockSize
	if offset+blockSize > len(raw) {
		return fserr.OutOfRange(fmt.Sprintf("inode id %d is outside the inode bitmap's backing storage", id))
	}
	return io.WriteBlock(t.mapIndex+block, raw[offset:offset+blockSize])
}
