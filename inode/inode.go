// Package inode implements spec.md §4.4 and §4.5: the inode record (fixed
// size + up to DirectPointers direct block pointers + polymorphic metadata)
// and the on-disk inode table that allocates and persists them. It is the
// Go analogue of the original Rust source's generic Inode<META> and
// InodeTable<META> (src/structure/inode.rs, src/structure/inode_table.rs),
// expressed with Go generics instead of a Rust type parameter.
package inode

import (
	"encoding/binary"
	"fmt"

	"github.com/pascalmouret/jfs/blockio"
	"github.com/pascalmouret/jfs/fserr"
)

// DirectPointers is the number of direct block pointers every inode carries.
const DirectPointers = 12

// blocksPerInodeMap is the original Rust source's BLOCKS_PER_INODE_MAP
// constant (src/consts.rs): every this-many data blocks buys one block's
// worth of inode bitmap bits. spec.md §9 notes the constant "varies across
// source revisions (2048 vs 10240)"; this port uses 10240, not the 2048
// literally found in the retrieved src/consts.rs, because 2048 paired with
// this Metadata record size (191 bytes) makes the inode *record* array
// consume roughly three quarters of every formatted image regardless of
// its size (mapBlocks scales with BLOCKS_PER_INODE_MAP, but table_blocks
// scales with inode_count/inodesPerBlock, and the two only stay
// proportionate for a much larger divisor) — 10240 keeps that overhead
// within the low tens of percent, matching the "inode table sized against
// available space" intent of spec.md §4.4 rather than starving the
// on-disk test images this repo formats of data blocks.
const blocksPerInodeMap = 10240

// Codec is the contract a metadata payload type must satisfy to be used as
// an Inode's META type parameter: PM is a pointer to META implementing
// ToBytes/FromBytes/SizeOnDisk, the standard Go idiom for a generic type
// whose operations require pointer-receiver methods.
type Codec[META any] interface {
	*META
	ToBytes() []byte
	FromBytes([]byte) error
	SizeOnDisk() int
}

// Inode is a single filesystem object's on-disk record: its size, its direct
// block pointers, and its typed metadata payload.
type Inode[META any, PM Codec[META]] struct {
	ID       uint64
	hasID    bool
	Pointers [DirectPointers]uint64
	Size     uint64
	// UsedPointers is the number of leading non-zero entries in Pointers —
	// pointers are always left-packed, per spec.md §4.5.
	UsedPointers  int
	AllocatedSize uint64
	Meta          META
}

// New creates an in-memory inode with no id yet assigned; WriteInode
// assigns one on first persist.
func New[META any, PM Codec[META]](meta META) *Inode[META, PM] {
	return &Inode[META, PM]{Meta: meta}
}

// HasID reports whether the inode has been assigned a persistent id.
func (n *Inode[META, PM]) HasID() bool {
	return n.hasID
}

func (n *Inode[META, PM]) setID(id uint64) {
	n.ID = id
	n.hasID = true
}

// wireSize is size(u64) + 12 pointers(u64) + metadata.
func wireSize[META any, PM Codec[META]]() int {
	var zero META
	pm := PM(&zero)
	return 8 + 8*DirectPointers + pm.SizeOnDisk()
}

// SizeOnDisk returns the fixed number of bytes one inode record occupies,
// computed from the fixed fields plus the metadata payload's own size —
// never hard-coded, per spec.md §4.5.
func SizeOnDisk[META any, PM Codec[META]]() int {
	return wireSize[META, PM]()
}

// toBytes serializes size | pointers | meta, all little-endian.
func (n *Inode[META, PM]) toBytes() []byte {
	buf := make([]byte, 8+8*DirectPointers)
	binary.LittleEndian.PutUint64(buf[0:8], n.Size)
	for i, p := range n.Pointers {
		binary.LittleEndian.PutUint64(buf[8+i*8:16+i*8], p)
	}
	pm := PM(&n.Meta)
	return append(buf, pm.ToBytes()...)
}

// fromBytes decodes an inode record previously produced by toBytes.
func fromBytes[META any, PM Codec[META]](id uint64, buf []byte) (*Inode[META, PM], error) {
	if len(buf) != wireSize[META, PM]() {
		return nil, fserr.SizeMismatch(fmt.Sprintf("inode record is %d bytes, expected %d", len(buf), wireSize[META, PM]()))
	}

	size := binary.LittleEndian.Uint64(buf[0:8])
	var pointers [DirectPointers]uint64
	for i := range pointers {
		pointers[i] = binary.LittleEndian.Uint64(buf[8+i*8 : 16+i*8])
	}

	used := 0
	for _, p := range pointers {
		if p == 0 {
			break
		}
		used++
	}

	var meta META
	pm := PM(&meta)
	if err := pm.FromBytes(buf[8+8*DirectPointers:]); err != nil {
		return nil, err
	}

	n := &Inode[META, PM]{
		Pointers:     pointers,
		Size:         size,
		UsedPointers: used,
		Meta:         meta,
	}
	n.setID(id)
	return n, nil
}

// GetData reads the inode's full payload back from its direct blocks,
// trimmed to Size bytes.
func (n *Inode[META, PM]) GetData(io *blockio.IO) ([]byte, error) {
	result := make([]byte, 0, n.AllocatedSize)
	for i := 0; i < n.UsedPointers; i++ {
		block, err := io.ReadBlock(n.Pointers[i])
		if err != nil {
			return nil, err
		}
		result = append(result, block...)
	}
	if uint64(len(result)) < n.Size {
		return nil, fserr.OutOfRange("inode data is shorter than its recorded size")
	}
	return result[:n.Size], nil
}

// SetData writes data across the inode's direct blocks, allocating or
// freeing blocks via allocator/freer as needed, and updates Size/Pointers/
// UsedPointers/AllocatedSize in memory. It does NOT persist the inode
// record itself — the caller must still call InodeTable.WriteInode (or
// Structure.WriteInode) afterward, exactly as Structure.write_inode does in
// the original Rust source; SetData only ever touches data blocks.
func (n *Inode[META, PM]) SetData(io *blockio.IO, allocate func() (uint64, error), free func(uint64) error, data []byte) error {
	blockSize := io.BlockSize()
	maxSize := uint64(blockSize) * DirectPointers
	if uint64(len(data)) > maxSize {
		return fserr.TooLarge(fmt.Sprintf("data of %d bytes exceeds the maximum inode size of %d bytes", len(data), maxSize))
	}

	if err := n.ensureSize(io, allocate, free, uint64(len(data))); err != nil {
		return err
	}

	for i := 0; i < n.UsedPointers; i++ {
		start := i * blockSize
		end := start + blockSize
		chunk := make([]byte, blockSize)
		if start < len(data) {
			copy(chunk, data[start:min(end, len(data))])
		}
		if err := io.WriteBlock(n.Pointers[i], chunk); err != nil {
			return err
		}
	}

	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ensureSize grows or shrinks the inode's pointer set to cover newSize
// bytes, allocating or freeing blocks one at a time exactly as the original
// Rust source's ensure_size does.
func (n *Inode[META, PM]) ensureSize(io *blockio.IO, allocate func() (uint64, error), free func(uint64) error, newSize uint64) error {
	blockSize := uint64(io.BlockSize())
	target := newSize / blockSize
	if newSize%blockSize > 0 {
		target++
	}

	for uint64(n.UsedPointers) < target {
		if n.UsedPointers >= DirectPointers {
			return fserr.TooLarge("all direct pointers are already in use")
		}
		block, err := allocate()
		if err != nil {
			return err
		}
		n.Pointers[n.UsedPointers] = block
		n.UsedPointers++
		n.AllocatedSize = uint64(n.UsedPointers) * blockSize
	}

	for uint64(n.UsedPointers) > target {
		last := n.UsedPointers - 1
		if err := free(n.Pointers[last]); err != nil {
			return err
		}
		n.Pointers[last] = 0
		n.UsedPointers--
		n.AllocatedSize = uint64(n.UsedPointers) * blockSize
	}

	n.Size = newSize
	return nil
}
