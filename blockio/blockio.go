// Package blockio implements spec.md §4.1: translating block-level reads
// and writes into sector-level reads and writes against a device.Device.
// It is the Go analogue of the original Rust source's IO struct
// (src/io/mod.rs).
package blockio

import (
	"fmt"

	"github.com/pascalmouret/jfs/device"
	"github.com/pascalmouret/jfs/fserr"
)

// IO is the block-granular read/write layer built on a sector-granular device.
type IO struct {
	dev        *device.Device
	blockSize  int
	blockCount uint64
}

// New builds an IO over dev with the given block size. block_size must be
// >= the device's sector size and a multiple of it.
func New(dev *device.Device, blockSize int) (*IO, error) {
	io := &IO{dev: dev}
	if err := io.SetBlockSize(blockSize); err != nil {
		return nil, err
	}
	return io, nil
}

// SetBlockSize reinterprets the same device at a new block size without
// re-reading anything; used during mount once the superblock reveals the
// persisted block size.
func (io *IO) SetBlockSize(blockSize int) error {
	if blockSize < io.dev.SectorSize() {
		return fmt.Errorf("block size %d must be >= sector size %d", blockSize, io.dev.SectorSize())
	}
	if blockSize%io.dev.SectorSize() != 0 {
		return fmt.Errorf("block size %d must be a multiple of sector size %d", blockSize, io.dev.SectorSize())
	}
	io.blockSize = blockSize
	io.blockCount = io.dev.SectorCount() * uint64(io.dev.SectorSize()) / uint64(blockSize)
	return nil
}

// BlockSize returns the current block size in bytes.
func (io *IO) BlockSize() int {
	return io.blockSize
}

// BlockCount returns the total number of addressable blocks.
func (io *IO) BlockCount() uint64 {
	return io.blockCount
}

// SectorSize returns the underlying device's sector size.
func (io *IO) SectorSize() int {
	return io.dev.SectorSize()
}

// SectorCount returns the underlying device's sector count.
func (io *IO) SectorCount() uint64 {
	return io.dev.SectorCount()
}

func (io *IO) sectorsPerBlock() uint64 {
	return uint64(io.blockSize) / uint64(io.dev.SectorSize())
}

// ReadBlock reads exactly one block at the given 0-based block index.
func (io *IO) ReadBlock(index uint64) ([]byte, error) {
	if index >= io.blockCount {
		return nil, fserr.OutOfRange(fmt.Sprintf("block index %d out of range (%d blocks)", index, io.blockCount))
	}

	if io.blockSize == io.dev.SectorSize() {
		return io.dev.ReadSector(index)
	}

	ratio := io.sectorsPerBlock()
	start := index * ratio
	buf := make([]byte, 0, io.blockSize)
	for s := start; s < start+ratio; s++ {
		sector, err := io.dev.ReadSector(s)
		if err != nil {
			return nil, err
		}
		buf = append(buf, sector...)
	}
	return buf, nil
}

// WriteBlock writes exactly one block at the given 0-based block index. buf
// must be exactly BlockSize() bytes long. A multi-sector block write is not
// atomic across sectors: spec.md §5 deliberately never relies on it being so.
func (io *IO) WriteBlock(index uint64, buf []byte) error {
	if len(buf) != io.blockSize {
		return fserr.SizeMismatch(fmt.Sprintf("block write of %d bytes, expected %d", len(buf), io.blockSize))
	}
	if index >= io.blockCount {
		return fserr.OutOfRange(fmt.Sprintf("block index %d out of range (%d blocks)", index, io.blockCount))
	}

	if io.blockSize == io.dev.SectorSize() {
		return io.dev.WriteSector(index, buf)
	}

	ratio := io.sectorsPerBlock()
	sectorSize := io.dev.SectorSize()
	start := index * ratio
	for s := start; s < start+ratio; s++ {
		offset := int(s-start) * sectorSize
		if err := io.dev.WriteSector(s, buf[offset:offset+sectorSize]); err != nil {
			return err
		}
	}
	return nil
}
