// Package device implements the sector-granular block device contract of
// spec.md §6.1: a fixed sector size and count over a backend.Storage, with
// bounds- and size-checked reads and writes. It is the Go analogue of the
// original Rust source's driver.DeviceDriver trait and FileDrive struct
// (src/driver/mod.rs, src/driver/file_drive.rs), built on top of the
// teacher's backend.Storage rather than a bespoke os.File wrapper.
package device

import (
	"fmt"

	"github.com/pascalmouret/jfs/backend"
	"github.com/pascalmouret/jfs/fserr"
)

// Device is a sector-addressable read/write target backed by a backend.Storage.
type Device struct {
	storage    backend.Storage
	sectorSize int
	sectorCnt  uint64
}

// New wraps a backend.Storage as a sector-granular device. sectorSize must
// evenly divide the storage's size.
func New(storage backend.Storage, sectorSize int) (*Device, error) {
	if sectorSize <= 0 {
		return nil, fmt.Errorf("sector size must be positive, got %d", sectorSize)
	}

	info, err := storage.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat backing storage: %w", err)
	}

	return &Device{
		storage:    storage,
		sectorSize: sectorSize,
		sectorCnt:  uint64(info.Size()) / uint64(sectorSize),
	}, nil
}

// SectorSize returns the device's atomic I/O unit size in bytes.
func (d *Device) SectorSize() int {
	return d.sectorSize
}

// SectorCount returns the total number of addressable sectors.
func (d *Device) SectorCount() uint64 {
	return d.sectorCnt
}

// ReadSector reads exactly one sector at the given 0-based index.
func (d *Device) ReadSector(index uint64) ([]byte, error) {
	if index >= d.sectorCnt {
		return nil, fserr.OutOfRange(fmt.Sprintf("sector index %d out of range (%d sectors)", index, d.sectorCnt))
	}

	buf := make([]byte, d.sectorSize)
	if _, err := d.storage.ReadAt(buf, int64(index)*int64(d.sectorSize)); err != nil {
		return nil, fmt.Errorf("reading sector %d: %w", index, err)
	}
	return buf, nil
}

// WriteSector writes exactly one sector at the given 0-based index. data must
// be exactly SectorSize() bytes long.
func (d *Device) WriteSector(index uint64, data []byte) error {
	if len(data) != d.sectorSize {
		return fserr.SizeMismatch(fmt.Sprintf("sector write of %d bytes, expected %d", len(data), d.sectorSize))
	}
	if index >= d.sectorCnt {
		return fserr.OutOfRange(fmt.Sprintf("sector index %d out of range (%d sectors)", index, d.sectorCnt))
	}

	writable, err := d.storage.Writable()
	if err != nil {
		return fmt.Errorf("backing storage is not writable: %w", err)
	}
	if _, err := writable.WriteAt(data, int64(index)*int64(d.sectorSize)); err != nil {
		return fmt.Errorf("writing sector %d: %w", index, err)
	}
	return nil
}
