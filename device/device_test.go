package device_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/pascalmouret/jfs/backend/file"
	"github.com/pascalmouret/jfs/device"
)

func newTestDevice(t *testing.T, size int64, sectorSize int) *device.Device {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.img")
	storage, err := file.CreateFromPath(path, size)
	if err != nil {
		t.Fatalf("CreateFromPath: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	d, err := device.New(storage, sectorSize)
	if err != nil {
		t.Fatalf("device.New: %v", err)
	}
	return d
}

func TestReadWriteSector(t *testing.T) {
	d := newTestDevice(t, 1024*512, 512)

	sector0 := bytes.Repeat([]byte{0x42}, 512)
	sector1 := bytes.Repeat([]byte{0x1}, 512)
	sector512 := bytes.Repeat([]byte{0x8}, 512)
	sector1023 := bytes.Repeat([]byte{0x52}, 512)

	for _, tc := range []struct {
		index uint64
		data  []byte
	}{
		{0, sector0}, {1, sector1}, {512, sector512}, {1023, sector1023},
	} {
		if err := d.WriteSector(tc.index, tc.data); err != nil {
			t.Fatalf("WriteSector(%d): %v", tc.index, err)
		}
	}

	for _, tc := range []struct {
		index uint64
		want  []byte
	}{
		{0, sector0}, {1, sector1}, {512, sector512}, {1023, sector1023},
		{2, bytes.Repeat([]byte{0}, 512)},
	} {
		got, err := d.ReadSector(tc.index)
		if err != nil {
			t.Fatalf("ReadSector(%d): %v", tc.index, err)
		}
		if !bytes.Equal(got, tc.want) {
			t.Errorf("ReadSector(%d) = %x, want %x", tc.index, got, tc.want)
		}
	}
}

func TestOutOfRange(t *testing.T) {
	d := newTestDevice(t, 1024*512, 512)

	if _, err := d.ReadSector(d.SectorCount()); err == nil {
		t.Error("expected error reading past end of device")
	}
	if err := d.WriteSector(d.SectorCount(), make([]byte, 512)); err == nil {
		t.Error("expected error writing past end of device")
	}
}

func TestSizeMismatch(t *testing.T) {
	d := newTestDevice(t, 1024*512, 512)

	if err := d.WriteSector(0, make([]byte, 511)); err == nil {
		t.Error("expected error on undersized write")
	}
}

func TestSectorCount(t *testing.T) {
	d := newTestDevice(t, 1024*512, 512)
	if d.SectorCount() != 1024 {
		t.Errorf("SectorCount() = %d, want 1024", d.SectorCount())
	}
	if d.SectorSize() != 512 {
		t.Errorf("SectorSize() = %d, want 512", d.SectorSize())
	}
}
