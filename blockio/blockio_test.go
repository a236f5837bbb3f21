package blockio_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/pascalmouret/jfs/backend/file"
	"github.com/pascalmouret/jfs/blockio"
	"github.com/pascalmouret/jfs/device"
)

func newTestIO(t *testing.T, sectorSize, blockSize int) *blockio.IO {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.img")
	storage, err := file.CreateFromPath(path, 1024*512)
	if err != nil {
		t.Fatalf("CreateFromPath: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	dev, err := device.New(storage, sectorSize)
	if err != nil {
		t.Fatalf("device.New: %v", err)
	}

	io, err := blockio.New(dev, blockSize)
	if err != nil {
		t.Fatalf("blockio.New: %v", err)
	}
	return io
}

func TestReadWriteSingleSectorBlock(t *testing.T) {
	io := newTestIO(t, 1024, 1024)

	block := bytes.Repeat([]byte{0x42}, 1024)
	if err := io.WriteBlock(0, block); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	got, err := io.ReadBlock(0)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.Equal(got, block) {
		t.Errorf("ReadBlock() = %x, want %x", got, block)
	}
}

// TestReadWriteLargeBlock is scenario S2 from spec.md §8: B=1024 over S=512.
func TestReadWriteLargeBlock(t *testing.T) {
	io := newTestIO(t, 512, 1024)

	block1 := bytes.Repeat([]byte{0x42}, 1024)
	if err := io.WriteBlock(3, block1); err != nil {
		t.Fatalf("WriteBlock(3): %v", err)
	}
	got, err := io.ReadBlock(3)
	if err != nil {
		t.Fatalf("ReadBlock(3): %v", err)
	}
	if !bytes.Equal(got, block1) {
		t.Fatalf("ReadBlock(3) = %x, want %x", got, block1)
	}

	block2 := bytes.Repeat([]byte{0x1}, 1024)
	if err := io.WriteBlock(4, block2); err != nil {
		t.Fatalf("WriteBlock(4): %v", err)
	}

	block3 := bytes.Repeat([]byte{0x8}, 1024)
	if err := io.WriteBlock(3, block3); err != nil {
		t.Fatalf("WriteBlock(3) again: %v", err)
	}

	got3, err := io.ReadBlock(3)
	if err != nil {
		t.Fatalf("ReadBlock(3) final: %v", err)
	}
	if !bytes.Equal(got3, block3) {
		t.Errorf("ReadBlock(3) final = %x, want %x", got3, block3)
	}

	got4, err := io.ReadBlock(4)
	if err != nil {
		t.Fatalf("ReadBlock(4) final: %v", err)
	}
	if !bytes.Equal(got4, block2) {
		t.Errorf("ReadBlock(4) final = %x, want %x", got4, block2)
	}
}

func TestOutOfRangeAndSizeMismatch(t *testing.T) {
	io := newTestIO(t, 512, 1024)

	if _, err := io.ReadBlock(io.BlockCount()); err == nil {
		t.Error("expected error reading past end")
	}
	if err := io.WriteBlock(0, make([]byte, 100)); err == nil {
		t.Error("expected error on undersized write")
	}
}

func TestSetBlockSizeValidation(t *testing.T) {
	io := newTestIO(t, 512, 512)

	if err := io.SetBlockSize(511); err == nil {
		t.Error("expected error: block size < sector size")
	}
	if err := io.SetBlockSize(700); err == nil {
		t.Error("expected error: block size not a multiple of sector size")
	}
	if err := io.SetBlockSize(2048); err != nil {
		t.Errorf("SetBlockSize(2048): %v", err)
	}
	if io.BlockSize() != 2048 {
		t.Errorf("BlockSize() = %d, want 2048", io.BlockSize())
	}
}
