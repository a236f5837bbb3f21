package blockmap_test

import (
	"path/filepath"
	"testing"

	"github.com/pascalmouret/jfs/backend/file"
	"github.com/pascalmouret/jfs/blockio"
	"github.com/pascalmouret/jfs/blockmap"
	"github.com/pascalmouret/jfs/device"
)

func newTestIO(t *testing.T) *blockio.IO {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.img")
	storage, err := file.CreateFromPath(path, 1024*512)
	if err != nil {
		t.Fatalf("CreateFromPath: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	dev, err := device.New(storage, 512)
	if err != nil {
		t.Fatalf("device.New: %v", err)
	}
	io, err := blockio.New(dev, 1024)
	if err != nil {
		t.Fatalf("blockio.New: %v", err)
	}
	return io
}

// TestReadWrite mirrors the original Rust source's read_write test in
// src/structure/blockmap.rs.
func TestReadWrite(t *testing.T) {
	io := newTestIO(t)

	bm := blockmap.New(1, 1024, 1024)
	if err := bm.WriteFull(io); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}

	reread, err := blockmap.Read(io, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if reread.CountUsed() != bm.CountUsed() {
		t.Errorf("CountUsed() after round trip = %d, want %d", reread.CountUsed(), bm.CountUsed())
	}

	for i := uint64(0); i <= bm.LastBlock; i++ {
		used, err := reread.IsUsed(i)
		if err != nil {
			t.Fatalf("IsUsed(%d): %v", i, err)
		}
		if !used {
			t.Errorf("block %d should be reserved/used after round trip", i)
		}
	}
}

// TestAllocate mirrors the original Rust source's allocate test.
func TestAllocate(t *testing.T) {
	io := newTestIO(t)

	bm := blockmap.New(1, 1024, 1024)
	index, err := bm.Allocate(io)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if used, _ := bm.IsUsed(index); !used {
		t.Errorf("block %d should be used after Allocate", index)
	}

	if err := bm.MarkFree(io, index); err != nil {
		t.Fatalf("MarkFree: %v", err)
	}
	if free, _ := bm.IsFree(index); !free {
		t.Errorf("block %d should be free after MarkFree", index)
	}

	reread, err := blockmap.Read(io, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if free, _ := reread.IsFree(index); !free {
		t.Errorf("block %d should read back as free", index)
	}
}

func TestAllocateExhaustion(t *testing.T) {
	io := newTestIO(t)

	bm := blockmap.New(1, 16, 1024)
	for {
		if _, err := bm.Allocate(io); err != nil {
			break
		}
	}

	if _, err := bm.Allocate(io); err == nil {
		t.Error("expected NoSpace once the map is exhausted")
	}
}
