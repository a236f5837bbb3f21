package file_test

import (
	"bytes"
	"path/filepath"
	"testing"

	backendFile "github.com/pascalmouret/jfs/backend/file"
	"github.com/pascalmouret/jfs/blockio"
	"github.com/pascalmouret/jfs/device"
	jfsfile "github.com/pascalmouret/jfs/file"
	"github.com/pascalmouret/jfs/meta"
	"github.com/pascalmouret/jfs/structure"
)

type testStructure = structure.Structure[meta.Metadata, *meta.Metadata]

func newTestStructure(t *testing.T) *testStructure {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.img")
	storage, err := backendFile.CreateFromPath(path, 1024*512*5)
	if err != nil {
		t.Fatalf("CreateFromPath: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	dev, err := device.New(storage, 512)
	if err != nil {
		t.Fatalf("device.New: %v", err)
	}
	io, err := blockio.New(dev, 512)
	if err != nil {
		t.Fatalf("blockio.New: %v", err)
	}
	s, err := structure.New[meta.Metadata, *meta.Metadata](io, 512)
	if err != nil {
		t.Fatalf("structure.New: %v", err)
	}
	return s
}

// TestSetDataScenarioS4 mirrors spec.md §8 scenario S4.
func TestSetDataScenarioS4(t *testing.T) {
	s := newTestStructure(t)

	f, err := jfsfile.New(s, 0, 0, 0o644)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := bytes.Repeat([]byte{0x42}, 1024)
	if err := f.SetData(s, data); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	got, err := f.GetData(s)
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("GetData() did not round-trip")
	}
	if f.Inode.Size != 1024 {
		t.Errorf("Size = %d, want 1024", f.Inode.Size)
	}
	if f.Inode.UsedPointers != 2 {
		t.Errorf("UsedPointers = %d, want 2", f.Inode.UsedPointers)
	}
}

// TestSetDataScenarioS6 mirrors spec.md §8 scenario S6: TOO_LARGE leaves
// inode state unchanged.
func TestSetDataScenarioS6(t *testing.T) {
	s := newTestStructure(t)

	f, err := jfsfile.New(s, 0, 0, 0o644)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := bytes.Repeat([]byte{0x1}, 512)
	if err := f.SetData(s, data); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	sizeBefore, pointersBefore := f.Inode.Size, f.Inode.Pointers

	tooMuch := make([]byte, s.BlockSize()*12+1)
	if err := f.SetData(s, tooMuch); err == nil {
		t.Fatal("expected TOO_LARGE")
	}

	if f.Inode.Size != sizeBefore || f.Inode.Pointers != pointersBefore {
		t.Error("inode state changed after a failed SetData")
	}
}
