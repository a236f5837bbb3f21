package journeyfs_test

import (
	"bytes"
	"path/filepath"
	"testing"

	backendFile "github.com/pascalmouret/jfs/backend/file"
	"github.com/pascalmouret/jfs/journeyfs"
)

func newTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.img")
	storage, err := backendFile.CreateFromPath(path, 1024*512*10)
	if err != nil {
		t.Fatalf("CreateFromPath: %v", err)
	}
	storage.Close()
	return path
}

func mountAt(t *testing.T, path string) *journeyfs.JourneyFS {
	t.Helper()
	storage, err := backendFile.OpenFromPath(path, false)
	if err != nil {
		t.Fatalf("OpenFromPath: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	fs, err := journeyfs.Mount(storage, 512, 512, 0, 0)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return fs
}

// TestFormatThenReopenMounts mirrors spec.md §8 scenario S1's "mount
// succeeds; root directory exists with empty entry list" requirement,
// across a format followed by a fresh reopen of the same image.
func TestFormatThenReopenMounts(t *testing.T) {
	path := newTestImage(t)

	first := mountAt(t, path)
	entries, err := first.ListDir("/")
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("ListDir(/) = %v, want empty", entries)
	}

	second := mountAt(t, path)
	entries, err = second.ListDir("/")
	if err != nil {
		t.Fatalf("ListDir after reopen: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("ListDir(/) after reopen = %v, want empty", entries)
	}
}

func TestMkdirCreateAndPathLookup(t *testing.T) {
	path := newTestImage(t)
	fs := mountAt(t, path)

	if _, err := fs.Mkdir("/docs", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := fs.Create("/docs/readme.txt", 0o644); err != nil {
		t.Fatalf("Create: %v", err)
	}

	content := []byte("hello journeyfs")
	if err := fs.WriteFile("/docs/readme.txt", content); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := fs.ReadFile("/docs/readme.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("ReadFile() = %q, want %q", got, content)
	}

	id, err := fs.Lookup("/docs/readme.txt")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	n, err := fs.GetInode(id)
	if err != nil {
		t.Fatalf("GetInode: %v", err)
	}
	if int(n.Size) != len(content) {
		t.Errorf("inode size = %d, want %d", n.Size, len(content))
	}
}

func TestRemoveDeletesEntry(t *testing.T) {
	path := newTestImage(t)
	fs := mountAt(t, path)

	if _, err := fs.Create("/a.txt", 0o644); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := fs.Lookup("/a.txt"); err != nil {
		t.Fatalf("Lookup before remove: %v", err)
	}

	if err := fs.Remove("/a.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := fs.Lookup("/a.txt"); err == nil {
		t.Error("expected lookup to fail after Remove")
	}
}

// TestRemoveDirectoryFreesInode covers the directory branch of Remove: a
// freshly created, childless directory's NLinks starts at 2 (self + the
// implicit "."), so removing its one entry from the parent must release
// both of its own references to actually reach zero and free its inode —
// not just the one decrement a plain file's Remove performs. A reused inode
// id after the removal is the only externally observable proof that
// InodeTable.FreeInode actually ran.
func TestRemoveDirectoryFreesInode(t *testing.T) {
	path := newTestImage(t)
	fs := mountAt(t, path)

	if _, err := fs.Mkdir("/d", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	dirID, err := fs.Lookup("/d")
	if err != nil {
		t.Fatalf("Lookup before remove: %v", err)
	}

	if err := fs.Remove("/d"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := fs.Lookup("/d"); err == nil {
		t.Error("expected lookup to fail after Remove")
	}

	if _, err := fs.Mkdir("/d2", 0o755); err != nil {
		t.Fatalf("Mkdir(/d2): %v", err)
	}
	d2ID, err := fs.Lookup("/d2")
	if err != nil {
		t.Fatalf("Lookup(/d2): %v", err)
	}
	if d2ID != dirID {
		t.Errorf("new directory got inode id %d, want reused id %d", d2ID, dirID)
	}
}

func TestLookupMissingPathFails(t *testing.T) {
	path := newTestImage(t)
	fs := mountAt(t, path)

	if _, err := fs.Lookup("/nope"); err == nil {
		t.Error("expected NOT_FOUND for a missing path")
	}
}

func TestLookupRoot(t *testing.T) {
	path := newTestImage(t)
	fs := mountAt(t, path)

	if _, err := fs.Lookup("/"); err != nil {
		t.Fatalf("Lookup(/): %v", err)
	}
}
