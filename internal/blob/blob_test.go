package blob

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestStore_SaveAndRead(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	path, n, err := s.Save(ctx, "file-1", strings.NewReader("hello blob"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != int64(len("hello blob")) {
		t.Errorf("written = %d, want %d", n, len("hello blob"))
	}

	data, err := s.Read(ctx, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hello blob" {
		t.Errorf("content = %q, want %q", data, "hello blob")
	}
}

func TestStore_SaveReplacesExisting(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	ctx := context.Background()

	if _, _, err := s.Save(ctx, "file-1", strings.NewReader("first")); err != nil {
		t.Fatal(err)
	}
	path, _, err := s.Save(ctx, "file-1", strings.NewReader("second"))
	if err != nil {
		t.Fatal(err)
	}

	data, err := s.Read(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(dir)

	if _, _, err := s.Save(context.Background(), "file-1", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	if err := s.Delete(context.Background(), s.path("nope")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStore_OpenMissing(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	if _, err := s.Open(context.Background(), s.path("nope")); err == nil {
		t.Error("opening a missing blob must fail")
	}
}

func TestStore_PathTraversalIsStripped(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(dir)

	path, _, err := s.Save(context.Background(), "../../evil", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Errorf("blob escaped store dir: %s", path)
	}
}
