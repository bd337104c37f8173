// internal/state/blobs_test.go
package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/logscribe/internal/types"
)

func TestBlobStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	store := NewBlobStore(dir)
	ctx := context.Background()

	// Test put
	blob, err := store.Put(ctx, "7_20250601.json", []byte(`{"messages":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if blob.Size != 15 {
		t.Errorf("expected size 15, got %d", blob.Size)
	}
	if !strings.HasPrefix(blob.Reference, "file://") || !strings.HasSuffix(blob.Reference, "/out/7_20250601.json") {
		t.Errorf("unexpected reference %q", blob.Reference)
	}
	if _, err := os.Stat(filepath.Join(dir, "7_20250601.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file should not remain after put")
	}

	// Test find
	found, err := store.Find(ctx, "7_20250601.json")
	if err != nil {
		t.Fatal(err)
	}
	if found.Reference != blob.Reference {
		t.Errorf("reference mismatch: %q vs %q", found.Reference, blob.Reference)
	}
	if _, err := store.Find(ctx, "missing.json"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Test list
	if _, err := store.Put(ctx, "1_a.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	blobs, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(blobs) != 2 || blobs[0].Name != "1_a.json" {
		t.Errorf("unexpected list: %+v", blobs)
	}

	// Test delete
	n, err := store.Delete(ctx, "1_a.json")
	if err != nil || n != 1 {
		t.Errorf("Delete = %d, %v; want 1, nil", n, err)
	}
	n, err = store.Delete(ctx, "1_a.json")
	if err != nil || n != 0 {
		t.Errorf("second Delete = %d, %v; want 0, nil", n, err)
	}
}

func TestBlobStoreRejectsPaths(t *testing.T) {
	store := NewBlobStore(t.TempDir())
	for _, name := range []string{"", "../escape.json", "a/b.json", ".hidden"} {
		if _, err := store.Put(context.Background(), name, []byte("{}")); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
}

func TestBlobStoreListMissingDir(t *testing.T) {
	store := NewBlobStore(filepath.Join(t.TempDir(), "absent"))
	blobs, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(blobs) != 0 {
		t.Errorf("expected empty list, got %d", len(blobs))
	}

	info, err := store.Describe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "absent" || !strings.HasPrefix(info.Reference, "file://") {
		t.Errorf("unexpected info %+v", info)
	}
}
