// internal/state/blobs.go
package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/user/logscribe/internal/types"
)

// BlobStore keeps output documents as plain files in one directory.
// References are file:// URLs.
type BlobStore struct {
	root string
}

// NewBlobStore creates a file-backed BlobStore rooted at the given directory.
func NewBlobStore(root string) *BlobStore {
	return &BlobStore{root: root}
}

func (s *BlobStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(s.root, name), nil
}

func (s *BlobStore) blob(path string, info fs.FileInfo) *types.Blob {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	ref := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return &types.Blob{
		ID:        info.Name(),
		Name:      info.Name(),
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
		Reference: ref.String(),
	}
}

// Put writes data under name, replacing any existing blob of that name.
func (s *BlobStore) Put(_ context.Context, name string, data []byte) (*types.Blob, error) {
	target, err := s.path(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}

	// Atomic write via temp file + rename
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("write temp blob: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("rename temp blob: %w", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat blob: %w", err)
	}
	return s.blob(target, info), nil
}

// Find returns the blob stored under name, or types.ErrNotFound.
func (s *BlobStore) Find(_ context.Context, name string) (*types.Blob, error) {
	target, err := s.path(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob %s: %w", name, types.ErrNotFound)
		}
		return nil, fmt.Errorf("stat blob: %w", err)
	}
	return s.blob(target, info), nil
}

// Delete removes the blob stored under name and reports how many were removed.
func (s *BlobStore) Delete(_ context.Context, name string) (int, error) {
	target, err := s.path(name)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("remove blob: %w", err)
	}
	return 1, nil
}

// List returns every stored blob sorted by name. A missing directory is empty.
func (s *BlobStore) List(_ context.Context) ([]*types.Blob, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*types.Blob{}, nil
		}
		return nil, fmt.Errorf("read blob dir: %w", err)
	}

	blobs := make([]*types.Blob, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		blobs = append(blobs, s.blob(filepath.Join(s.root, e.Name()), info))
	}
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Name < blobs[j].Name })
	return blobs, nil
}

// Describe reports the store directory.
func (s *BlobStore) Describe(_ context.Context) (*types.StoreInfo, error) {
	abs, err := filepath.Abs(s.root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob dir: %w", err)
	}
	ref := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return &types.StoreInfo{ID: abs, Name: filepath.Base(abs), Reference: ref.String()}, nil
}
