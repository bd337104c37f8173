// internal/google/drive.go
package google

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/user/logscribe/internal/types"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	jsonMimeType   = "application/json"
	fileFields     = "id, name, size, createdTime"
	maxDownload    = 256 << 20
)

// DriveStore keeps output documents in one Drive folder, created on first
// use. References are share links.
type DriveStore struct {
	svc        *drive.Service
	folderName string
	public     bool
	logger     *slog.Logger

	mu       sync.Mutex
	folderID string
}

// NewDriveStore creates a store over the folder named folderName. With public
// set, the folder and every uploaded file get an anyone/reader permission.
func NewDriveStore(svc *drive.Service, folderName string, public bool, logger *slog.Logger) *DriveStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriveStore{svc: svc, folderName: folderName, public: public, logger: logger}
}

// quote escapes s for a Drive search query string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

// folder finds or creates the output folder.
func (s *DriveStore) folder(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.folderID != "" {
		return s.folderID, nil
	}

	q := fmt.Sprintf("name = %s and mimeType = '%s' and trashed = false", quote(s.folderName), folderMimeType)
	list, err := s.svc.Files.List().Q(q).Spaces("drive").Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("find folder %s: %w", s.folderName, err)
	}
	if len(list.Files) > 0 {
		s.folderID = list.Files[0].Id
		s.logger.Info("using existing folder", "folder", s.folderName, "id", s.folderID)
		return s.folderID, nil
	}

	f, err := s.svc.Files.Create(&drive.File{Name: s.folderName, MimeType: folderMimeType}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("create folder %s: %w", s.folderName, err)
	}
	s.folderID = f.Id
	s.logger.Info("created folder", "folder", s.folderName, "id", s.folderID)
	if s.public {
		s.makePublic(ctx, f.Id)
	}
	return s.folderID, nil
}

func (s *DriveStore) makePublic(ctx context.Context, fileID string) {
	_, err := s.svc.Permissions.Create(fileID, &drive.Permission{Type: "anyone", Role: "reader"}).Context(ctx).Do()
	if err != nil {
		s.logger.Warn("failed to make file public", "id", fileID, "error", err)
	}
}

func toBlob(f *drive.File) *types.Blob {
	b := &types.Blob{ID: f.Id, Name: f.Name, Size: f.Size, Reference: ShareLink(f.Id)}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		b.CreatedAt = t
	}
	return b
}

// Put uploads data as a new file named name.
func (s *DriveStore) Put(ctx context.Context, name string, data []byte) (*types.Blob, error) {
	folder, err := s.folder(ctx)
	if err != nil {
		return nil, err
	}
	meta := &drive.File{Name: name, MimeType: jsonMimeType, Parents: []string{folder}}
	f, err := s.svc.Files.Create(meta).
		Media(bytes.NewReader(data), googleapi.ContentType(jsonMimeType)).
		Fields(fileFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	s.logger.Debug("uploaded file", "name", name, "id", f.Id)
	if s.public {
		s.makePublic(ctx, f.Id)
	}
	return toBlob(f), nil
}

func (s *DriveStore) search(ctx context.Context, name string) ([]*drive.File, error) {
	folder, err := s.folder(ctx)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("%s in parents and trashed = false", quote(folder))
	if name != "" {
		q = fmt.Sprintf("name = %s and %s", quote(name), q)
	}

	var files []*drive.File
	call := s.svc.Files.List().Q(q).Fields("nextPageToken", "files("+fileFields+")")
	err = call.Pages(ctx, func(page *drive.FileList) error {
		files = append(files, page.Files...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list folder: %w", err)
	}
	return files, nil
}

// Find returns the first file named name, or types.ErrNotFound.
func (s *DriveStore) Find(ctx context.Context, name string) (*types.Blob, error) {
	files, err := s.search(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("file %s: %w", name, types.ErrNotFound)
	}
	return toBlob(files[0]), nil
}

// Delete removes every file named name from the folder.
func (s *DriveStore) Delete(ctx context.Context, name string) (int, error) {
	files, err := s.search(ctx, name)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		if err := s.svc.Files.Delete(f.Id).Context(ctx).Do(); err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) && gerr.Code == 404 {
				continue
			}
			return removed, fmt.Errorf("delete %s: %w", f.Id, err)
		}
		removed++
	}
	return removed, nil
}

// List returns every file in the folder.
func (s *DriveStore) List(ctx context.Context) ([]*types.Blob, error) {
	files, err := s.search(ctx, "")
	if err != nil {
		return nil, err
	}
	blobs := make([]*types.Blob, len(files))
	for i, f := range files {
		blobs[i] = toBlob(f)
	}
	return blobs, nil
}

// Describe reports the output folder.
func (s *DriveStore) Describe(ctx context.Context) (*types.StoreInfo, error) {
	folder, err := s.folder(ctx)
	if err != nil {
		return nil, err
	}
	f, err := s.svc.Files.Get(folder).Fields("id, name, webViewLink").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return &types.StoreInfo{ID: f.Id, Name: f.Name, Reference: f.WebViewLink}, nil
}

// DriveFetcher downloads Drive-hosted sources through the API, so private
// files shared with the service account can be read. Other locators, and
// Drive files the API cannot serve, go to the fallback fetcher.
type DriveFetcher struct {
	svc      *drive.Service
	fallback types.Fetcher
	logger   *slog.Logger
}

// NewDriveFetcher creates a DriveFetcher.
func NewDriveFetcher(svc *drive.Service, fallback types.Fetcher, logger *slog.Logger) *DriveFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriveFetcher{svc: svc, fallback: fallback, logger: logger}
}

// Fetch returns the bytes behind locator.
func (f *DriveFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	id, ok := types.DriveFileID(locator)
	if !ok {
		return f.fallback.Fetch(ctx, locator)
	}

	data, err := f.download(ctx, id)
	if err == nil {
		return data, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	f.logger.Warn("drive download failed, falling back to HTTP", "id", id, "error", err)
	return f.fallback.Fetch(ctx, locator)
}

func (f *DriveFetcher) download(ctx context.Context, id string) ([]byte, error) {
	resp, err := f.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	if len(data) > maxDownload {
		return nil, fmt.Errorf("file %s exceeds %d bytes", id, maxDownload)
	}
	return data, nil
}
