// internal/batch/fetch.go
package batch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/user/logscribe/internal/types"
)

// maxSourceBytes bounds a downloaded source table.
const maxSourceBytes = 256 << 20

// DirectDownloadURL rewrites a Google Drive share link to its direct
// download form. Other links are returned unchanged.
func DirectDownloadURL(link string) string {
	id, ok := types.DriveFileID(link)
	if !ok {
		return link
	}
	return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(id)
}

// HTTPFetcher downloads source tables over HTTP. file:// locators and bare
// paths are read from disk.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher whose requests time out after timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch returns the bytes behind locator.
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	locator = strings.TrimSpace(locator)
	if path, ok := localPath(locator); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, DirectDownloadURL(locator), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "logscribe/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fetch source: HTTP status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, Permanent(err)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxSourceBytes {
		return nil, Permanent(fmt.Errorf("source exceeds %d bytes", maxSourceBytes))
	}
	return body, nil
}

func localPath(locator string) (string, bool) {
	if strings.HasPrefix(locator, "file://") {
		u, err := url.Parse(locator)
		if err != nil {
			return "", false
		}
		return u.Path, true
	}
	if strings.Contains(locator, "://") {
		return "", false
	}
	return locator, true
}
