// internal/google/auth.go
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Auth modes accepted by ClientOptions.
const (
	AuthServiceAccount = "service_account"
	AuthOAuth          = "oauth"
)

// Scopes requested for both the worklist and the blob store.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveScope}

// ErrNoToken is returned in oauth mode when no token has been saved yet.
var ErrNoToken = errors.New("no OAuth token saved; run `logscribe auth` first")

// ClientOptions builds API client options for the given auth mode.
// service_account reads a key file; oauth reads client secrets plus a saved
// token and persists refreshed tokens back to tokenPath.
func ClientOptions(ctx context.Context, mode, credentialsPath, tokenPath string) ([]option.ClientOption, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	switch mode {
	case AuthServiceAccount:
		conf, err := googleoauth.JWTConfigFromJSON(data, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse service account key: %w", err)
		}
		return []option.ClientOption{option.WithHTTPClient(conf.Client(ctx))}, nil

	case AuthOAuth:
		conf, err := googleoauth.ConfigFromJSON(data, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse client secrets: %w", err)
		}
		tok, err := LoadToken(tokenPath)
		if err != nil {
			return nil, err
		}
		ts := &savingTokenSource{
			base: conf.TokenSource(ctx, tok),
			path: tokenPath,
			last: tok.AccessToken,
		}
		return []option.ClientOption{option.WithTokenSource(oauth2.ReuseTokenSource(tok, ts))}, nil

	default:
		return nil, fmt.Errorf("unknown google auth mode %q", mode)
	}
}

// savingTokenSource writes every newly minted token to disk.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := SaveToken(s.path, tok); err != nil {
			return nil, err
		}
	}
	return tok, nil
}

// LoadToken reads a saved OAuth token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("read token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &tok, nil
}

// SaveToken writes tok to path using an atomic temp-file rename.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename token: %w", err)
	}
	return nil
}

// Authorize runs the installed-app OAuth flow: it prints a consent URL to
// out, waits for the browser redirect on a loopback port and saves the
// resulting token to tokenPath.
func Authorize(ctx context.Context, credentialsPath, tokenPath string, out io.Writer) error {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}
	conf, err := googleoauth.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return fmt.Errorf("parse client secrets: %w", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen for redirect: %w", err)
	}
	defer ln.Close()
	conf.RedirectURL = "http://" + ln.Addr().String() + "/"

	state := uuid.New().String()
	codes := make(chan string, 1)
	errs := make(chan error, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization failed: "+e, http.StatusBadRequest)
			select {
			case errs <- fmt.Errorf("authorization failed: %s", e):
			default:
			}
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
		select {
		case codes <- q.Get("code"):
		default:
		}
	})}
	go srv.Serve(ln)
	defer srv.Close()

	fmt.Fprintf(out, "Open this URL in your browser to authorize access:\n\n%s\n\n", conf.AuthCodeURL(state, oauth2.AccessTypeOffline))

	var code string
	select {
	case code = <-codes:
	case err := <-errs:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	if err := SaveToken(tokenPath, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "Token saved to %s\n", tokenPath)
	return nil
}
