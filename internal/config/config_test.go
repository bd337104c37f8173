package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

const localConfig = `
worklist:
  backend: csv
  path: worklist.csv
storage:
  backend: local
  local_dir: out
`

func TestLoad_OverridesDefaults(t *testing.T) {
	path := tempConfigPath(t)
	writeFile(t, path, localConfig+`
logging:
  level: debug
filter:
  roles: [user, assistant]
  skip_empty_content: true
transcript:
  mode: turn
error_handling:
  max_retries: 5
  retry_delay: 250ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
	if len(cfg.Filter.Roles) != 2 || cfg.Filter.Roles[1] != "assistant" {
		t.Errorf("unexpected roles: %v", cfg.Filter.Roles)
	}
	if !cfg.Filter.SkipEmptyContent {
		t.Error("expected skip_empty_content to be set")
	}
	if cfg.Transcript.Mode != "turn" {
		t.Errorf("expected turn mode, got %q", cfg.Transcript.Mode)
	}
	if cfg.ErrorHandling.MaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.ErrorHandling.MaxRetries)
	}
	if cfg.ErrorHandling.RetryDelay != 250*time.Millisecond {
		t.Errorf("expected 250ms retry delay, got %v", cfg.ErrorHandling.RetryDelay)
	}
	// Untouched sections keep their defaults.
	if cfg.Fields.ToolArguments != "original_args" {
		t.Errorf("expected default tool_arguments column, got %q", cfg.Fields.ToolArguments)
	}
	if cfg.Naming.Template != "{conversation_id}_{timestamp}" {
		t.Errorf("expected default template, got %q", cfg.Naming.Template)
	}
}

func TestLoad_MissingFileWritesDefaults(t *testing.T) {
	path := tempConfigPath(t)

	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for default sheets config without a URL, got %v", err)
	}
	if !strings.Contains(err.Error(), "worklist.spreadsheet_url") {
		t.Errorf("expected error to name the missing key, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected defaults to be written: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not exist after save")
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := tempConfigPath(t)
	writeFile(t, path, localConfig+"\nstorage_typo: 1\n")

	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := tempConfigPath(t)
	writeFile(t, path, localConfig)
	t.Setenv("LOGSCRIBE_TELEGRAM_TOKEN", "env-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Notify.Telegram.Token != "env-token" {
		t.Errorf("expected env token, got %q", cfg.Notify.Telegram.Token)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid local", func(c *Config) {}, ""},
		{"bad mode", func(c *Config) { c.Transcript.Mode = "nested" }, "transcript.mode"},
		{"bad placeholder", func(c *Config) { c.Naming.Template = "{conversation}" }, "unknown placeholder {conversation}"},
		{"bad metadata", func(c *Config) { c.Output.MetadataFields = []string{"bogus"} }, `unknown field "bogus"`},
		{"zero retries", func(c *Config) { c.ErrorHandling.MaxRetries = 0 }, "max_retries"},
		{"bad worklist", func(c *Config) { c.Worklist.Backend = "excel" }, "worklist.backend"},
		{"same fields", func(c *Config) {
			c.Output.IncludeMetadata = true
			c.Output.MetadataField = "messages"
		}, "must differ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Worklist.Backend = "csv"
			cfg.Worklist.Path = "worklist.csv"
			cfg.Storage.Backend = "local"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in error, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := Default()
	original.Worklist.Backend = "csv"
	original.Worklist.Path = "items.csv"
	original.Storage.Backend = "local"
	original.Filter.EventTypes = []string{"user_message", "tool_*"}
	original.ErrorHandling.RetryDelay = 1500 * time.Millisecond

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Worklist.Path != "items.csv" {
		t.Errorf("worklist.path mismatch: %q", loaded.Worklist.Path)
	}
	if len(loaded.Filter.EventTypes) != 2 || loaded.Filter.EventTypes[1] != "tool_*" {
		t.Errorf("filter.event_types mismatch: %v", loaded.Filter.EventTypes)
	}
	if loaded.ErrorHandling.RetryDelay != 1500*time.Millisecond {
		t.Errorf("retry_delay mismatch: %v", loaded.ErrorHandling.RetryDelay)
	}
}

func TestListValues_WithMask(t *testing.T) {
	cfg := Default()
	cfg.Notify.Telegram.Token = "123456:ABCdefGHIjkl"

	flat, err := ListValues(cfg, true)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}
	if flat["notify.telegram.token"] != "***Ijkl" {
		t.Errorf("expected masked token, got %v", flat["notify.telegram.token"])
	}
	if flat["storage.backend"] != "drive" {
		t.Errorf("expected storage.backend=drive, got %v", flat["storage.backend"])
	}
}

func TestGetSetValue(t *testing.T) {
	path := tempConfigPath(t)
	writeFile(t, path, localConfig)

	if err := SetValue(path, "storage.enable_upload", "false"); err != nil {
		t.Fatalf("SetValue bool failed: %v", err)
	}
	if err := SetValue(path, "error_handling.max_retries", "7"); err != nil {
		t.Fatalf("SetValue int failed: %v", err)
	}
	if err := SetValue(path, "filter.roles", "user, assistant"); err != nil {
		t.Fatalf("SetValue list failed: %v", err)
	}
	if err := SetValue(path, "error_handling.retry_delay", "5s"); err != nil {
		t.Fatalf("SetValue duration failed: %v", err)
	}

	checks := map[string]string{
		"storage.enable_upload":      "false",
		"error_handling.max_retries": "7",
		"filter.roles":               "user,assistant",
		"error_handling.retry_delay": "5s",
		"worklist.path":              "worklist.csv",
	}
	for key, want := range checks {
		got, err := GetValue(path, key)
		if err != nil {
			t.Fatalf("GetValue %s failed: %v", key, err)
		}
		if got != want {
			t.Errorf("%s: expected %q, got %q", key, want, got)
		}
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load after SetValue failed: %v", err)
	}
	if cfg.Storage.EnableUpload {
		t.Error("expected upload to be disabled")
	}
}

func TestSetValue_Rejects(t *testing.T) {
	path := tempConfigPath(t)
	writeFile(t, path, localConfig)

	if err := SetValue(path, "nonexistent.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := SetValue(path, "error_handling.max_retries", "many"); err == nil {
		t.Error("expected error for non-numeric value")
	}
	if err := SetValue(path, "error_handling.retry_delay", "soon"); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestReadSkipsBackendValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("transcript:\n  mode: turn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if cfg.Transcript.Mode != "turn" {
		t.Errorf("expected turn mode, got %q", cfg.Transcript.Mode)
	}
	if err := cfg.ValidateConversion(); err != nil {
		t.Errorf("conversion settings should be valid: %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected full validation to fail without a spreadsheet, got %v", err)
	}

	cfg.Transcript.Mode = "nested"
	if err := cfg.ValidateConversion(); err == nil {
		t.Error("expected invalid mode to fail conversion validation")
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "missing.yaml")); !os.IsNotExist(err) {
		t.Fatal("unexpected file")
	}
	if _, err := Read(filepath.Join(filepath.Dir(path), "missing.yaml")); err != nil {
		t.Errorf("missing file should yield defaults, got %v", err)
	}
}
