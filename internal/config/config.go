package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Validate and Load.
var ErrInvalid = errors.New("invalid configuration")

// DefaultPath is used when --config is not given.
const DefaultPath = "config.yaml"

// Metadata field names understood by the summarizer.
const (
	MetaTotalMessages       = "total_messages"
	MetaConversationStart   = "conversation_start"
	MetaConversationEnd     = "conversation_end"
	MetaUniqueModels        = "unique_models"
	MetaProcessingTimestamp = "processing_timestamp"
	MetaTotalTokens         = "total_tokens"
)

var knownMetadata = map[string]bool{
	MetaTotalMessages:       true,
	MetaConversationStart:   true,
	MetaConversationEnd:     true,
	MetaUniqueModels:        true,
	MetaProcessingTimestamp: true,
	MetaTotalTokens:         true,
}

var knownPlaceholders = map[string]bool{
	"conversation_id": true,
	"index":           true,
	"timestamp":       true,
}

// PlaceholderPattern matches {name} placeholders in naming templates.
var PlaceholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"logging"`

	Worklist struct {
		Backend           string `yaml:"backend"`
		SpreadsheetURL    string `yaml:"spreadsheet_url"`
		Worksheet         string `yaml:"worksheet"`
		Path              string `yaml:"path"`
		SourceColumn      string `yaml:"source_column"`
		DestinationColumn string `yaml:"destination_column"`
	} `yaml:"worklist"`

	Storage struct {
		Backend      string `yaml:"backend"`
		EnableUpload bool   `yaml:"enable_upload"`
		FolderName   string `yaml:"folder_name"`
		MakePublic   bool   `yaml:"make_public"`
		LocalDir     string `yaml:"local_dir"`
	} `yaml:"storage"`

	Google struct {
		Auth            string `yaml:"auth"`
		CredentialsPath string `yaml:"credentials_path"`
		TokenPath       string `yaml:"token_path"`
	} `yaml:"google"`

	Fields Fields `yaml:"fields"`

	Filter struct {
		EventTypes       []string `yaml:"event_types"`
		Roles            []string `yaml:"roles"`
		SkipEmptyContent bool     `yaml:"skip_empty_content"`
	} `yaml:"filter"`

	Projection struct {
		Included []string `yaml:"included"`
		Excluded []string `yaml:"excluded"`
	} `yaml:"projection"`

	Transcript struct {
		Mode           string `yaml:"mode"`
		SystemPrompt   string `yaml:"system_prompt"`
		HTMLToMarkdown bool   `yaml:"html_to_markdown"`
	} `yaml:"transcript"`

	Output struct {
		MessagesField   string   `yaml:"messages_field"`
		MetadataField   string   `yaml:"metadata_field"`
		IncludeMetadata bool     `yaml:"include_metadata"`
		MetadataFields  []string `yaml:"metadata_fields"`
		TokenizerModel  string   `yaml:"tokenizer_model"`
		PrettyPrint     bool     `yaml:"pretty_print"`
		LocalDir        string   `yaml:"local_dir"`
	} `yaml:"output"`

	Naming struct {
		Template        string `yaml:"template"`
		TimestampFormat string `yaml:"timestamp_format"`
		Extension       string `yaml:"extension"`
	} `yaml:"naming"`

	ErrorHandling struct {
		ContinueOnError bool          `yaml:"continue_on_error"`
		MaxRetries      int           `yaml:"max_retries"`
		RetryDelay      time.Duration `yaml:"retry_delay"`
		MaxRetryDelay   time.Duration `yaml:"max_retry_delay"`
	} `yaml:"error_handling"`

	Processing struct {
		MaxItemsPerBatch int           `yaml:"max_items_per_batch"`
		SkipExisting     bool          `yaml:"skip_existing"`
		ItemDelay        time.Duration `yaml:"item_delay"`
		FetchTimeout     time.Duration `yaml:"fetch_timeout"`
		Schedule         string        `yaml:"schedule"`
		PIDFile          string        `yaml:"pid_file"`
	} `yaml:"processing"`

	Ledger struct {
		Path string `yaml:"path"`
	} `yaml:"ledger"`

	Notify struct {
		Telegram struct {
			Token  string `yaml:"token"`
			ChatID int64  `yaml:"chat_id"`
		} `yaml:"telegram"`
	} `yaml:"notify"`

	Server struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"`
	} `yaml:"server"`
}

// Fields maps logical row attributes to source column names.
type Fields struct {
	ConversationID string `yaml:"conversation_id"`
	Timestamp      string `yaml:"timestamp"`
	Ordinal        string `yaml:"ordinal"`
	TurnID         string `yaml:"turn_id"`
	EventType      string `yaml:"event_type"`
	Role           string `yaml:"role"`
	Content        string `yaml:"content"`
	ToolName       string `yaml:"tool_name"`
	ToolArguments  string `yaml:"tool_arguments"`
	ToolResult     string `yaml:"tool_result"`
	Model          string `yaml:"model"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Worklist.Backend = "sheets"
	cfg.Worklist.Worksheet = "Sheet1"
	cfg.Worklist.SourceColumn = "Link to CSV"
	cfg.Worklist.DestinationColumn = "Link to JSON"

	cfg.Storage.Backend = "drive"
	cfg.Storage.EnableUpload = true
	cfg.Storage.FolderName = "logscribe-output"
	cfg.Storage.LocalDir = "blobs"

	cfg.Google.Auth = "service_account"
	cfg.Google.CredentialsPath = "credentials.json"
	cfg.Google.TokenPath = "token.json"

	cfg.Fields = Fields{
		ConversationID: "conversation_id",
		Timestamp:      "timestamp",
		Ordinal:        "turn_id",
		TurnID:         "turn_id",
		EventType:      "event_type",
		Role:           "role",
		Content:        "content",
		ToolName:       "tool_name",
		ToolArguments:  "original_args",
		ToolResult:     "execution_result",
		Model:          "model_used",
	}

	cfg.Transcript.Mode = "flat"

	cfg.Output.MessagesField = "messages"
	cfg.Output.MetadataField = "metadata"
	cfg.Output.MetadataFields = []string{
		MetaTotalMessages,
		MetaConversationStart,
		MetaConversationEnd,
		MetaUniqueModels,
		MetaProcessingTimestamp,
	}
	cfg.Output.TokenizerModel = "gpt-4"
	cfg.Output.PrettyPrint = true

	cfg.Naming.Template = "{conversation_id}_{timestamp}"
	cfg.Naming.TimestampFormat = "%Y%m%d_%H%M%S"
	cfg.Naming.Extension = ".json"

	cfg.ErrorHandling.ContinueOnError = true
	cfg.ErrorHandling.MaxRetries = 3
	cfg.ErrorHandling.RetryDelay = 2 * time.Second
	cfg.ErrorHandling.MaxRetryDelay = 30 * time.Second

	cfg.Processing.ItemDelay = time.Second
	cfg.Processing.FetchTimeout = 30 * time.Second
	cfg.Processing.Schedule = "@every 5m"
	cfg.Processing.PIDFile = "logscribe.pid"

	cfg.Ledger.Path = "logscribe.db"

	cfg.Server.Listen = "127.0.0.1:8787"
	return cfg
}

// Read decodes the YAML document at path on top of the defaults and applies
// environment overrides without validating. A missing file yields the defaults.
func Read(path string) (*Config, error) {
	cfg, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// Load reads the YAML document at path on top of the defaults, applies
// environment overrides and validates the result. A missing file is created
// with the defaults and then validated like any other document.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
		}
	case os.IsNotExist(err):
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeStrict(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func applyEnv(cfg *Config) {
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" {
		cfg.Google.CredentialsPath = creds
	}
	if token := os.Getenv("LOGSCRIBE_TELEGRAM_TOKEN"); token != "" {
		cfg.Notify.Telegram.Token = token
	}
}

// Save writes cfg as YAML using an atomic temp-file rename.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// Validate checks the document for values the pipeline cannot work with.
// All problems are reported together.
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateConversion checks only the sections used by offline conversion;
// worklist, storage and Google settings are ignored.
func (c *Config) ValidateConversion() error {
	return c.validate(false)
}

func (c *Config) validate(backends bool) error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		bad("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		bad("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	if backends {
		switch c.Worklist.Backend {
		case "sheets":
			if c.Worklist.SpreadsheetURL == "" {
				bad("worklist.spreadsheet_url is required for the sheets backend")
			}
			if c.Worklist.Worksheet == "" {
				bad("worklist.worksheet is required for the sheets backend")
			}
		case "csv":
			if c.Worklist.Path == "" {
				bad("worklist.path is required for the csv backend")
			}
		default:
			bad("worklist.backend must be sheets or csv (got %q)", c.Worklist.Backend)
		}
		if c.Worklist.SourceColumn == "" {
			bad("worklist.source_column is required")
		}
		if c.Worklist.DestinationColumn == "" {
			bad("worklist.destination_column is required")
		}

		switch c.Storage.Backend {
		case "drive":
			if c.Storage.FolderName == "" {
				bad("storage.folder_name is required for the drive backend")
			}
		case "local":
			if c.Storage.LocalDir == "" {
				bad("storage.local_dir is required for the local backend")
			}
		default:
			bad("storage.backend must be drive or local (got %q)", c.Storage.Backend)
		}

		if c.Worklist.Backend == "sheets" || c.Storage.Backend == "drive" {
			switch c.Google.Auth {
			case "service_account", "oauth":
			default:
				bad("google.auth must be service_account or oauth (got %q)", c.Google.Auth)
			}
			if c.Google.CredentialsPath == "" {
				bad("google.credentials_path is required for Google backends")
			}
		}
	}

	switch c.Transcript.Mode {
	case "flat", "turn":
	default:
		bad("transcript.mode must be flat or turn (got %q)", c.Transcript.Mode)
	}

	if c.Output.MessagesField == "" {
		bad("output.messages_field is required")
	}
	if c.Output.IncludeMetadata && c.Output.MetadataField == "" {
		bad("output.metadata_field is required when include_metadata is set")
	}
	if c.Output.IncludeMetadata && c.Output.MetadataField == c.Output.MessagesField {
		bad("output.metadata_field must differ from output.messages_field")
	}
	for _, f := range c.Output.MetadataFields {
		if !knownMetadata[f] {
			bad("output.metadata_fields: unknown field %q", f)
		}
	}

	if c.Naming.Template == "" {
		bad("naming.template is required")
	}
	for _, m := range PlaceholderPattern.FindAllStringSubmatch(c.Naming.Template, -1) {
		if !knownPlaceholders[m[1]] {
			bad("naming.template: unknown placeholder {%s}", m[1])
		}
	}

	if c.ErrorHandling.MaxRetries < 1 {
		bad("error_handling.max_retries must be at least 1 (got %d)", c.ErrorHandling.MaxRetries)
	}
	if c.ErrorHandling.RetryDelay < 0 {
		bad("error_handling.retry_delay must not be negative")
	}
	if c.Processing.MaxItemsPerBatch < 0 {
		bad("processing.max_items_per_batch must not be negative")
	}
	if c.Processing.ItemDelay < 0 {
		bad("processing.item_delay must not be negative")
	}
	if c.Server.Enabled && c.Server.Listen == "" {
		bad("server.listen is required when the server is enabled")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// WantsMetadata reports whether name is among the configured metadata fields.
func (c *Config) WantsMetadata(name string) bool {
	for _, f := range c.Output.MetadataFields {
		if f == name {
			return true
		}
	}
	return false
}
