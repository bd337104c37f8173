// internal/notify/telegram.go
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/logscribe/internal/types"
)

const maxTelegramMessage = 4096

// Telegram posts batch summaries to one chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// TelegramOption configures a Telegram notifier.
type TelegramOption func(*telegramConfig)

type telegramConfig struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// WithEndpoint overrides the Bot API endpoint format (token, method).
func WithEndpoint(endpoint string) TelegramOption {
	return func(c *telegramConfig) { c.endpoint = endpoint }
}

// WithHTTPClient sets the HTTP client used for Bot API calls.
func WithHTTPClient(client *http.Client) TelegramOption {
	return func(c *telegramConfig) { c.client = client }
}

// WithLogger sets the notifier's logger.
func WithLogger(l *slog.Logger) TelegramOption {
	return func(c *telegramConfig) { c.logger = l }
}

// NewTelegram creates a notifier for chatID. The token is verified with the
// Bot API before returning.
func NewTelegram(token string, chatID int64, opts ...TelegramOption) (*Telegram, error) {
	cfg := &telegramConfig{
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{},
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(cfg)
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, cfg.endpoint, cfg.client)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, logger: cfg.logger}, nil
}

// Notify sends the formatted summary. Empty batches are not reported.
func (t *Telegram) Notify(ctx context.Context, summary *types.BatchSummary) error {
	if summary.Total == 0 {
		return nil
	}
	for _, part := range splitMessage(FormatSummary(summary)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, part)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	t.logger.Debug("sent batch summary", "chat_id", t.chatID, "batch", summary.ID.Short())
	return nil
}

// splitMessage cuts text into parts of at most maxTelegramMessage bytes,
// preferring line breaks and never splitting a UTF-8 sequence.
func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > maxTelegramMessage {
		end := maxTelegramMessage
		for end > 0 && !utf8.RuneStart(text[end]) {
			end--
		}
		if nl := strings.LastIndexByte(text[:end], '\n'); nl > 0 {
			end = nl + 1
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

var _ types.Notifier = (*Telegram)(nil)
