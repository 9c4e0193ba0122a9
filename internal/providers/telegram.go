package providers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/google/uuid"

	"flight-alert-service/internal/config"
	"flight-alert-service/internal/logging"
)

// OpsNotifier posts exhausted-delivery failures to the operator Telegram
// channel. This is an operator surface, not a recipient delivery channel.
type OpsNotifier struct {
	bot    *bot.Bot
	chatID int64
	logger *logging.Logger
}

// NewOpsNotifier builds the notifier, or returns an error when the bot token
// or chat id is missing.
func NewOpsNotifier(cfg config.Config, logger *logging.Logger) (*OpsNotifier, error) {
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("missing TELEGRAM_BOT_TOKEN")
	}
	if cfg.Telegram.OpsChatID == 0 {
		return nil, fmt.Errorf("missing TELEGRAM_OPS_CHAT_ID")
	}
	b, err := bot.New(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return &OpsNotifier{bot: b, chatID: cfg.Telegram.OpsChatID, logger: logger}, nil
}

// NotifyFailure posts one failure message. Best effort: a failed post is
// logged, never retried, and never fails the caller.
func (n *OpsNotifier) NotifyFailure(ctx context.Context, alertID uuid.UUID, reason string) {
	text := fmt.Sprintf(
		"Notification delivery exhausted retries.\nAlert: %s\nReason: %s",
		alertID, reason,
	)
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   text,
	})
	if err != nil {
		n.logger.Errorf("Failed to post delivery failure to ops channel: %v", err)
	}
}
