package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/rs/zerolog"

	"propchat/internal/models"
)

// ErrNoTelegramChat is returned when the recipient never linked Telegram.
var ErrNoTelegramChat = errors.New("notify: recipient has no telegram chat")

// sender is the subset of *tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends new-message notices through a Telegram bot.
type TelegramNotifier struct {
	bot sender
	log zerolog.Logger
}

var _ Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier authorizes the bot token against the Telegram API.
func NewTelegramNotifier(token string, debug bool, log zerolog.Logger) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram API token is not set")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot API: %w", err)
	}
	api.Debug = debug
	log.Info().Str("bot", api.Self.UserName).Msg("telegram notifier authorized")
	return &TelegramNotifier{bot: api, log: log}, nil
}

func (n *TelegramNotifier) NotifyNewMessage(ctx context.Context, recipient, from models.User, chat models.Chat, msg models.ChatMessage) error {
	if !recipient.TelegramChatID.Valid || recipient.TelegramChatID.Int64 == 0 {
		return ErrNoTelegramChat
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := tgbotapi.NewMessage(recipient.TelegramChatID.Int64, FormatNotice(from, chat, msg))
	if _, err := n.bot.Send(out); err != nil {
		n.log.Error().Err(err).Int64("user_id", recipient.ID).Int64("chat_id", chat.ID).Msg("telegram notification failed")
		return fmt.Errorf("send telegram notification: %w", err)
	}
	n.log.Debug().Int64("user_id", recipient.ID).Int64("chat_id", chat.ID).Msg("telegram notification sent")
	return nil
}
