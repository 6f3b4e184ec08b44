package dispatch

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// telegramSender wraps one tenant's connected Telegram bot client. Unlike
// the single-tenant listener this is adapted from, a fresh bot.Bot is
// constructed per access token rather than once at process start, since
// every tenant brings its own bot.
type telegramSender struct {
	b *bot.Bot
}

// NewTelegramSenderFactory returns a SenderFactory that connects a
// dedicated Telegram bot client for each tenant's token.
func NewTelegramSenderFactory() SenderFactory {
	return func(creds Credentials) (Sender, error) {
		b, err := bot.New(creds.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("connect telegram bot: %w", err)
		}
		return &telegramSender{b: b}, nil
	}
}

// SendMessage implements Sender.
func (t *telegramSender) SendMessage(ctx context.Context, to string, payload Payload) error {
	chatID, err := parseTelegramChatID(to)
	if err != nil {
		return err
	}

	switch payload.Kind {
	case PayloadImage:
		_, err := t.b.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:  chatID,
			Photo:   &models.InputFileString{Data: payload.ImageURL},
			Caption: payload.Text,
		})
		return err
	default:
		_, err := t.b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   payload.Text,
		})
		return err
	}
}

func parseTelegramChatID(to string) (int64, error) {
	var chatID int64
	if _, err := fmt.Sscanf(to, "%d", &chatID); err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", to, err)
	}
	return chatID, nil
}
