package notificator

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/core-coin/bursa/internal/models"
	"github.com/core-coin/bursa/pkg/logger"
)

// TelegramNotificator posts connection events to one chat and answers
// /status with the current view.
type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot
	chatID string
	status func() models.View
}

func NewTelegramNotificator(ctx context.Context, logger *logger.Logger, token, chatID string, status func() models.View) (*TelegramNotificator, error) {
	provider := &TelegramNotificator{
		logger: logger,
		chatID: chatID,
		status: status,
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(provider.handler),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	go b.Start(ctx)
	provider.bot = b

	return provider, nil
}

func (t *TelegramNotificator) SendNotification(notification *models.Notification) {
	t.send(t.chatID, notification.String())
}

func (t *TelegramNotificator) send(chatID, message string) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   message,
	}
	if _, err := t.bot.SendMessage(context.Background(), params); err != nil {
		t.logger.Error("Failed to send notification: ", err)
	}
}

func (t *TelegramNotificator) handler(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	if update.Message == nil {
		return
	}
	chatID := fmt.Sprint(update.Message.Chat.ID)
	t.logger.Debug("Telegram update: ", chatID, " ", update.Message.Text)
	if chatID != t.chatID {
		return
	}
	if strings.HasPrefix(update.Message.Text, "/status") {
		t.send(chatID, FormatView(t.status()))
	}
}

// FormatView renders a view as a chat message.
func FormatView(v models.View) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", v.Connector, v.Status)
	if v.Account != "" {
		fmt.Fprintf(&sb, "\naccount: %s\nchain: %d", v.Account, v.ChainID)
		if v.Network != "" {
			fmt.Fprintf(&sb, " (%s)", v.Network)
		}
	}
	if v.Balance != "" {
		fmt.Fprintf(&sb, "\nbalance: %s", v.Balance)
	}
	if v.Error != "" {
		fmt.Fprintf(&sb, "\nerror: %s", v.Error)
	}
	return sb.String()
}
