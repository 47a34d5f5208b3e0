package notify

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier is the sink for near-expiry warnings. Implementations must be safe
// for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, sessionID int64, message string) error
}

type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, sessionID int64, message string) error {
	n.log.Warn("session expiry warning", "session_id", sessionID, "msg", message)
	return nil
}

// TelegramNotifier posts warnings to the operator chat so reception can reach
// the customer before the court time runs out.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(api *tgbotapi.BotAPI, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{api: api, chatID: chatID}
}

func (n *TelegramNotifier) Notify(_ context.Context, sessionID int64, message string) error {
	msg := tgbotapi.NewMessage(n.chatID, message)
	_, err := n.api.Send(msg)
	return err
}
