package telegram

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/set-night/paygate/internal/config"
	"github.com/set-night/paygate/internal/domain"
	"github.com/set-night/paygate/internal/service"
)

type LogType string

const (
	LogTypeError   LogType = "error"
	LogTypePayment LogType = "payment"
	LogTypeExpiry  LogType = "expiry"
)

const logTimeLayout = "2006-01-02 15:04:05"

var _ service.EventLog = (*EventLogger)(nil)

// EventLogger mirrors business events into topics of an admin forum chat.
// It is a no-op when LOG_TELEGRAM_CHAT_ID is unset.
type EventLogger struct {
	bot *bot.Bot
	cfg *config.Config
	lg  *zap.Logger
}

func NewEventLogger(b *bot.Bot, cfg *config.Config, lg *zap.Logger) *EventLogger {
	return &EventLogger{bot: b, cfg: cfg, lg: lg.Named("tglog")}
}

func (l *EventLogger) Log(logType LogType, message string) {
	if l.cfg.LogTelegramChatID == 0 {
		return
	}
	topicID := l.topicID(logType)
	if topicID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ExternalCallTimeout)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            Truncate(message, config.MaxTelegramMessageLen, "\n\n... (truncated)"),
		ParseMode:       models.ParseModeHTML,
		MessageThreadID: topicID,
	})
	if err != nil {
		l.lg.Error("Failed to send telegram log", zap.String("type", string(logType)), zap.Error(err))
	}
}

func (l *EventLogger) LogError(err error, where string) {
	l.Log(LogTypeError, fmt.Sprintf("❌ <b>Error</b>\n\n<b>Context:</b> %s\n<b>Error:</b> <code>%s</code>\n<b>Time:</b> %s",
		html.EscapeString(where), html.EscapeString(err.Error()), time.Now().Format(logTimeLayout)))
}

func (l *EventLogger) LogPayment(o *domain.Order) {
	l.Log(LogTypePayment, fmt.Sprintf("💰 <b>Payment</b>\n\n<b>Order:</b> <code>%s</code>\n<b>User:</b> <code>%d</code>\n<b>Plan:</b> %s\n<b>Amount:</b> %s %s\n<b>Until:</b> %s",
		o.ID, o.SubscriberID, html.EscapeString(o.Plan.Name), o.Amount.StringFixed(2), config.Currency, formatTime(o.ExpiryAt)))
}

func (l *EventLogger) LogAccessFailure(o *domain.Order, err error) {
	l.Log(LogTypeError, fmt.Sprintf("⚠️ <b>Invite failed</b>\n\n<b>Order:</b> <code>%s</code>\n<b>User:</b> <code>%d</code>\n<b>Error:</b> <code>%s</code>\nManual follow-up required.",
		o.ID, o.SubscriberID, html.EscapeString(err.Error())))
}

func (l *EventLogger) LogExpiry(o *domain.Order, revoked bool) {
	status := "removed"
	if !revoked {
		status = "NOT removed, check bot rights"
	}
	l.Log(LogTypeExpiry, fmt.Sprintf("⌛ <b>Expired</b>\n\n<b>Order:</b> <code>%s</code>\n<b>User:</b> <code>%d</code>\n<b>Access:</b> %s",
		o.ID, o.SubscriberID, status))
}

func (l *EventLogger) topicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypePayment:
		return l.cfg.LogTopicPayment
	case LogTypeExpiry:
		return l.cfg.LogTopicExpiry
	default:
		return 0
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(logTimeLayout)
}
