package telegram

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-telegram/bot"

	"github.com/set-night/paygate/internal/config"
	"github.com/set-night/paygate/internal/service"
)

var _ service.Messenger = (*Sender)(nil)

// Sender delivers plain-text messages to subscribers' private chats.
type Sender struct {
	bot *bot.Bot
}

func NewSender(b *bot.Bot) *Sender {
	return &Sender{bot: b}
}

// SendMessage sends text, split into several messages if it exceeds the Telegram limit.
// Link previews stay enabled so invite links render as a join card.
func (s *Sender) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, part := range SplitMessage(text, config.MaxTelegramMessageLen) {
		if _, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   part,
		}); err != nil {
			return errors.Wrap(err, "send message")
		}
	}
	return nil
}

// SplitMessage splits text into chunks of at most maxLen runes, preferring to cut
// at a newline in the second half of a chunk.
func SplitMessage(text string, maxLen int) []string {
	var parts []string
	for utf8.RuneCountInString(text) > maxLen {
		runes := []rune(text)
		splitAt := maxLen
		if nl := strings.LastIndex(string(runes[:maxLen]), "\n"); nl >= 0 {
			if n := utf8.RuneCountInString(string(runes[:maxLen])[:nl]); n > maxLen/2 {
				splitAt = n + 1
			}
		}
		parts = append(parts, string(runes[:splitAt]))
		text = string(runes[splitAt:])
	}
	return append(parts, text)
}

// Truncate cuts text to maxLen runes, marking the cut with suffix.
func Truncate(text string, maxLen int, suffix string) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxLen-utf8.RuneCountInString(suffix)]) + suffix
}
