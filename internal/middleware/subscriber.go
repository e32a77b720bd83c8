package middleware

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type ctxKey string

const SubscriberKey ctxKey = "subscriber"

// Subscriber is the Telegram user behind an update.
type Subscriber struct {
	ID        int64
	FirstName string
	Username  string
	IsAdmin   bool
}

// GetSubscriber extracts the subscriber from context.
func GetSubscriber(ctx context.Context) *Subscriber {
	s, ok := ctx.Value(SubscriberKey).(*Subscriber)
	if !ok {
		return nil
	}
	return s
}

func WithSubscriber(ctx context.Context, s *Subscriber) context.Context {
	return context.WithValue(ctx, SubscriberKey, s)
}

// SubscriberLoader puts the sender of private-chat updates into the context.
// Updates from groups and channels pass through without a subscriber.
func SubscriberLoader(cfg interface{ IsAdmin(int64) bool }) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var from *models.User
			var chatType models.ChatType

			if update.Message != nil {
				from = update.Message.From
				chatType = update.Message.Chat.Type
			} else if update.CallbackQuery != nil {
				from = &update.CallbackQuery.From
				if msg := update.CallbackQuery.Message.Message; msg != nil {
					chatType = msg.Chat.Type
				}
			}

			if from != nil && !from.IsBot && chatType == models.ChatTypePrivate {
				ctx = WithSubscriber(ctx, &Subscriber{
					ID:        from.ID,
					FirstName: from.FirstName,
					Username:  from.Username,
					IsAdmin:   cfg.IsAdmin(from.ID),
				})
			}

			next(ctx, b, update)
		}
	}
}
