package middleware

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Recover returns middleware that recovers from panics.
func Recover(lg *zap.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				if r := recover(); r != nil {
					lg.Error("Panic recovered in handler",
						zap.Any("panic", r),
						zap.Int64("update_id", update.ID),
						zap.Stack("stack"),
					)
				}
			}()
			next(ctx, b, update)
		}
	}
}
