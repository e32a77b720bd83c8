package handler

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/set-night/paygate/internal/domain"
	"github.com/set-night/paygate/internal/middleware"
)

func (h *Handler) handleStat(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	sub := middleware.GetSubscriber(ctx)
	if sub == nil || !sub.IsAdmin {
		return
	}

	counts, err := h.orders.CountByState(ctx)
	if err != nil {
		h.lg.Error("Count orders", zap.Error(err))
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	text := fmt.Sprintf(
		"📊 *Orders*\n\n"+
			"Total: %d\n"+
			"Pending: %d\n"+
			"Paid, not notified: %d\n"+
			"Active: %d\n"+
			"Expired: %d",
		total,
		counts[domain.OrderStatePending],
		counts[domain.OrderStatePaid],
		counts[domain.OrderStateNotified],
		counts[domain.OrderStateExpired],
	)

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      text,
		ParseMode: models.ParseModeMarkdownV1,
	})
}
