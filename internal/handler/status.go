package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/set-night/paygate/internal/domain"
	"github.com/set-night/paygate/internal/middleware"
)

var stateLabels = map[domain.OrderState]string{
	domain.OrderStatePending:  "⏳ awaiting payment",
	domain.OrderStatePaid:     "✅ paid",
	domain.OrderStateNotified: "✅ active",
	domain.OrderStateExpired:  "⌛ expired",
}

func (h *Handler) handleStatus(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	sub := middleware.GetSubscriber(ctx)
	if sub == nil {
		return
	}

	orders, err := h.orders.ListBySubscriber(ctx, sub.ID)
	if err != nil {
		h.lg.Error("List orders", zap.Int64("subscriber_id", sub.ID), zap.Error(err))
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: sub.ID, Text: "❌ Could not load your orders. Please try again later."})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: sub.ID, Text: statusText(orders)})
}

func statusText(orders []domain.Order) string {
	if len(orders) == 0 {
		return "You have no orders yet. Send /start to choose a plan."
	}

	var sb strings.Builder
	sb.WriteString("Your orders:\n")
	for _, o := range orders {
		fmt.Fprintf(&sb, "\n%s\n%s, %s INR\n%s", o.ID, o.Plan.Name, o.Amount.StringFixed(2), stateLabels[o.State])
		if o.ExpiryAt != nil {
			verb := "until"
			if o.State == domain.OrderStateExpired {
				verb = "ended"
			}
			fmt.Fprintf(&sb, " %s %s", verb, o.ExpiryAt.UTC().Format("2006-01-02 15:04 UTC"))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
