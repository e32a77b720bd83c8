package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/set-night/paygate/internal/domain"
	"github.com/set-night/paygate/internal/middleware"
	"github.com/set-night/paygate/internal/telegram"
)

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	if middleware.GetSubscriber(ctx) == nil {
		return
	}

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      update.Message.Chat.ID,
		Text:        "Welcome! Choose a plan:",
		ReplyMarkup: telegram.PlansKeyboard(domain.Catalog),
	})
	if err != nil {
		h.lg.Warn("Send plans", zap.Error(err))
	}
}

func (h *Handler) handleBuy(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	defer b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})

	sub := middleware.GetSubscriber(ctx)
	if sub == nil {
		return
	}

	planID, err := strconv.Atoi(strings.TrimPrefix(cq.Data, telegram.CallbackBuyPrefix))
	if err != nil {
		return
	}

	o, err := h.orders.Create(ctx, sub.ID, planID)
	if err != nil {
		text := "❌ Could not create the order. Please try again later."
		if errors.Is(err, domain.ErrPlanNotFound) {
			text = "❌ This plan is no longer available. Send /start to see current plans."
		} else {
			h.lg.Error("Create order", zap.Int64("subscriber_id", sub.ID), zap.Int("plan_id", planID), zap.Error(err))
		}
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: sub.ID, Text: text})
		return
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      sub.ID,
		Text:        paymentDetailsText(o),
		ReplyMarkup: telegram.InlineKeyboard(telegram.ButtonRow(telegram.URLButton("Pay Now", o.PayReference))),
	})
	if err != nil {
		h.lg.Warn("Send payment details", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func paymentDetailsText(o *domain.Order) string {
	return fmt.Sprintf("Payment details:\nPlan: %s\nAmount: ₹%s\nOrder ID: %s\n\n"+
		"Pay with any UPI app. The join link arrives here once the payment is confirmed.",
		o.Plan.Name, o.Amount.StringFixed(2), o.ID)
}
