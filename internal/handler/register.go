package handler

import (
	"github.com/go-telegram/bot"

	"github.com/set-night/paygate/internal/telegram"
)

// Register wires all commands and callbacks into the bot.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/plans", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypePrefix, h.handleStatus)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/stat", bot.MatchTypeExact, h.handleStat)

	// Plan purchase
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackBuyPrefix, bot.MatchTypePrefix, h.handleBuy)
}
