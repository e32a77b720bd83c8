package config

import "time"

const (
	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Single-use invite links stop working after this long even if unused
	InviteLinkTTL = 24 * time.Hour

	// Per-call timeout for Bot API requests made outside an update handler
	ExternalCallTimeout = 10 * time.Second

	// Upper bound for one reconciliation sweep
	SweepTimeout = 4 * time.Minute

	// Webhook request body limit
	MaxWebhookBody = 4 << 10

	// Orders shown by /status
	StatusOrdersLimit = 10

	// Per-user bot update rate: one token every BotRateEvery, bursts of BotRateBurst
	BotRateEvery = 2 * time.Second
	BotRateBurst = 5

	// Currency of the UPI catalog
	Currency = "INR"
)
