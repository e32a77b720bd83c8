package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Gated channel the subscription grants access to
	ChannelID int64 `env:"CHANNEL_ID,required"`

	// Payment: UPI deep link + confirmation webhook
	WebhookSecret string `env:"WEBHOOK_SECRET,required,notEmpty"`
	MerchantUPI   string `env:"MERCHANT_UPI,required"`
	PayeeName     string `env:"PAYEE_NAME" envDefault:"PremiumShop"`
	PublicURL     string `env:"PUBLIC_URL" envDefault:"http://localhost:5611"`

	// Server
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"0.0.0.0:5611"`

	// Background jobs
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5m"`
	BackfillInterval  time.Duration `env:"BACKFILL_INTERVAL" envDefault:"1m"`
	NotifyStuckAfter  time.Duration `env:"NOTIFY_STUCK_AFTER" envDefault:"2m"`
	NotifyWorkers     int           `env:"NOTIFY_WORKERS" envDefault:"4"`
	NotifyQueueSize   int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Telegram logging
	LogTelegramChatID int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int   `env:"LOG_TOPIC_ERROR"`
	LogTopicPayment   int   `env:"LOG_TOPIC_PAYMENT"`
	LogTopicExpiry    int   `env:"LOG_TOPIC_EXPIRY"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	if cfg.ReconcileInterval <= 0 {
		return nil, errors.Errorf("RECONCILE_INTERVAL must be positive, got %s", cfg.ReconcileInterval)
	}
	if cfg.NotifyWorkers <= 0 {
		cfg.NotifyWorkers = 1
	}
	return cfg, nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// PayPageURL returns the public payment page for an order.
func (c *Config) PayPageURL(orderID string) string {
	return c.PublicURL + "/pay/" + orderID
}
