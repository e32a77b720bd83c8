package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"

	"github.com/set-night/paygate/internal/config"
	"github.com/set-night/paygate/internal/domain"
)

// Orders is the part of the order service the bot commands use.
type Orders interface {
	Create(ctx context.Context, subscriberID int64, planID int) (*domain.Order, error)
	ListBySubscriber(ctx context.Context, subscriberID int64) ([]domain.Order, error)
	CountByState(ctx context.Context) (map[domain.OrderState]int64, error)
}

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot    *bot.Bot
	cfg    *config.Config
	orders Orders
	lg     *zap.Logger
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot    *bot.Bot
	Cfg    *config.Config
	Orders Orders
	Logger *zap.Logger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:    deps.Bot,
		cfg:    deps.Cfg,
		orders: deps.Orders,
		lg:     deps.Logger.Named("handler"),
	}
}
