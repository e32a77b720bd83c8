package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per user.
type Limiter struct {
	mu      sync.Mutex
	every   time.Duration
	burst   int
	buckets map[int64]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLimiter(every time.Duration, burst int) *Limiter {
	return &Limiter{every: every, burst: burst, buckets: make(map[int64]*bucket)}
}

func (l *Limiter) Allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bk, ok := l.buckets[userID]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.buckets[userID] = bk
	}
	bk.lastSeen = now
	return bk.limiter.AllowN(now, 1)
}

// Prune drops buckets idle for longer than idle.
func (l *Limiter) Prune(now time.Time, idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, bk := range l.buckets {
		if now.Sub(bk.lastSeen) > idle {
			delete(l.buckets, id)
		}
	}
}

// RateLimit drops updates from users that exceed the limiter. Callback queries get a
// short alert so the button does not spin forever.
func RateLimit(l *Limiter, lg *zap.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var userID int64
			switch {
			case update.Message != nil && update.Message.From != nil:
				userID = update.Message.From.ID
			case update.CallbackQuery != nil:
				userID = update.CallbackQuery.From.ID
			default:
				next(ctx, b, update)
				return
			}

			if l.Allow(userID, time.Now()) {
				next(ctx, b, update)
				return
			}

			lg.Debug("Rate limited", zap.Int64("user_id", userID))
			if update.CallbackQuery != nil {
				_, _ = b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
					CallbackQueryID: update.CallbackQuery.ID,
					Text:            "⏳ Too many requests. Please wait a moment.",
				})
			}
		}
	}
}
