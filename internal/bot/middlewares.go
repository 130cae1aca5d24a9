package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/botweaver/botweaver/internal/dedupe"
	errors "github.com/botweaver/botweaver/internal/errors"
	"github.com/botweaver/botweaver/internal/ratelimit"
	"github.com/botweaver/botweaver/internal/session"
	"github.com/botweaver/botweaver/pkg/metrics"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler,
// and notifies the user instead of crashing the update loop.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler) telebot.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					userMsg := "⚠️ Something went wrong. Please try again later."
					if errHandler != nil {
						appErr := errors.NewHandlerException(fmt.Errorf("panic recovered: %v", r))
						if msg, _ := errHandler.Handle(context.Background(), appErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for
// handler failures. Errors never propagate back into telebot.
func ErrorHandlingMiddleware(errHandler *errors.Handler) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := "Something went wrong. Please try again later."
			if errHandler != nil {
				if msg, _ := errHandler.Handle(context.Background(), err); msg != "" {
					userMsg = msg
				}
			}

			if c != nil {
				_ = c.Send(userMsg)
			}

			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates and feeds the
// update counter.
func LoggingMiddleware(log *slog.Logger) telebot.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			start := time.Now()
			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			kind := "text"
			action := ""
			if c != nil {
				if cb := c.Callback(); cb != nil {
					kind = "callback"
					action = cb.Data
				} else {
					action = c.Text()
				}
			}

			err := next(c)

			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			metrics.RecordUpdate(kind, outcome)

			log.Info("handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// RateLimitMiddleware enforces a per-user sliding window over incoming updates.
func RateLimitMiddleware(limiter ratelimit.Limiter, limit int, window time.Duration, log *slog.Logger) telebot.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if limiter == nil || c == nil || c.Sender() == nil {
				return next(c)
			}

			userID := c.Sender().ID
			key := fmt.Sprintf("user:%d", userID)

			result, err := limiter.Check(context.Background(), key, limit, window)
			if result != nil && !result.Allowed {
				log.Warn("rate limit exceeded", slog.Int64("user_id", userID))
				return c.Send("You're sending messages too fast. Please slow down.")
			}
			if err != nil {
				// Limiter backend failure fails open.
				log.Warn("rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
			}

			return next(c)
		}
	}
}

// DedupeMiddleware drops callback updates that were already processed. Only
// callbacks carry a stable update identity worth claiming; plain messages
// pass through untouched.
func DedupeMiddleware(deduper *dedupe.Deduper, log *slog.Logger) telebot.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if deduper == nil || c == nil {
				return next(c)
			}

			cb := c.Callback()
			if cb == nil || cb.ID == "" {
				return next(c)
			}

			if !deduper.Claim(context.Background(), cb.ID) {
				log.Debug("duplicate callback dropped", slog.String("callback_id", cb.ID))
				return c.Respond()
			}

			return next(c)
		}
	}
}

// SerializeMiddleware runs each user's updates one at a time in arrival
// order, so concurrent taps cannot interleave session reads and writes.
func SerializeMiddleware(queue *session.UserQueue) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if queue == nil || c == nil || c.Sender() == nil {
				return next(c)
			}

			var err error
			queue.Do(c.Sender().ID, func() {
				err = next(c)
			})
			return err
		}
	}
}

// WatchSessions periodically publishes active-session counts as gauges until
// the context is cancelled.
func WatchSessions(ctx context.Context, store *session.MemoryStore, interval time.Duration) {
	if store == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inputs, selects := store.Counts()
			metrics.SetActiveSessions(inputs, selects)
		}
	}
}
