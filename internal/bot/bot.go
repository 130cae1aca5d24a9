// Package bot wires the chat runtime into a Telegram event loop: it owns the
// telebot instance, the middleware chain, and the update registrations that
// funnel every incoming update through the navigation router.
package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/botweaver/botweaver/internal/dedupe"
	errors "github.com/botweaver/botweaver/internal/errors"
	"github.com/botweaver/botweaver/internal/ratelimit"
	"github.com/botweaver/botweaver/internal/router"
	"github.com/botweaver/botweaver/internal/session"
	"github.com/botweaver/botweaver/pkg/config"
)

// Bot wraps telebot.Bot with the application dependencies required for
// handling updates.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	cfg        config.Config
	router     *router.Router
	errHandler *errors.Handler
}

// Deps carries the optional middleware collaborators. Nil fields disable the
// corresponding middleware.
type Deps struct {
	Limiter ratelimit.Limiter
	Deduper *dedupe.Deduper
	Queue   *session.UserQueue
}

// New builds a telegram bot instance configured according to the application
// settings.
func New(cfg config.Config, log *slog.Logger, rt *router.Router, deps Deps) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen: cfg.Bot.WebhookPort,
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	b := &Bot{
		telebot:    tb,
		log:        log,
		cfg:        cfg,
		router:     rt,
		errHandler: errors.NewHandler(log, cfg.Sentry.Enabled),
	}

	b.installMiddleware(deps)
	b.registerHandlers()

	return b, nil
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	if b.log != nil {
		b.log.Info("stopping telegram bot...")
	}

	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such
// as health checks and broadcast delivery.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) installMiddleware(deps Deps) {
	b.telebot.Use(RecoveryMiddleware(b.log, b.errHandler))

	if deps.Deduper != nil {
		b.telebot.Use(DedupeMiddleware(deps.Deduper, b.log))
	}

	if deps.Limiter != nil && b.cfg.RateLimit.Enabled {
		b.telebot.Use(RateLimitMiddleware(deps.Limiter, b.cfg.RateLimit.Limit, b.cfg.RateLimit.Window, b.log))
	}

	b.telebot.Use(ErrorHandlingMiddleware(b.errHandler))
	b.telebot.Use(LoggingMiddleware(b.log))

	if deps.Queue != nil {
		b.telebot.Use(SerializeMiddleware(deps.Queue))
	}
}

// registerHandlers funnels every update kind the runtime understands into
// the navigation router; commands, reply-button text, callbacks, and media
// all dispatch from there.
func (b *Bot) registerHandlers() {
	if b.telebot == nil || b.router == nil {
		return
	}

	route := b.router.Route

	b.telebot.Handle(telebot.OnText, route)
	b.telebot.Handle(telebot.OnCallback, route)
	b.telebot.Handle(telebot.OnPhoto, route)
	b.telebot.Handle(telebot.OnVideo, route)
	b.telebot.Handle(telebot.OnAudio, route)
	b.telebot.Handle(telebot.OnDocument, route)
}
