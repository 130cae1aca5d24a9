package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"

	"github.com/botweaver/botweaver/internal/bot"
	"github.com/botweaver/botweaver/internal/broadcast"
	"github.com/botweaver/botweaver/internal/database"
	"github.com/botweaver/botweaver/internal/dedupe"
	"github.com/botweaver/botweaver/internal/engine"
	"github.com/botweaver/botweaver/internal/graph"
	"github.com/botweaver/botweaver/internal/health"
	"github.com/botweaver/botweaver/internal/input"
	"github.com/botweaver/botweaver/internal/ledger"
	"github.com/botweaver/botweaver/internal/multiselect"
	"github.com/botweaver/botweaver/internal/ratelimit"
	"github.com/botweaver/botweaver/internal/router"
	"github.com/botweaver/botweaver/internal/session"
	"github.com/botweaver/botweaver/internal/vars"
	"github.com/botweaver/botweaver/pkg/config"
	"github.com/botweaver/botweaver/pkg/graceful"
	"github.com/botweaver/botweaver/pkg/logger"
	appredis "github.com/botweaver/botweaver/pkg/redis"
)

const dedupeTTL = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load the conversation graph and serve the Telegram agent",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBot(); err != nil {
			fmt.Printf("Startup failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Level:         cfg.Log.Level,
		FilePath:      cfg.Log.File,
		SentryEnabled: cfg.Sentry.Enabled,
	})
	slog.SetDefault(log)

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log.Info("starting botweaver",
		slog.String("graph", cfg.Graph.Path),
		slog.String("mode", cfg.Bot.Mode),
		slog.String("session_backend", cfg.Engine.SessionBackend),
	)

	rdb, err := appredis.New(ctx, appredis.Config{
		Addr:            cfg.Redis.Addr,
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		PoolSize:        cfg.Redis.PoolSize,
		MinIdleConns:    cfg.Redis.MinIdleConns,
		PoolTimeout:     cfg.Redis.PoolTimeout,
		IdleTimeout:     cfg.Redis.IdleTimeout,
		MaxRetries:      cfg.Redis.MaxRetries,
		MinRetryBackoff: cfg.Redis.MinRetryBackoff,
		MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := rdb.Close(); cerr != nil {
			log.Error("error closing redis", slog.Any("error", cerr))
		}
	}()

	g, err := graph.Load(cfg.Graph.Path)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}
	if g.Entry() == "" {
		log.Warn("graph declares no /start command; users have no entry point",
			slog.String("path", cfg.Graph.Path))
	}

	checker := health.NewChecker(log)
	checker.AddCheck("redis", rdb)

	var userLedger *ledger.Ledger
	if cfg.Database.Enabled() {
		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() {
			if cerr := db.Close(); cerr != nil {
				log.Error("error closing database", slog.Any("error", cerr))
			}
		}()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}

		migrator := database.NewMigrator(db, log)
		if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}

		userLedger = ledger.New(db, log)
		checker.AddCheck("database", userLedger)
	}

	varStore := vars.NewRedisStore(rdb.Client, log)

	var sessions session.Store
	memory := session.NewMemoryStore()
	if cfg.Engine.SessionBackend == "redis" {
		sessions = session.NewRedisStore(rdb.Client, log)
	} else {
		sessions = memory
		go bot.WatchSessions(ctx, memory, 15*time.Second)
	}

	var ledgerSink input.Ledger
	if userLedger != nil {
		ledgerSink = userLedger
	}
	collector := input.NewCollector(sessions, varStore, ledgerSink, log)
	accumulator := multiselect.NewAccumulator(sessions, varStore, log)

	eng := engine.New(engine.Config{
		Graph:       g,
		Sessions:    sessions,
		Vars:        varStore,
		Collector:   collector,
		Accumulator: accumulator,
		Log:         log,
		MaxAutoHops: cfg.Engine.MaxAutoHops,
	})

	rt := router.New(eng, sessions, collector, accumulator, log)

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Backend == "redis" {
			limiter = ratelimit.NewRedisLimiter(rdb.Client, log)
		} else {
			limiter = ratelimit.NewMemoryLimiter(log)
		}
	}

	b, err := bot.New(*cfg, log, rt, bot.Deps{
		Limiter: limiter,
		Deduper: dedupe.New(rdb.Client, dedupeTTL, log),
		Queue:   session.NewUserQueue(),
	})
	if err != nil {
		return fmt.Errorf("build bot: %w", err)
	}
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))

	if cfg.Graph.Watch {
		go func() {
			if werr := eng.Watch(ctx, cfg.Graph.Path); werr != nil {
				log.Error("graph watcher stopped", slog.Any("error", werr))
			}
		}()
	}

	if cfg.Broadcast.Enabled && userLedger != nil {
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		handler := broadcast.NewHandler(userLedger, b.Telebot(), log)
		worker := broadcast.NewWorker(redisOpt, cfg.Broadcast.Concurrency, handler, log)
		go func() {
			if werr := worker.Run(); werr != nil {
				log.Error("broadcast worker stopped", slog.Any("error", werr))
			}
		}()
		defer worker.Shutdown()
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", checker.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	srv := graceful.NewServer(log, cfg.Server.Port, logger.Middleware(mux), cfg.Server.ShutdownTimeout)
	go func() {
		if serr := srv.ListenAndServe(ctx); serr != nil {
			log.Error("http server exited", slog.Any("error", serr))
		}
	}()

	go b.Start()
	<-ctx.Done()

	b.Stop()
	log.Info("botweaver shut down")
	return nil
}
