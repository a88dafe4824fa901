package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/atendoapp/atendo/internal/automation"
	"github.com/atendoapp/atendo/internal/config"
	"github.com/atendoapp/atendo/internal/conversation"
	"github.com/atendoapp/atendo/internal/db"
	"github.com/atendoapp/atendo/internal/handlers"
	"github.com/atendoapp/atendo/internal/identity"
	"github.com/atendoapp/atendo/internal/instance"
	"github.com/atendoapp/atendo/internal/logger"
	"github.com/atendoapp/atendo/internal/media"
	"github.com/atendoapp/atendo/internal/message"
	"github.com/atendoapp/atendo/internal/server"
	"github.com/atendoapp/atendo/internal/storage"
	"github.com/atendoapp/atendo/internal/storage/providers/localfs"
	"github.com/atendoapp/atendo/internal/wapi"
	"github.com/atendoapp/atendo/internal/webhook"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideQuerier,
			provideWapiClient,
			provideStorage,
			provideBus,
			instance.NewService,
			provideIdentityResolver,
			conversation.NewTracker,
			provideMediaTransfer,
			provideRecorder,
			message.NewReconciler,
			automation.NewFollowupStore,
			provideDispatcher,
			provideSweeper,
			provideForwarder,
			provideRouter,
			handlers.NewPingHandler,
			handlers.NewWebhookHandler,
			provideServer,
		),
		fx.Invoke(
			runMigrations,
			startSweeper,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideQuerier(pool *pgxpool.Pool) db.Querier { return pool }

func provideWapiClient(log *slog.Logger, cfg config.Config) *wapi.Client {
	return wapi.NewClient(log, cfg.Provider.BaseURL, time.Duration(cfg.Provider.TimeoutSeconds)*time.Second)
}

func provideStorage(cfg config.Config) (storage.Provider, error) {
	return localfs.New(cfg.Storage.Root, cfg.Storage.PublicBaseURL)
}

func provideBus(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (automation.Publisher, error) {
	bus, err := automation.Dial(context.Background(), automation.DialOptions{
		URL:           cfg.Rabbit.URL,
		Exchange:      cfg.Rabbit.Exchange,
		RetryAttempts: cfg.Rabbit.RetryAttempts,
		RetryDelay:    time.Duration(cfg.Rabbit.RetryDelayMS) * time.Millisecond,
		Logger:        log,
	})
	if err != nil {
		return nil, fmt.Errorf("connect job bus: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return bus.Close() }})
	return bus, nil
}

func provideIdentityResolver(log *slog.Logger, querier db.Querier, client *wapi.Client, store storage.Provider) *identity.Resolver {
	return identity.NewResolver(log, querier, client, store)
}

func provideMediaTransfer(log *slog.Logger, client *wapi.Client, store storage.Provider) *media.Transfer {
	return media.NewTransfer(log, client, store)
}

func provideRecorder(log *slog.Logger, querier db.Querier, transfer *media.Transfer) *message.Recorder {
	return message.NewRecorder(log, querier, transfer)
}

func provideDispatcher(log *slog.Logger, bus automation.Publisher, recorder *message.Recorder, followups *automation.FollowupStore, cfg config.Config) *automation.Dispatcher {
	return automation.NewDispatcher(log, bus, recorder, followups, cfg.Automation.SentimentEvery)
}

func provideSweeper(log *slog.Logger, bus automation.Publisher, followups *automation.FollowupStore, cfg config.Config) *automation.Sweeper {
	return automation.NewSweeper(log, bus, followups, cfg.Automation.SweepSchedule)
}

func provideForwarder(log *slog.Logger) *webhook.Forwarder {
	return webhook.NewForwarder(log, 10*time.Second)
}

func provideRouter(log *slog.Logger, resolver *identity.Resolver, tracker *conversation.Tracker, recorder *message.Recorder, reconciler *message.Reconciler, dispatcher *automation.Dispatcher, forwarder *webhook.Forwarder) *webhook.Router {
	return webhook.NewRouter(log, resolver, tracker, recorder, reconciler, dispatcher, forwarder)
}

func provideServer(log *slog.Logger, cfg config.Config, ping *handlers.PingHandler, wh *handlers.WebhookHandler) *server.Server {
	return server.New(log, cfg.Server.Addr, ping, wh)
}

func runMigrations(cfg config.Config, log *slog.Logger) error {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("database schema up to date")
	return nil
}

func startSweeper(lc fx.Lifecycle, sweeper *automation.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return sweeper.Start() },
		OnStop:  func(ctx context.Context) error { sweeper.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
