package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DoyleJ11/poke-battle-backend/internal/config"
	"github.com/DoyleJ11/poke-battle-backend/internal/history"
	"github.com/DoyleJ11/poke-battle-backend/internal/httpapi"
	"github.com/DoyleJ11/poke-battle-backend/internal/hub"
	"github.com/DoyleJ11/poke-battle-backend/internal/roster"
	"github.com/DoyleJ11/poke-battle-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (err error) {
	var provider roster.Provider = roster.NewPokeAPI(roster.Options{
		BaseURL: cfg.Roster.BaseURL,
		MaxID:   cfg.Roster.MaxID,
		Timeout: cfg.Roster.Timeout,
		Logger:  logger,
	})

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = roster.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, rdb.Close()) }()
		provider = roster.WithMoveCache(provider, roster.NewRedisMoveCache(rdb, cfg.Redis.MoveTTL), logger)
		logger.Info("move cache enabled", zap.String("redis", cfg.Redis.Addr))
	}

	var (
		recorder history.Recorder
		battles  httpapi.BattleLister
	)
	if cfg.History.DSN != "" {
		store, openErr := history.Open(cfg.History.Driver, cfg.History.DSN)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, store.Close()) }()
		recorder, battles = store, store
		logger.Info("battle history enabled", zap.String("driver", cfg.History.Driver))
	}

	h := hub.NewHub(ctx, hub.Deps{
		Roster:           provider,
		Recorder:         recorder,
		Logger:           logger,
		OptionsPerPlayer: cfg.Roster.OptionsPerPlayer,
	})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:     h,
			Battles: battles,
			Logger:  logger,
			WS: ws.Options{
				IdleTimeout:    cfg.WS.IdleTimeout,
				WriteTimeout:   cfg.WS.WriteTimeout,
				OriginPatterns: cfg.WS.Origins,
				Logger:         logger,
			},
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Live rooms go with the hub; nothing is persisted for them.
	shutdownErr := srv.Shutdown(shutdownCtx)
	if errors.Is(shutdownErr, context.DeadlineExceeded) {
		shutdownErr = multierr.Append(shutdownErr, srv.Close())
	}
	_ = h.Send(hub.ShutdownHub{})
	return shutdownErr
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
