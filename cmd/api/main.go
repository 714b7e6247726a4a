// Command api serves the account HTTP API.
//
// @title        Account Service API
// @version      1.0
// @description  CRUD service for user accounts with unique emails and bcrypt-hashed passwords.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/igor322/account-service/internal/api"
	"github.com/igor322/account-service/internal/core/credential"
	"github.com/igor322/account-service/internal/core/ports"
	"github.com/igor322/account-service/internal/core/service"
	"github.com/igor322/account-service/internal/infrastructure/db/mongo"
	"github.com/igor322/account-service/internal/infrastructure/db/postgres"
	"github.com/igor322/account-service/internal/infrastructure/db/redis"
	"github.com/igor322/account-service/internal/pkg/config"
	"github.com/igor322/account-service/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "account-service",
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("service stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.Connect(ctx, cfg.Redis.Options())
		if err != nil {
			return err
		}
		defer rdb.Close()
		repo = redis.NewCachedAccountRepository(repo, rdb, cfg.Redis.CacheTTL, log.With().Str("component", "cache").Logger())
		log.Info().Str("addr", cfg.Redis.Addr).Msg("account cache enabled")
	}

	hasher := credential.NewManager(cfg.BcryptCost)
	svc := service.NewAccountService(repo, hasher, log.With().Str("component", "account_service").Logger())

	e := api.NewRouter(api.Options{
		Service:        svc,
		Redis:          rdb,
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// openStore connects the configured backend and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.AccountRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, db, err := mongo.Connect(ctx, cfg.Mongo.Options())
		if err != nil {
			return nil, nil, err
		}
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")
		return mongo.NewAccountRepository(db), func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		db, err := postgres.Connect(ctx, cfg.Postgres.Options())
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info().Str("database", cfg.Postgres.Database).Msg("connected to postgres")
		return postgres.NewAccountRepository(db), func() { _ = db.Close() }, nil
	}
}
