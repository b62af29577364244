package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"github.com/theauditor/loremshelf/internal/cache"
	"github.com/theauditor/loremshelf/internal/cart"
	"github.com/theauditor/loremshelf/internal/catalog"
	"github.com/theauditor/loremshelf/internal/checkout"
	"github.com/theauditor/loremshelf/internal/config"
	"github.com/theauditor/loremshelf/internal/erp"
	storefrontgrpc "github.com/theauditor/loremshelf/internal/grpc"
	storefronthttp "github.com/theauditor/loremshelf/internal/http"
	"github.com/theauditor/loremshelf/internal/ledger"
	"github.com/theauditor/loremshelf/internal/payment"
	"github.com/theauditor/loremshelf/internal/repository"
	"github.com/theauditor/loremshelf/internal/state"
	"github.com/theauditor/loremshelf/internal/telemetry"
	"github.com/theauditor/loremshelf/pkg/logger"
)

// app holds every wired component of one storefront process.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	telemetry *telemetry.Provider
	metrics   *telemetry.Metrics

	erp      *erp.Client
	gateway  payment.Gateway
	ledger   *ledger.Ledger
	checkout *checkout.Service
	catalog  *catalog.Service
	probes   map[string]storefrontgrpc.BreakerProbe
	health   map[string]storefronthttp.HealthCheck

	closers []func(ctx context.Context) error
}

func loadApp(ctx context.Context, configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: logger.Setup(cfg.LogLevel, cfg.LogFormat),
		probes: map[string]storefrontgrpc.BreakerProbe{},
		health: map[string]storefronthttp.HealthCheck{},
	}
	if err := a.wire(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	provider, err := telemetry.NewProvider()
	if err != nil {
		return err
	}
	a.telemetry = provider
	a.closers = append(a.closers, provider.Shutdown)

	if a.metrics, err = provider.Metrics(); err != nil {
		return err
	}

	a.erp = erp.NewClient(erp.Config{
		BaseURL:   cfg.ERP.BaseURL,
		APIKey:    cfg.ERP.APIKey,
		APISecret: cfg.ERP.APISecret,
		Timeout:   cfg.ERP.Timeout,
	}, a.metrics, a.logger)
	a.probes["erp"] = a.erp.BreakerState

	switch cfg.Payment.Gateway {
	case payment.GatewayRazorpay:
		rp := payment.NewRazorpay(payment.RazorpayConfig{
			BaseURL:      cfg.Payment.RazorpayBaseURL,
			KeyID:        cfg.Payment.RazorpayKeyID,
			KeySecret:    cfg.Payment.RazorpayKeySecret,
			MerchantName: cfg.Payment.MerchantName,
		}, a.logger)
		a.probes["razorpay"] = rp.BreakerState
		a.gateway = rp
	default:
		a.gateway = payment.NewCashfree(a.erp, cfg.Payment.CashfreeReturnURL)
	}

	repo, err := a.stateRepository(ctx)
	if err != nil {
		return err
	}
	stateCache, err := a.stateCache(ctx)
	if err != nil {
		return err
	}
	store := state.NewStore(repo, stateCache, a.logger)
	locker := state.NewSessionLocker()

	deps := checkout.Deps{
		State:   store,
		Cart:    cart.NewStore(store, a.logger),
		Locker:  locker,
		Records: a.erp,
		Gateway: a.gateway,
		Latch:   checkout.NewSubmissionLatch(cfg.Checkout.SubmissionTTL),
		Metrics: a.metrics,
		Logger:  a.logger,
	}

	if cfg.Ledger.Driver != ledger.DriverNone {
		l, err := ledger.Open(ctx, cfg.Ledger.Driver, cfg.Ledger.DSN, a.logger)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		a.ledger = l
		a.closers = append(a.closers, func(context.Context) error { return l.Close() })
		a.health["ledger"] = l.Ping
		deps.Ledger = l
	}

	a.checkout = checkout.NewService(deps)
	a.closers = append(a.closers, func(context.Context) error { return a.checkout.Close() })

	a.catalog = catalog.NewService(a.erp, cfg.ERP.BaseURL, cfg.ERP.ItemGroup, a.logger)
	a.health["erp"] = func(context.Context) error {
		if a.erp.BreakerState() == gobreaker.StateOpen {
			return errors.New("erp circuit breaker is open")
		}
		return nil
	}
	return nil
}

func (a *app) stateRepository(ctx context.Context) (repository.StateRepository, error) {
	if a.cfg.State.Store != "mongo" {
		a.logger.Warn("using in-memory session state, sessions are lost on restart")
		return repository.NewMemoryRepository(), nil
	}

	db, err := repository.ConnectStateDB(ctx, repository.MongoConfig{
		URI:         a.cfg.State.MongoURI,
		Database:    a.cfg.State.MongoDatabase,
		MaxPoolSize: a.cfg.State.MongoMaxPool,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(ctx context.Context) error { return db.Client().Disconnect(ctx) })
	a.health["mongo"] = func(ctx context.Context) error { return db.Client().Ping(ctx, nil) }

	repo := repository.NewMongoRepository(db)
	if err := repo.CreateIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create state indexes: %w", err)
	}
	a.logger.Info("connected to MongoDB", "database", a.cfg.State.MongoDatabase)
	return repo, nil
}

func (a *app) stateCache(ctx context.Context) (cache.StateCache, error) {
	if a.cfg.State.RedisAddr == "" {
		return cache.NoopCache{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.State.RedisAddr,
		Password: a.cfg.State.RedisPassword,
		DB:       0,
	})
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	a.logger.Info("redis ping succeeded", "addr", a.cfg.State.RedisAddr)

	rc := cache.NewRedisCache(client, a.cfg.State.CacheTTL)
	a.health["redis"] = rc.Ping
	return rc, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}
