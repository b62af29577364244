package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	storefrontgrpc "github.com/theauditor/loremshelf/internal/grpc"
	storefronthttp "github.com/theauditor/loremshelf/internal/http"
	"github.com/theauditor/loremshelf/internal/publisher"
)

func serveCmd(configFile *string) *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the gRPC health endpoint and the outbox poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configFile, migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", true, "apply ledger migrations before serving")
	return cmd
}

func runServe(ctx context.Context, configFile string, migrateFirst bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := loadApp(ctx, configFile)
	if err != nil {
		return err
	}
	defer a.close(context.Background())
	cfg := a.cfg

	if a.ledger != nil && migrateFirst {
		if err := a.ledger.RunMigrations(cfg.Ledger.MigrationsPath); err != nil {
			return err
		}
		a.logger.Info("ledger migrations applied", "driver", cfg.Ledger.Driver)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	if a.ledger != nil {
		poller := publisher.NewOutboxPoller(a.ledger, publisher.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Grace:   cfg.Checkout.ReconcileGrace,
		}, a.metrics, a.logger)
		defer poller.Close()
		if len(cfg.Kafka.Brokers) == 0 {
			a.logger.Warn("no kafka brokers configured, order events stay in the outbox")
		}
		go poller.Run(runCtx)
	}

	healthSrv := storefrontgrpc.NewHealthServer(a.probes, a.logger)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	go func() {
		if err := healthSrv.Serve(lis); err != nil {
			a.logger.Error("grpc server stopped", "error", err)
		}
	}()
	go healthSrv.Watch(runCtx)

	router := storefronthttp.NewRouter(storefronthttp.RouterConfig{
		Checkout:       a.checkout,
		Catalog:        a.catalog,
		Instrument:     a.metrics.Middleware,
		MetricsHandler: a.telemetry.Handler(),
		HealthChecks:   a.health,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         a.logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("storefront starting", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort, "gateway", a.gateway.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		a.logger.Error("server error", "error", err)
	}

	a.logger.Info("shutting down server...")
	stop()
	healthSrv.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.logger.Info("server exited")
	return nil
}
