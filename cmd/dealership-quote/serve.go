package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/dealership-quote/internal/auth"
	"github.com/iwvelando/dealership-quote/internal/cache"
	"github.com/iwvelando/dealership-quote/internal/catalog"
	"github.com/iwvelando/dealership-quote/internal/events"
	"github.com/iwvelando/dealership-quote/internal/metrics"
	"github.com/iwvelando/dealership-quote/internal/quote"
	"github.com/iwvelando/dealership-quote/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the quote and admin HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

// openStore returns the postgres catalog when a DSN is configured and an
// in-memory one otherwise. The returned func releases it.
func (a *app) openStore() (catalog.Store, func(), error) {
	if a.conf.Database.DSN == "" {
		return catalog.NewMemoryStore(), func() {}, nil
	}
	// Open migrates the schema.
	store, err := catalog.Open(a.conf.Database, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// seed loads the configured catalog into store.
func (a *app) seed(ctx context.Context, store catalog.Store) error {
	prices, err := a.conf.SeedPrices()
	if err != nil {
		return err
	}
	return catalog.Seed(ctx, store, prices, a.conf.SeedFees(), a.logger)
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger
	conf := a.conf

	opts, err := server.NewOptions(conf.Server)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore()
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer closeStore()

	if err := a.seed(ctx, store); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	var priceCache cache.PriceCache = cache.NopCache{}
	if conf.Redis.Address != "" {
		rc := cache.NewRedisPriceCache(conf.Redis, logger)
		defer func() { _ = rc.Close() }()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, price reads will fall back to the catalog",
				zap.String("op", "main.serve"),
				zap.String("address", conf.Redis.Address),
				zap.Error(err),
			)
		}
		cancel()
		priceCache = rc
	}

	var publisher events.LeadPublisher = events.NopPublisher{}
	if len(conf.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(conf.Kafka, logger)
		defer func() { _ = kp.Close() }()
		publisher = kp
	}

	var authenticator *auth.Authenticator
	if conf.AdminEnabled() {
		authenticator, err = auth.New(conf.Auth, logger)
		if err != nil {
			return fmt.Errorf("failed to configure admin auth: %w", err)
		}
	}

	m := metrics.New()
	svc := quote.NewService(quote.Deps{
		Store:       store,
		Cache:       priceCache,
		Publisher:   publisher,
		Metrics:     m,
		Calculator:  conf.Calculator(),
		LoanOptions: conf.LoanOptions(),
		Logger:      logger,
	})

	handler := server.NewHandler(server.Deps{
		Service:        svc,
		Auth:           authenticator,
		Metrics:        m,
		Logger:         logger,
		Version:        version,
		MaxBodyBytes:   opts.MaxBodyBytes,
		AllowedOrigins: opts.AllowedOrigins,
	})
	srv := server.New(opts, handler)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server",
			zap.String("op", "main.serve"),
			zap.String("address", opts.Address),
			zap.Bool("admin", authenticator != nil),
			zap.Bool("postgres", conf.Database.DSN != ""),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server", zap.String("op", "main.serve"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
