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

	"buydeals/internal/config"
	"buydeals/internal/database"
	"buydeals/internal/events"
	"buydeals/internal/handler"
	"buydeals/internal/keystore"
	"buydeals/internal/pricing"
	"buydeals/internal/provider"
	"buydeals/internal/repository"
	"buydeals/internal/router"
	"buydeals/internal/service"
	"buydeals/internal/signature"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting buydeals payments API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return err
	}

	providers, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		return err
	}
	registry := provider.NewRegistry(providers...)

	publisher, err := buildPublisher(cfg.Events, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	repos := service.Repositories{
		PaymentOrders: repository.NewPaymentOrderRepository(pool, logger),
		Deals:         repository.NewDealRepository(pool, logger),
		Carts:         repository.NewCartRepository(pool, logger),
		Purchases:     repository.NewPurchaseRepository(pool, logger),
		Loyalty:       repository.NewLoyaltyRepository(pool, logger),
		Wheels:        repository.NewWheelRepository(pool, logger),
	}
	calculator := pricing.NewCalculator(cfg.Checkout)

	dealService := service.NewDealService(repos.Deals, logger)
	paymentService := service.NewPaymentService(repos.PaymentOrders, registry, logger)
	settlementService := service.NewSettlementService(repos, registry, calculator, publisher, logger)
	checkoutService := service.NewCheckoutService(repos, paymentService, calculator, cfg.Checkout.WheelReservationTTL, logger)

	mux := router.New(router.Handlers{
		Deals:    handler.NewDealHandler(dealService, logger),
		Payments: handler.NewPaymentHandler(paymentService, logger),
		Webhooks: handler.NewWebhookHandler(settlementService, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, logger),
	}, registry.Names(), cfg.Auth.JWTSecret, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Strs("providers", registry.Names()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// buildProviders creates the enabled payment provider adapters. myPOS key
// material is read from S3 when configured, with the local file system as
// fallback.
func buildProviders(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ([]provider.Provider, error) {
	var providers []provider.Provider

	if cfg.MyPOS.Enabled {
		fileLoader := keystore.NewFileLoader(logger)

		var s3Loader keystore.Loader
		if cfg.KeyStore.S3Enabled {
			l, err := keystore.NewS3Loader(ctx, cfg.KeyStore.Bucket, cfg.KeyStore.Region, logger)
			if err != nil {
				logger.Warn().
					Err(err).
					Msg("failed to initialise S3 key loader, falling back to local file system only")
			} else {
				s3Loader = l
			}
		} else {
			logger.Info().Msg("using local file system for provider keys (S3 disabled)")
		}
		loader := keystore.NewFallbackLoader(s3Loader, fileLoader, cfg.KeyStore.Prefix, cfg.KeyStore.S3Enabled, logger)

		keys, err := keystore.LoadKeyPair(ctx, loader, cfg.MyPOS.PrivateKeyPath, cfg.MyPOS.ProviderCertPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load myPOS keys: %w", err)
		}

		signer, err := signature.NewSignerFromPEM(keys.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to import myPOS private key: %w", err)
		}
		verifier, err := signature.NewVerifierFromPEM(keys.ProviderCertPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to import myPOS certificate: %w", err)
		}

		providers = append(providers, provider.NewMyPOS(cfg.MyPOS, signer, verifier, logger))
	}

	if cfg.Viva.Enabled {
		providers = append(providers, provider.NewViva(cfg.Viva, nil, logger))
	}

	return providers, nil
}

func buildPublisher(cfg config.EventsConfig, logger zerolog.Logger) (events.Publisher, error) {
	if !cfg.Enabled {
		logger.Info().Msg("settlement events disabled")
		return events.NewNopPublisher(), nil
	}
	publisher, err := events.NewRabbitPublisher(cfg.AMQPURL, cfg.Exchange, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect event publisher: %w", err)
	}
	return publisher, nil
}
