package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"billing/internal/backend"
	"billing/internal/cli"
	apphttp "billing/internal/http"
	"billing/internal/log"
	"billing/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(cfg.LogLevel)
	appLogger := logger.WithComponent(log.ComponentApp)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		appLogger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		appLogger.Error("Failed to create backend",
			log.FieldBackend, backendConfig.Type.String(),
			log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := result.Close(); err != nil {
			appLogger.Error("Error closing backend", log.FieldError, err)
		}
	}()

	svcOpts := []services.Option{services.WithLogger(logger)}
	serverOpts := []apphttp.Option{
		apphttp.WithLogger(logger),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
		apphttp.WithViewCache(cfg.ViewCacheSize, cfg.ViewCacheTTL),
	}
	if result.Publisher != nil {
		svcOpts = append(svcOpts, services.WithPublisher(result.Publisher))
		serverOpts = append(serverOpts, apphttp.WithPublisherHealth(result.Publisher.Healthy))
	}
	for name, check := range result.Ready {
		serverOpts = append(serverOpts, apphttp.WithReadinessCheck(name, check))
	}

	svc := services.NewInvoiceService(result.Store, svcOpts...)
	srv := apphttp.NewServer(cfg.Addr(), svc, serverOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("Starting billing server",
			"addr", srv.Addr,
			log.FieldBackend, backendConfig.Type.String(),
			"amqp", result.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	appLogger.Info("Server stopped")
}
