package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"billing/internal/amqp"
	"billing/internal/cli"
	"billing/internal/log"
	"billing/internal/store"
	"billing/internal/worker"
)

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

	if !cfg.AMQPEnabled() {
		appLogger.Error("AMQP_URL is required for the event worker",
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		appLogger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	events := worker.NewEventWorker(logger)
	if cfg.SeedDemoData {
		events.Seed(store.SeedInvoices(time.Now()))
	}

	appLogger.Info("Starting billing event worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"report_interval", cfg.WorkerReportInterval.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeInvoiceEvents(gctx, events.HandleInvoiceEvent)
	})
	g.Go(func() error {
		events.ReportEvery(gctx, cfg.WorkerReportInterval)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Event consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	appLogger.Info("Worker stopped", "processed", events.Snapshot().Processed)
}
