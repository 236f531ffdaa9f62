package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"billing/internal/amqp"
	"billing/internal/core"
	"billing/internal/log"
	"billing/internal/store"
	"billing/internal/store/memory"
	"billing/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	now    func() time.Time
}

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		now:    time.Now,
	}
}

// CreateBackend opens the configured store, seeds it when asked and, if an
// AMQP URL is set, connects the publisher. A broker that cannot be reached
// is logged and skipped; a store that cannot be opened is an error.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var seed []core.Invoice
	if config.SeedDemoData {
		seed = store.SeedInvoices(f.now())
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(ctx, config, seed)
	case MemoryBackend:
		result = f.createMemoryBackend(seed)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.AMQPURL != "" {
		f.attachPublisher(ctx, result, config)
	}
	return result, nil
}

func (f *DefaultFactory) createMemoryBackend(seed []core.Invoice) *BackendResult {
	st := memory.New(seed...)
	f.logger.Info("Initialized memory backend", log.FieldBackend, MemoryBackend, "seeded", len(seed))
	return &BackendResult{
		Store: st,
		Ready: map[string]ReadyFunc{},
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config, seed []core.Invoice) (*BackendResult, error) {
	repo, err := sqlite.Open(ctx, config.SQLiteDBName, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	if len(seed) > 0 {
		if err := repo.Seed(ctx, seed); err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to seed SQLite repository: %w", err)
		}
	}

	f.logger.Info("Initialized SQLite backend",
		log.FieldBackend, SQLiteBackend,
		"database", config.SQLiteDBName,
		"seeded", len(seed))

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
		Ready:   map[string]ReadyFunc{"sqlite": repo.Ping},
	}, nil
}

func (f *DefaultFactory) attachPublisher(ctx context.Context, result *BackendResult, config Config) {
	client, err := amqp.NewClient(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without invoice events", log.FieldError, err)
		return
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	result.Publisher = client

	storeCleanup := result.Cleanup
	result.Cleanup = func() error {
		err := client.Close()
		if storeCleanup != nil {
			err = errors.Join(err, storeCleanup())
		}
		return err
	}
}
