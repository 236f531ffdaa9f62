// Package backend builds the invoice store and optional event publisher
// selected by configuration.
package backend

import (
	"context"

	"billing/internal/amqp"
	"billing/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// ReadyFunc probes a dependency for /readyz.
type ReadyFunc func(ctx context.Context) error

// BackendResult contains the store plus everything needed to run and stop it.
type BackendResult struct {
	Store store.InvoiceStore
	// Publisher is nil when AMQP is disabled or unreachable at startup.
	Publisher *amqp.Client
	Cleanup   CleanupFunc
	Ready     map[string]ReadyFunc
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBName string

	// Optional change notifications
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	SeedDemoData bool
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
