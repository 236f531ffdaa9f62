// Package worker consumes invoice change events and keeps a running
// projection of the collection they describe.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"billing/internal/amqp"
	"billing/internal/core"
	"billing/internal/log"
)

// Projection is the event-derived view of the invoice collection.
type Projection struct {
	Count      int
	TotalCents int64
	ByStatus   map[core.Status]int
	Processed  int64
	Stale      int64
}

type entry struct {
	status      core.Status
	amountCents int64
	updatedAt   int64
}

// EventWorker folds invoice events into a Projection. Upserts older than
// the version already seen for an id are counted as stale and ignored.
type EventWorker struct {
	logger *log.Logger

	mu        sync.Mutex
	invoices  map[string]entry
	processed int64
	stale     int64
}

func NewEventWorker(logger *log.Logger) *EventWorker {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &EventWorker{
		logger:   logger.WithComponent(log.ComponentWorker),
		invoices: make(map[string]entry),
	}
}

// Seed primes the projection with the collection the server started from.
// Seeded entries carry no version, so any later event replaces them.
func (w *EventWorker) Seed(invoices []core.Invoice) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, inv := range invoices {
		w.invoices[inv.ID] = entry{status: inv.Status, amountCents: inv.AmountCents}
	}
}

// HandleInvoiceEvent applies one event. Malformed events (no id, unknown type
// or status) fail with amqp.ErrInvalidEvent.
func (w *EventWorker) HandleInvoiceEvent(ctx context.Context, event *amqp.InvoiceEvent) error {
	if event.ID == "" {
		return fmt.Errorf("%w: %q without id", amqp.ErrInvalidEvent, event.Type)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch event.Type {
	case amqp.EventInvoiceUpserted:
		status, err := core.ParseStatus(event.Status)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", amqp.ErrInvalidEvent, event.ID, err)
		}
		if prev, ok := w.invoices[event.ID]; ok && prev.updatedAt > event.UpdatedAt {
			w.stale++
			w.logger.DebugContext(ctx, "Ignoring stale invoice event", log.FieldInvoiceID, event.ID)
			return nil
		}
		w.invoices[event.ID] = entry{status: status, amountCents: event.AmountCents, updatedAt: event.UpdatedAt}
	case amqp.EventInvoiceDeleted:
		delete(w.invoices, event.ID)
	default:
		return fmt.Errorf("%w: unknown type %q", amqp.ErrInvalidEvent, event.Type)
	}
	w.processed++

	w.logger.InfoContext(ctx, "Applied invoice event",
		log.FieldEventType, event.Type,
		log.FieldInvoiceID, event.ID,
		log.FieldInvoiceNumber, event.InvoiceNumber)
	return nil
}

// Snapshot returns a copy of the current projection.
func (w *EventWorker) Snapshot() Projection {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := Projection{
		Count:     len(w.invoices),
		ByStatus:  make(map[core.Status]int, len(core.Statuses())),
		Processed: w.processed,
		Stale:     w.stale,
	}
	for _, e := range w.invoices {
		p.TotalCents += e.amountCents
		p.ByStatus[e.status]++
	}
	return p
}

// ReportEvery logs the projection on each tick until ctx is done.
func (w *EventWorker) ReportEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.report(ctx)
		}
	}
}

func (w *EventWorker) report(ctx context.Context) {
	p := w.Snapshot()
	args := []any{
		"invoices", p.Count,
		"total", core.FormatMoney(p.TotalCents),
		"processed", p.Processed,
		"stale", p.Stale,
	}
	for _, st := range core.Statuses() {
		args = append(args, "status_"+string(st), p.ByStatus[st])
	}
	w.logger.InfoContext(ctx, "Invoice projection", args...)
}
