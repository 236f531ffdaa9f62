package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"billing/internal/amqp"
	"billing/internal/core"
	"billing/internal/forms"
	"billing/internal/log"
	"billing/internal/store"
)

// Publisher announces invoice changes. *amqp.Client implements it.
type Publisher interface {
	PublishInvoiceEvent(ctx context.Context, event *amqp.InvoiceEvent) error
}

// InvoiceService turns controller output into store mutations and change
// events. The store stays the single source of truth; publishing is best
// effort.
type InvoiceService struct {
	store     store.InvoiceStore
	publisher Publisher
	logger    *log.Logger
	events    *log.StructuredLogger
	now       func() time.Time
	newID     func() string
}

type Option func(*InvoiceService)

func WithPublisher(p Publisher) Option {
	return func(s *InvoiceService) { s.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *InvoiceService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *InvoiceService) { s.now = now }
}

// WithIDGenerator overrides the UUID generator used on create.
func WithIDGenerator(newID func() string) Option {
	return func(s *InvoiceService) { s.newID = newID }
}

func NewInvoiceService(st store.InvoiceStore, opts ...Option) *InvoiceService {
	s := &InvoiceService{
		store:  st,
		logger: log.NewDiscard(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentInvoice)
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// Create validates form and prepends the new invoice.
// Validation failures come back as forms.FieldErrors.
func (s *InvoiceService) Create(ctx context.Context, form forms.InvoiceForm) (core.Invoice, error) {
	inv, err := form.Submit(forms.ModeCreate, nil, s.now(), s.newID)
	if err != nil {
		return core.Invoice{}, err
	}
	if err := s.store.Upsert(ctx, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	s.events.LogInvoiceSaved(ctx, log.OpCreate, inv.ID, inv.InvoiceNumber, string(inv.Status), inv.AmountCents)
	s.publish(ctx, amqp.NewInvoiceUpsertedEvent(inv))
	return inv, nil
}

// Update replaces the invoice with the given id. An unchanged form yields
// forms.ErrUnchanged and leaves the store untouched.
func (s *InvoiceService) Update(ctx context.Context, id string, form forms.InvoiceForm) (core.Invoice, error) {
	initial, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("load invoice %s: %w", id, err)
	}
	inv, err := form.Submit(forms.ModeEdit, &initial, s.now(), s.newID)
	if err != nil {
		return core.Invoice{}, err
	}
	if err := s.store.Upsert(ctx, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	s.events.LogInvoiceSaved(ctx, log.OpUpdate, inv.ID, inv.InvoiceNumber, string(inv.Status), inv.AmountCents)
	s.publish(ctx, amqp.NewInvoiceUpsertedEvent(inv))
	return inv, nil
}

// Delete removes the invoice. Deleting an unknown id succeeds and publishes nothing.
func (s *InvoiceService) Delete(ctx context.Context, id string) error {
	_, err := s.store.Get(ctx, id)
	existed := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load invoice %s: %w", id, err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete invoice %s: %w", id, err)
	}
	s.events.LogInvoiceDeleted(ctx, id, existed)
	if existed {
		s.publish(ctx, amqp.NewInvoiceDeletedEvent(id))
	}
	return nil
}

func (s *InvoiceService) Get(ctx context.Context, id string) (core.Invoice, error) {
	return s.store.Get(ctx, id)
}

// View applies the filter and sort to the current snapshot.
func (s *InvoiceService) View(ctx context.Context, state core.ViewState) ([]core.Invoice, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return core.Apply(items, state), nil
}

// Summary computes the KPIs over every invoice, ignoring any filter.
func (s *InvoiceService) Summary(ctx context.Context) (core.Summary, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list invoices: %w", err)
	}
	return core.Summarize(items), nil
}

// Revision is the store revision, used to key cached views.
func (s *InvoiceService) Revision() uint64 {
	return s.store.Revision()
}

func (s *InvoiceService) publish(ctx context.Context, event *amqp.InvoiceEvent) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping invoice event", log.FieldEventType, event.Type)
		return
	}
	if err := s.publisher.PublishInvoiceEvent(ctx, event); err != nil {
		fields := log.NewFields().WithErrorType(log.ErrorTypeNetwork)
		fields[log.FieldEventType] = event.Type
		fields[log.FieldInvoiceID] = event.ID
		s.events.LogError(ctx, "Failed to publish invoice event", err, log.ComponentAMQP, log.OpPublish, fields)
	}
}
