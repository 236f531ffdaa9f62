package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"billing/internal/amqp"
	"billing/internal/core"
	"billing/internal/forms"
	"billing/internal/store"
	"billing/internal/store/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.InvoiceEvent
	err    error
}

func (p *recordingPublisher) PublishInvoiceEvent(_ context.Context, e *amqp.InvoiceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type failingStore struct {
	store.InvoiceStore
}

func (failingStore) List(context.Context) ([]core.Invoice, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Upsert(context.Context, core.Invoice) error {
	return errors.New("disk on fire")
}

var fixedNow = time.UnixMilli(1_700_000_000_000)

func newTestService(seed []core.Invoice, pub Publisher) (*InvoiceService, *memory.Store) {
	st := memory.New(seed...)
	opts := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "new-id" }),
	}
	if pub != nil {
		opts = append(opts, WithPublisher(pub))
	}
	return NewInvoiceService(st, opts...), st
}

func seedInvoice() core.Invoice {
	return core.Invoice{
		ID:            "a",
		AccountName:   "Acme Health",
		InvoiceNumber: "INV-1001",
		ServiceDate:   "2024-03-15",
		AmountCents:   12500,
		Status:        core.StatusOpen,
		UpdatedAt:     1,
	}
}

func createForm() forms.InvoiceForm {
	return forms.InvoiceForm{
		AccountName:   "Blue Harbor",
		InvoiceNumber: "inv-2000",
		ServiceDate:   "2024-04-01",
		Amount:        "80",
		Status:        "Open",
	}
}

func TestInvoiceService_Create(t *testing.T) {
	pub := &recordingPublisher{}
	svc, st := newTestService([]core.Invoice{seedInvoice()}, pub)
	ctx := context.Background()

	inv, err := svc.Create(ctx, createForm())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if inv.ID != "new-id" || inv.InvoiceNumber != "INV-2000" || inv.AmountCents != 8000 || inv.UpdatedAt != fixedNow.UnixMilli() {
		t.Errorf("Create() = %+v", inv)
	}

	items, _ := st.List(ctx)
	if len(items) != 2 || items[0].ID != "new-id" {
		t.Errorf("new invoice should be first, got %+v", items)
	}
	if got := pub.types(); len(got) != 1 || got[0] != amqp.EventInvoiceUpserted {
		t.Errorf("published %v", got)
	}
}

func TestInvoiceService_CreateInvalid(t *testing.T) {
	pub := &recordingPublisher{}
	svc, st := newTestService(nil, pub)

	_, err := svc.Create(context.Background(), forms.NewInvoiceForm())
	if _, ok := forms.AsFieldErrors(err); !ok {
		t.Fatalf("Create() error = %v, want FieldErrors", err)
	}
	if st.Revision() != 0 || len(pub.types()) != 0 {
		t.Error("invalid create must not touch the store or publish")
	}
}

func TestInvoiceService_Update(t *testing.T) {
	pub := &recordingPublisher{}
	svc, st := newTestService([]core.Invoice{seedInvoice()}, pub)
	ctx := context.Background()

	t.Run("unchanged", func(t *testing.T) {
		_, err := svc.Update(ctx, "a", forms.FormFromInvoice(seedInvoice()))
		if !errors.Is(err, forms.ErrUnchanged) {
			t.Errorf("Update() error = %v, want ErrUnchanged", err)
		}
		if st.Revision() != 0 {
			t.Error("unchanged update bumped revision")
		}
	})

	t.Run("changed", func(t *testing.T) {
		f := forms.FormFromInvoice(seedInvoice())
		f.Status = "Paid"
		inv, err := svc.Update(ctx, "a", f)
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if inv.ID != "a" || inv.Status != core.StatusPaid {
			t.Errorf("Update() = %+v", inv)
		}
		got, _ := st.Get(ctx, "a")
		if got != inv {
			t.Errorf("stored %+v, want %+v", got, inv)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := svc.Update(ctx, "nope", createForm())
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
	})
}

func TestInvoiceService_Delete(t *testing.T) {
	pub := &recordingPublisher{}
	svc, st := newTestService([]core.Invoice{seedInvoice()}, pub)
	ctx := context.Background()

	if err := svc.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete(missing) error = %v, want nil", err)
	}
	items, _ := st.List(ctx)
	if len(items) != 0 {
		t.Errorf("store not empty: %+v", items)
	}
	if got := pub.types(); len(got) != 1 || got[0] != amqp.EventInvoiceDeleted {
		t.Errorf("published %v, want one delete event", got)
	}
}

func TestInvoiceService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, _ := newTestService(nil, pub)

	if _, err := svc.Create(context.Background(), createForm()); err != nil {
		t.Errorf("Create() error = %v, want nil despite publish failure", err)
	}
}

func TestInvoiceService_NoPublisher(t *testing.T) {
	svc, _ := newTestService(nil, nil)
	if _, err := svc.Create(context.Background(), createForm()); err != nil {
		t.Errorf("Create() error = %v", err)
	}
}

func TestInvoiceService_ViewAndSummary(t *testing.T) {
	second := seedInvoice()
	second.ID, second.InvoiceNumber, second.Status, second.AmountCents, second.UpdatedAt = "b", "INV-1002", core.StatusDenied, 500, 2
	svc, _ := newTestService([]core.Invoice{seedInvoice(), second}, nil)
	ctx := context.Background()

	view, err := svc.View(ctx, core.DefaultViewState())
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if len(view) != 2 || view[0].ID != "b" {
		t.Errorf("default view should be newest first, got %+v", view)
	}

	filtered, _ := svc.View(ctx, core.ViewState{Query: "inv-1001", Status: core.StatusAll, Sort: core.DefaultSort()})
	if len(filtered) != 1 || filtered[0].ID != "a" {
		t.Errorf("filtered view = %+v", filtered)
	}

	sum, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.TotalCents != 13000 || sum.OpenCount != 1 || sum.DeniedCount != 1 {
		t.Errorf("Summary() = %+v", sum)
	}
}

func TestInvoiceService_StoreErrors(t *testing.T) {
	svc := NewInvoiceService(failingStore{})
	ctx := context.Background()

	if _, err := svc.View(ctx, core.DefaultViewState()); err == nil {
		t.Error("View() should surface store errors")
	}
	if _, err := svc.Summary(ctx); err == nil {
		t.Error("Summary() should surface store errors")
	}
	if _, err := svc.Create(ctx, createForm()); err == nil {
		t.Error("Create() should surface store errors")
	}
}
