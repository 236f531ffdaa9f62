// Package store defines the invoice collection and its seed data.
package store

import (
	"context"
	"errors"
	"time"

	"billing/internal/core"
)

var ErrNotFound = errors.New("invoice not found")

// InvoiceStore is the ordered invoice collection. Upsert and Delete are the
// only mutators; each replaces the whole collection atomically.
type InvoiceStore interface {
	// List returns a copy of every invoice in display order.
	List(ctx context.Context) ([]core.Invoice, error)
	Get(ctx context.Context, id string) (core.Invoice, error)
	// Upsert replaces the invoice with the same id in place, or prepends it.
	Upsert(ctx context.Context, inv core.Invoice) error
	// Delete removes the invoice if present. An unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// Revision increases on every change to the collection.
	Revision() uint64
}

// SeedInvoices returns the sanitized demo data, newest first.
func SeedInvoices(now time.Time) []core.Invoice {
	ms := func(ago time.Duration) int64 { return now.Add(-ago).UnixMilli() }
	return []core.Invoice{
		{ID: "seed-1", AccountName: "Northwind Clinic", InvoiceNumber: "INV-1001", ServiceDate: "2024-01-08", AmountCents: 12500, Status: core.StatusOpen, UpdatedAt: ms(2 * time.Hour)},
		{ID: "seed-2", AccountName: "Blue Harbor Pediatrics", InvoiceNumber: "INV-1002", ServiceDate: "2024-01-11", AmountCents: 48000, Status: core.StatusPaid, Notes: "Paid by card", UpdatedAt: ms(26 * time.Hour)},
		{ID: "seed-3", AccountName: "Summit Physical Therapy", InvoiceNumber: "INV-1003", ServiceDate: "2024-01-15", AmountCents: 9950, Status: core.StatusDenied, Notes: "Missing authorization", UpdatedAt: ms(50 * time.Hour)},
		{ID: "seed-4", AccountName: "Cedar Family Practice", InvoiceNumber: "INV-1004", ServiceDate: "2024-02-02", AmountCents: 21075, Status: core.StatusOpen, UpdatedAt: ms(74 * time.Hour)},
		{ID: "seed-5", AccountName: "Lakeside Imaging", InvoiceNumber: "INV-1005", ServiceDate: "2024-02-09", AmountCents: 153000, Status: core.StatusPaid, UpdatedAt: ms(98 * time.Hour)},
		{ID: "seed-6", AccountName: "Maple Dental Group", InvoiceNumber: "INV-1006", ServiceDate: "2024-02-20", AmountCents: 7800, Status: core.StatusOpen, Notes: "Resubmitted", UpdatedAt: ms(122 * time.Hour)},
	}
}
