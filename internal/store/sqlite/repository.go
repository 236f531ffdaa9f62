// Package sqlite stores invoices in an in-memory SQLite database.
//
// The database lives only as long as the Repository: the DSN always uses
// mode=memory and the pool is pinned to one connection that is never recycled.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	"billing/internal/core"
	"billing/internal/log"
	"billing/internal/store"

	_ "modernc.org/sqlite"
)

var _ store.InvoiceStore = (*Repository)(nil)

type Repository struct {
	db     *sql.DB
	rev    atomic.Uint64
	logger *log.Logger
}

// DSN returns the shared-cache in-memory DSN for name.
func DSN(name string) string {
	if name == "" {
		name = "billing"
	}
	return "file:" + url.PathEscape(name) + "?mode=memory&cache=shared"
}

// Open creates the in-memory database called name and applies the schema.
func Open(ctx context.Context, name string, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.NewDiscard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	db, err := sql.Open("sqlite", DSN(name))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection holds the in-memory database open.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.InfoContext(ctx, "SQLite store ready", log.FieldOperation, log.OpMigrate, "database", name)
	return &Repository{db: db, logger: logger}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database still answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectColumns = `SELECT id, account_name, invoice_number, service_date, amount_cents, status, notes, updated_at FROM invoices`

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(s scanner) (core.Invoice, error) {
	var inv core.Invoice
	var status string
	if err := s.Scan(&inv.ID, &inv.AccountName, &inv.InvoiceNumber, &inv.ServiceDate,
		&inv.AmountCents, &status, &inv.Notes, &inv.UpdatedAt); err != nil {
		return core.Invoice{}, err
	}
	inv.Status = core.Status(status)
	return inv, nil
}

func (r *Repository) List(ctx context.Context) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	out := []core.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, store.ErrNotFound
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice %s: %w", id, err)
	}
	return inv, nil
}

// Upsert updates the row in place, keeping its position, or inserts it ahead
// of every other row. Both paths run in one transaction.
func (r *Repository) Upsert(ctx context.Context, inv core.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE invoices
		SET account_name = ?, invoice_number = ?, service_date = ?, amount_cents = ?, status = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		inv.AccountName, inv.InvoiceNumber, inv.ServiceDate, inv.AmountCents, string(inv.Status), inv.Notes, inv.UpdatedAt, inv.ID)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}

	if n == 0 {
		_, err = tx.ExecContext(ctx, `INSERT INTO invoices
			(id, account_name, invoice_number, service_date, amount_cents, status, notes, updated_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MIN(position), 0) - 1 FROM invoices))`,
			inv.ID, inv.AccountName, inv.InvoiceNumber, inv.ServiceDate, inv.AmountCents, string(inv.Status), inv.Notes, inv.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	rev := r.rev.Add(1)
	r.logger.DebugContext(ctx, "Invoice upserted",
		log.FieldInvoiceID, inv.ID,
		log.FieldRevision, rev,
		"inserted", n == 0)
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete invoice %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete invoice %s: %w", id, err)
	}
	if n > 0 {
		r.rev.Add(1)
	}
	return nil
}

func (r *Repository) Revision() uint64 {
	return r.rev.Load()
}

// Seed inserts items so that List returns them in the given order. Invalid
// items are skipped with a warning.
func (r *Repository) Seed(ctx context.Context, items []core.Invoice) error {
	for i := len(items) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Upsert(ctx, items[i]); err != nil {
			r.logger.WarnContext(ctx, "Skipping seed invoice",
				log.FieldInvoiceNumber, items[i].InvoiceNumber,
				log.FieldError, err)
		}
	}
	return nil
}
