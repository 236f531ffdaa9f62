package forms

import (
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"billing/internal/core"
)

// Field names shared by the form, the templates and the error map.
const (
	FieldAccountName   = "accountName"
	FieldInvoiceNumber = "invoiceNumber"
	FieldServiceDate   = "serviceDate"
	FieldAmount        = "amountDollars"
	FieldStatus        = "status"
	FieldNotes         = "notes"
)

const (
	MsgAccountName   = "Account name must be at least 2 characters"
	MsgInvoiceNumber = "Use format like INV-1001"
	MsgServiceDate   = "Use YYYY-MM-DD"
	MsgAmountNumber  = "Amount must be a number"
	MsgAmountZero    = "Amount must be greater than 0"
	MsgAmountLarge   = "Amount is too large"
	MsgStatus        = "Choose Open, Paid or Denied"
	MsgNotes         = "Notes must be <= 300 chars"
)

// Mode tells the controller whether it is creating or editing.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// InvoiceForm holds the raw text of the create/edit dialog.
type InvoiceForm struct {
	AccountName   string
	InvoiceNumber string
	ServiceDate   string
	Amount        string // decimal dollars
	Status        string
	Notes         string
}

// NewInvoiceForm returns the blank create form.
func NewInvoiceForm() InvoiceForm {
	return InvoiceForm{
		InvoiceNumber: "INV-",
		Status:        string(core.StatusOpen),
	}
}

// FormFromInvoice prefills the edit form from a stored invoice.
func FormFromInvoice(inv core.Invoice) InvoiceForm {
	return InvoiceForm{
		AccountName:   inv.AccountName,
		InvoiceNumber: inv.InvoiceNumber,
		ServiceDate:   inv.ServiceDate,
		Amount:        core.CentsToDollars(inv.AmountCents),
		Status:        string(inv.Status),
		Notes:         inv.Notes,
	}
}

// FormFromValues reads the dialog fields from a posted form.
func FormFromValues(v url.Values) InvoiceForm {
	return InvoiceForm{
		AccountName:   v.Get(FieldAccountName),
		InvoiceNumber: v.Get(FieldInvoiceNumber),
		ServiceDate:   v.Get(FieldServiceDate),
		Amount:        v.Get(FieldAmount),
		Status:        v.Get(FieldStatus),
		Notes:         v.Get(FieldNotes),
	}
}

// Validate applies the structural rules and returns one message per bad field.
func (f InvoiceForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if utf8.RuneCountInString(strings.TrimSpace(f.AccountName)) < core.MinAccountNameLength {
		errs.Add(FieldAccountName, MsgAccountName)
	}
	if !core.ValidInvoiceNumber(f.InvoiceNumber) {
		errs.Add(FieldInvoiceNumber, MsgInvoiceNumber)
	}
	if !core.ValidServiceDate(strings.TrimSpace(f.ServiceDate)) {
		errs.Add(FieldServiceDate, MsgServiceDate)
	}
	if _, err := core.ParseDollarsToCents(f.Amount); err != nil {
		switch {
		case errors.Is(err, core.ErrAmountNotPositive):
			errs.Add(FieldAmount, MsgAmountZero)
		case errors.Is(err, core.ErrAmountTooLarge):
			errs.Add(FieldAmount, MsgAmountLarge)
		default:
			errs.Add(FieldAmount, MsgAmountNumber)
		}
	}
	if _, err := core.ParseStatus(f.Status); err != nil {
		errs.Add(FieldStatus, MsgStatus)
	}
	if utf8.RuneCountInString(strings.TrimSpace(f.Notes)) > core.MaxNotesLength {
		errs.Add(FieldNotes, MsgNotes)
	}
	return errs
}

// Submit turns the form into a normalized invoice.
//
// In edit mode initial is required, its id is kept and an unchanged form is
// rejected with ErrUnchanged before any field is checked. Validation failures
// come back as FieldErrors. UpdatedAt is always set to now.
func (f InvoiceForm) Submit(mode Mode, initial *core.Invoice, now time.Time, newID func() string) (core.Invoice, error) {
	id := ""
	switch mode {
	case ModeEdit:
		if initial == nil {
			return core.Invoice{}, ErrMissingInitial
		}
		if f == FormFromInvoice(*initial) {
			return core.Invoice{}, ErrUnchanged
		}
		id = initial.ID
	default:
		id = newID()
	}

	if errs := f.Validate(); !errs.Empty() {
		return core.Invoice{}, errs
	}

	cents, _ := core.ParseDollarsToCents(f.Amount)
	status, _ := core.ParseStatus(f.Status)
	inv := core.Invoice{
		ID:            id,
		AccountName:   strings.TrimSpace(f.AccountName),
		InvoiceNumber: core.NormalizeInvoiceNumber(f.InvoiceNumber),
		ServiceDate:   strings.TrimSpace(f.ServiceDate),
		AmountCents:   cents,
		Status:        status,
		Notes:         strings.TrimSpace(f.Notes),
		UpdatedAt:     now.UnixMilli(),
	}
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	return inv, nil
}
