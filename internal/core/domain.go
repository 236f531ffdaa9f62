package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	StatusOpen   Status = "Open"
	StatusPaid   Status = "Paid"
	StatusDenied Status = "Denied"
)

const (
	MinAccountNameLength = 2
	MaxNotesLength       = 300

	// ServiceDateLayout is the ISO calendar date used for service dates.
	ServiceDateLayout = "2006-01-02"
)

type (
	Status string

	// Invoice is a single billing record. Every save replaces the whole record.
	Invoice struct {
		ID            string
		AccountName   string
		InvoiceNumber string // INV-#### (upper case)
		ServiceDate   string // YYYY-MM-DD
		AmountCents   int64
		Status        Status
		Notes         string // empty means no notes
		UpdatedAt     int64  // epoch milliseconds
	}
)

var (
	ErrEmptyID              = errors.New("empty invoice id")
	ErrAccountNameTooShort  = errors.New("account name too short")
	ErrInvalidInvoiceNumber = errors.New("invalid invoice number")
	ErrInvalidServiceDate   = errors.New("invalid service date")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrNotesTooLong         = errors.New("notes too long")
	ErrInvalidTimestamp     = errors.New("invalid updated-at timestamp")
)

var (
	invoiceNumberRe = regexp.MustCompile(`^INV-\d{4,}$`)
	serviceDateRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusOpen, StatusPaid, StatusDenied}
}

// ParseStatus maps user input to a Status, ignoring case.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses() {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusPaid, StatusDenied:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// NormalizeInvoiceNumber trims and upper-cases an invoice number.
func NormalizeInvoiceNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidInvoiceNumber reports whether s has the INV-#### shape, ignoring case.
func ValidInvoiceNumber(s string) bool {
	return invoiceNumberRe.MatchString(NormalizeInvoiceNumber(s))
}

// ValidServiceDate reports whether s is YYYY-MM-DD and names a real day.
func ValidServiceDate(s string) bool {
	if !serviceDateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(ServiceDateLayout, s)
	return err == nil
}

// UpdatedTime returns UpdatedAt as a time.Time.
func (inv Invoice) UpdatedTime() time.Time {
	return time.UnixMilli(inv.UpdatedAt)
}

// HasNotes reports whether the invoice carries free-text notes.
func (inv Invoice) HasNotes() bool {
	return inv.Notes != ""
}

func (inv Invoice) Validate() error {
	if strings.TrimSpace(inv.ID) == "" {
		return ErrEmptyID
	}
	if utf8.RuneCountInString(strings.TrimSpace(inv.AccountName)) < MinAccountNameLength {
		return ErrAccountNameTooShort
	}
	if !invoiceNumberRe.MatchString(inv.InvoiceNumber) {
		return ErrInvalidInvoiceNumber
	}
	if !ValidServiceDate(inv.ServiceDate) {
		return ErrInvalidServiceDate
	}
	if inv.AmountCents < 0 {
		return ErrInvalidAmount
	}
	if !inv.Status.Valid() {
		return ErrInvalidStatus
	}
	if utf8.RuneCountInString(inv.Notes) > MaxNotesLength {
		return ErrNotesTooLong
	}
	if inv.UpdatedAt <= 0 {
		return ErrInvalidTimestamp
	}
	return nil
}
