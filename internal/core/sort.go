package core

import (
	"cmp"
	"errors"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortField names a sortable invoice column.
type SortField int

const (
	FieldUpdatedAt SortField = iota
	FieldInvoiceNumber
	FieldAccountName
	FieldServiceDate
	FieldAmountCents
	FieldStatus
)

// Direction is the sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

var (
	ErrUnknownSortField = errors.New("unknown sort field")
	ErrUnknownDirection = errors.New("unknown sort direction")
)

var sortFieldKeys = map[SortField]string{
	FieldUpdatedAt:     "updatedAt",
	FieldInvoiceNumber: "invoiceNumber",
	FieldAccountName:   "accountName",
	FieldServiceDate:   "serviceDate",
	FieldAmountCents:   "amountCents",
	FieldStatus:        "status",
}

// SortFields lists the sortable columns in table order.
func SortFields() []SortField {
	return []SortField{FieldInvoiceNumber, FieldAccountName, FieldServiceDate, FieldAmountCents, FieldStatus, FieldUpdatedAt}
}

// Key is the stable query-string name of the field.
func (f SortField) Key() string {
	return sortFieldKeys[f]
}

func (f SortField) String() string {
	return f.Key()
}

// ParseSortField maps a query-string key to a SortField.
func ParseSortField(key string) (SortField, error) {
	key = strings.TrimSpace(key)
	for f, k := range sortFieldKeys {
		if strings.EqualFold(k, key) {
			return f, nil
		}
	}
	return 0, ErrUnknownSortField
}

// ParseDirection maps "asc"/"desc" to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	}
	return "", ErrUnknownDirection
}

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// comparator returns the ascending comparison for the field. Numeric fields
// compare numerically; text fields use the collator.
func (f SortField) comparator(c *collate.Collator) func(a, b Invoice) int {
	text := func(get func(Invoice) string) func(a, b Invoice) int {
		return func(a, b Invoice) int { return c.CompareString(get(a), get(b)) }
	}
	switch f {
	case FieldAmountCents:
		return func(a, b Invoice) int { return cmp.Compare(a.AmountCents, b.AmountCents) }
	case FieldUpdatedAt:
		return func(a, b Invoice) int { return cmp.Compare(a.UpdatedAt, b.UpdatedAt) }
	case FieldInvoiceNumber:
		return text(func(i Invoice) string { return i.InvoiceNumber })
	case FieldAccountName:
		return text(func(i Invoice) string { return i.AccountName })
	case FieldServiceDate:
		return text(func(i Invoice) string { return i.ServiceDate })
	case FieldStatus:
		return text(func(i Invoice) string { return string(i.Status) })
	}
	return func(a, b Invoice) int { return 0 }
}

// SortBy returns a sorted copy of items; items is left untouched.
// Desc reverses the stable ascending order.
func SortBy(items []Invoice, field SortField, dir Direction) []Invoice {
	out := slices.Clone(items)
	// Collators keep scratch buffers, so each call gets its own.
	c := collate.New(language.AmericanEnglish)
	slices.SortStableFunc(out, field.comparator(c))
	if dir == Desc {
		slices.Reverse(out)
	}
	return out
}
