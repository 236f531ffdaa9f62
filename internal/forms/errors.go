// Package forms maps raw user-entered text to validated domain values.
//
// Controllers here never touch storage; they either return a normalized value
// or FieldErrors carrying one human-readable message per invalid field.
package forms

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrUnchanged is returned when an edit submits exactly the initial values.
	ErrUnchanged = errors.New("no changes to save")
	// ErrMissingInitial is returned when an edit is submitted without the record being edited.
	ErrMissingInitial = errors.New("edit requires the original invoice")
)

// FieldErrors maps a form field name to its message. A non-empty FieldErrors is an error.
type FieldErrors map[string]string

func (fe FieldErrors) Add(field, msg string) {
	if _, exists := fe[field]; !exists {
		fe[field] = msg
	}
}

func (fe FieldErrors) Get(field string) string {
	return fe[field]
}

func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + fe[f]
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// AsFieldErrors extracts FieldErrors from err, if any.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
