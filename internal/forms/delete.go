package forms

import (
	"strings"

	"billing/internal/core"
)

// DeleteConfirmation is the explicit confirm step shown before a delete.
type DeleteConfirmation struct {
	ID            string
	InvoiceNumber string
}

func ConfirmDelete(inv core.Invoice) DeleteConfirmation {
	return DeleteConfirmation{ID: inv.ID, InvoiceNumber: inv.InvoiceNumber}
}

func (d DeleteConfirmation) Title() string {
	return "Delete invoice?"
}

func (d DeleteConfirmation) Message() string {
	return "This will permanently remove " + d.InvoiceNumber + "."
}

// Confirmed reports whether the posted confirm value approves the delete.
// Anything else is treated as cancel.
func Confirmed(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "true", "1", "delete":
		return true
	}
	return false
}
