package amqp

import (
	"encoding/json"
	"time"

	"billing/internal/core"
)

// Event types published on every invoice change.
const (
	EventInvoiceUpserted = "invoice.upserted"
	EventInvoiceDeleted  = "invoice.deleted"
)

// InvoiceEvent announces a change to the invoice collection. Deletes carry
// only the id.
type InvoiceEvent struct {
	Type          string    `json:"type"`
	ID            string    `json:"id"`
	InvoiceNumber string    `json:"invoice_number,omitempty"`
	Status        string    `json:"status,omitempty"`
	AmountCents   int64     `json:"amount_cents,omitempty"`
	UpdatedAt     int64     `json:"updated_at,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewInvoiceUpsertedEvent(inv core.Invoice) *InvoiceEvent {
	return &InvoiceEvent{
		Type:          EventInvoiceUpserted,
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Status:        string(inv.Status),
		AmountCents:   inv.AmountCents,
		UpdatedAt:     inv.UpdatedAt,
		Timestamp:     time.Now(),
	}
}

func NewInvoiceDeletedEvent(id string) *InvoiceEvent {
	return &InvoiceEvent{
		Type:      EventInvoiceDeleted,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvoiceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvoiceEventFromJSON creates a message from JSON bytes
func InvoiceEventFromJSON(data []byte) (*InvoiceEvent, error) {
	var msg InvoiceEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
