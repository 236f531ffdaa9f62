// Package memory is the default process-local invoice store.
package memory

import (
	"context"
	"slices"
	"sync"

	"billing/internal/core"
	"billing/internal/store"
)

var _ store.InvoiceStore = (*Store)(nil)

// Store keeps the collection as an immutable slice that is swapped on every
// mutation; readers get clones.
type Store struct {
	mu    sync.RWMutex
	items []core.Invoice
	rev   uint64
}

// New returns a store holding seed in the given order. Invalid seed entries
// are skipped.
func New(seed ...core.Invoice) *Store {
	items := make([]core.Invoice, 0, len(seed))
	for _, inv := range seed {
		if inv.Validate() != nil || slices.ContainsFunc(items, sameID(inv.ID)) {
			continue
		}
		items = append(items, inv)
	}
	return &Store{items: items}
}

func sameID(id string) func(core.Invoice) bool {
	return func(inv core.Invoice) bool { return inv.ID == id }
}

func (s *Store) List(_ context.Context) ([]core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items), nil
}

func (s *Store) Get(_ context.Context, id string) (core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.items, sameID(id))
	if i < 0 {
		return core.Invoice{}, store.ErrNotFound
	}
	return s.items[i], nil
}

func (s *Store) Upsert(_ context.Context, inv core.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var next []core.Invoice
	if i := slices.IndexFunc(s.items, sameID(inv.ID)); i >= 0 {
		next = slices.Clone(s.items)
		next[i] = inv
	} else {
		next = make([]core.Invoice, 0, len(s.items)+1)
		next = append(next, inv)
		next = append(next, s.items...)
	}
	s.items = next
	s.rev++
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.ContainsFunc(s.items, sameID(id)) {
		return nil
	}
	s.items = slices.DeleteFunc(slices.Clone(s.items), sameID(id))
	s.rev++
	return nil
}

func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}
