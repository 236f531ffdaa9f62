package sqlite

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"billing/internal/core"
	"billing/internal/store"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	repo, err := Open(context.Background(), name, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func invoice(id, number string, updated int64) core.Invoice {
	return core.Invoice{
		ID:            id,
		AccountName:   "Acme Health",
		InvoiceNumber: number,
		ServiceDate:   "2024-03-15",
		AmountCents:   1000,
		Status:        core.StatusOpen,
		UpdatedAt:     updated,
	}
}

func listIDs(t *testing.T, r *Repository) []string {
	t.Helper()
	items, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	out := make([]string, len(items))
	for i, inv := range items {
		out[i] = inv.ID
	}
	return out
}

func TestDSNIsAlwaysInMemory(t *testing.T) {
	for _, name := range []string{"", "billing", "data/billing.db"} {
		if dsn := DSN(name); !strings.Contains(dsn, "mode=memory") {
			t.Errorf("DSN(%q) = %q, want in-memory", name, dsn)
		}
	}
}

func TestOpenStartsEmpty(t *testing.T) {
	r := openTestRepo(t)
	if ids := listIDs(t, r); len(ids) != 0 {
		t.Errorf("List() = %v, want empty", ids)
	}
	if err := r.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestUpsertOrdering(t *testing.T) {
	ctx := context.Background()
	r := openTestRepo(t)

	for _, inv := range []core.Invoice{invoice("a", "INV-1001", 1), invoice("b", "INV-1002", 2), invoice("c", "INV-1003", 3)} {
		if err := r.Upsert(ctx, inv); err != nil {
			t.Fatalf("Upsert(%s) error = %v", inv.ID, err)
		}
	}
	if got, want := listIDs(t, r), []string{"c", "b", "a"}; !slices.Equal(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}

	updated := invoice("b", "INV-2002", 10)
	updated.Status = core.StatusDenied
	updated.Notes = "resubmit"
	if err := r.Upsert(ctx, updated); err != nil {
		t.Fatalf("Upsert(update) error = %v", err)
	}
	if got, want := listIDs(t, r), []string{"c", "b", "a"}; !slices.Equal(got, want) {
		t.Errorf("update moved the row: %v", got)
	}

	got, err := r.Get(ctx, "b")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != updated {
		t.Errorf("Get() = %+v, want %+v", got, updated)
	}
	if r.Revision() != 4 {
		t.Errorf("Revision() = %d, want 4", r.Revision())
	}
}

func TestUpsertRejectsInvalid(t *testing.T) {
	r := openTestRepo(t)
	bad := invoice("a", "INV-1001", 1)
	bad.Status = "Pending"
	if err := r.Upsert(context.Background(), bad); !errors.Is(err, core.ErrInvalidStatus) {
		t.Errorf("Upsert() error = %v, want ErrInvalidStatus", err)
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	r := openTestRepo(t)
	_ = r.Upsert(ctx, invoice("a", "INV-1001", 1))

	if err := r.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := r.Get(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	rev := r.Revision()
	if err := r.Delete(ctx, "a"); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
	if r.Revision() != rev {
		t.Error("no-op delete bumped revision")
	}
}

func TestSeedKeepsOrder(t *testing.T) {
	ctx := context.Background()
	r := openTestRepo(t)
	seed := []core.Invoice{invoice("x", "INV-1001", 3), invoice("bad", "nope", 2), invoice("y", "INV-1002", 1)}

	if err := r.Seed(ctx, seed); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if got, want := listIDs(t, r), []string{"x", "y"}; !slices.Equal(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestSeparateNamesAreIsolated(t *testing.T) {
	ctx := context.Background()
	one, err := Open(ctx, "isolated-one", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer one.Close()
	two, err := Open(ctx, "isolated-two", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer two.Close()

	_ = one.Upsert(ctx, invoice("a", "INV-1001", 1))
	if ids := listIDs(t, two); len(ids) != 0 {
		t.Errorf("second database sees %v", ids)
	}
}
