package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"billing/internal/core"
	"billing/internal/forms"
	"billing/internal/services"
	"billing/internal/store"
	"billing/internal/store/memory"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...Option) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New(store.SeedInvoices(testNow)...)
	svc := services.NewInvoiceService(st,
		services.WithClock(func() time.Time { return testNow }),
		services.WithIDGenerator(func() string { return "new-id" }),
	)
	srv := NewServer(":0", svc, opts...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	if srv.templates == nil {
		t.Fatal("templates not loaded")
	}
	return srv, st
}

func do(t *testing.T, srv *Server, method, target string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func invoiceValues(inv core.Invoice) url.Values {
	f := forms.FormFromInvoice(inv)
	return url.Values{
		forms.FieldAccountName:   {f.AccountName},
		forms.FieldInvoiceNumber: {f.InvoiceNumber},
		forms.FieldServiceDate:   {f.ServiceDate},
		forms.FieldAmount:        {f.Amount},
		forms.FieldStatus:        {f.Status},
		forms.FieldNotes:         {f.Notes},
	}
}

func mustGet(t *testing.T, st *memory.Store, id string) core.Invoice {
	t.Helper()
	inv, err := st.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", id, err)
	}
	return inv
}

func count(t *testing.T, st *memory.Store) int {
	t.Helper()
	items, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	return len(items)
}

func TestIndexRendersDashboard(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"Billing UI Demo",
		"+ Add invoice",
		"Search account or invoice #",
		"All statuses",
		"Total amount (demo)",
		"$2,523.25",
		"Open invoices",
		"Denied invoices",
		"6 shown",
		"INV-1001",
		"Maple Dental Group",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("security headers not applied")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	if rr := do(t, srv, http.MethodGet, "/nope", nil, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestInvoiceTableFilters(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name    string
		query   string
		want    []string
		notWant []string
	}{
		{
			name:    "query matches account name",
			query:   "q=northwind",
			want:    []string{"INV-1001", "1 shown"},
			notWant: []string{"INV-1002"},
		},
		{
			name:    "query matches invoice number",
			query:   "q=inv-1005",
			want:    []string{"Lakeside Imaging", "1 shown"},
			notWant: []string{"INV-1004"},
		},
		{
			name:    "status filter",
			query:   "status=Denied",
			want:    []string{"INV-1003", "1 shown"},
			notWant: []string{"INV-1001"},
		},
		{
			name:  "empty result",
			query: "q=zzz",
			want:  []string{"No results. Try changing filters.", "0 shown"},
		},
		{
			name:  "invalid params fall back to defaults",
			query: "status=Bogus&sort=nope&dir=sideways",
			want:  []string{"6 shown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, "/invoices/table?"+tt.query, nil, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			body := rr.Body.String()
			for _, w := range tt.want {
				if !strings.Contains(body, w) {
					t.Errorf("body missing %q", w)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(body, nw) {
					t.Errorf("body unexpectedly contains %q", nw)
				}
			}
			if strings.Contains(body, "<html") {
				t.Error("table partial rendered a full page")
			}
		})
	}
}

func TestInvoiceTableSort(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/invoices/table?sort=amountCents&dir=asc", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()

	// 7800 < 9950 < 12500
	i1006 := strings.Index(body, "INV-1006")
	i1003 := strings.Index(body, "INV-1003")
	i1001 := strings.Index(body, "INV-1001")
	if !(i1006 >= 0 && i1006 < i1003 && i1003 < i1001) {
		t.Errorf("rows not sorted by amount ascending: %d %d %d", i1006, i1003, i1001)
	}
	if !strings.Contains(body, `aria-sort="ascending"`) || !strings.Contains(body, "↑") {
		t.Error("active column should show the ascending icon")
	}
	// Clicking the active column flips it.
	if !strings.Contains(body, "dir=desc&amp;sort=amountCents") {
		t.Error("active column link should toggle to descending")
	}
	// Any other column starts ascending.
	if !strings.Contains(body, "dir=asc&amp;sort=accountName") {
		t.Error("inactive column link should start ascending")
	}
}

func TestNewInvoiceDialog(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/invoices/new", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"New invoice", `hx-post="/invoices"`, `value="INV-"`} {
		if !strings.Contains(body, want) {
			t.Errorf("dialog missing %q", want)
		}
	}
}

func TestCreateInvoice(t *testing.T) {
	srv, st := newTestServer(t)

	form := url.Values{
		forms.FieldAccountName:   {"Acme Corp"},
		forms.FieldInvoiceNumber: {"inv-2001"},
		forms.FieldServiceDate:   {"2024-03-01"},
		forms.FieldAmount:        {"12.5"},
		forms.FieldStatus:        {"paid"},
		forms.FieldNotes:         {"  first visit  "},
	}
	rr := do(t, srv, http.MethodPost, "/invoices", form, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{EventInvoiceSaved, EventDialogClose, EventShowNotification, "INV-2001"} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %q: %s", want, trigger)
		}
	}

	if n := count(t, st); n != 7 {
		t.Fatalf("store has %d invoices, want 7", n)
	}
	items, _ := st.List(context.Background())
	got := items[0]
	want := core.Invoice{
		ID:            "new-id",
		AccountName:   "Acme Corp",
		InvoiceNumber: "INV-2001",
		ServiceDate:   "2024-03-01",
		AmountCents:   1250,
		Status:        core.StatusPaid,
		Notes:         "first visit",
		UpdatedAt:     testNow.UnixMilli(),
	}
	if got != want {
		t.Errorf("new invoice = %+v, want %+v", got, want)
	}
}

func TestCreateInvoiceJSON(t *testing.T) {
	srv, st := newTestServer(t)

	body := `{"accountName":"Acme Corp","invoiceNumber":"INV-3001","serviceDate":"2024-03-02","amountDollars":99.99,"status":"Open"}`
	req := httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := mustGet(t, st, "new-id").AmountCents; got != 9999 {
		t.Errorf("AmountCents = %d, want 9999", got)
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	srv, st := newTestServer(t)

	form := url.Values{
		forms.FieldAccountName:   {"A"},
		forms.FieldInvoiceNumber: {"1001"},
		forms.FieldServiceDate:   {"2024-02-30"},
		forms.FieldAmount:        {"abc"},
		forms.FieldStatus:        {"Pending"},
	}
	rr := do(t, srv, http.MethodPost, "/invoices", form, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		forms.MsgAccountName,
		forms.MsgInvoiceNumber,
		forms.MsgServiceDate,
		forms.MsgAmountNumber,
		forms.MsgStatus,
		`value="A"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("422 body missing %q", want)
		}
	}
	if rr.Header().Get("HX-Trigger") != "" {
		t.Error("failed create must not trigger a table reload")
	}
	if n := count(t, st); n != 6 {
		t.Errorf("store has %d invoices, want 6", n)
	}
}

func TestEditInvoiceDialog(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/invoices/seed-1/edit", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Edit invoice", `value="Northwind Clinic"`, `value="125.00"`, `hx-post="/invoices/seed-1"`} {
		if !strings.Contains(body, want) {
			t.Errorf("edit dialog missing %q", want)
		}
	}

	if rr := do(t, srv, http.MethodGet, "/invoices/missing/edit", nil, nil); rr.Code != http.StatusNotFound {
		t.Errorf("missing invoice status = %d, want 404", rr.Code)
	}
}

func TestUpdateInvoice(t *testing.T) {
	srv, st := newTestServer(t)
	original := mustGet(t, st, "seed-1")

	t.Run("unchanged", func(t *testing.T) {
		rev := st.Revision()
		rr := do(t, srv, http.MethodPost, "/invoices/seed-1", invoiceValues(original), nil)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "No changes to save") {
			t.Error("body missing unchanged message")
		}
		if st.Revision() != rev {
			t.Error("unchanged edit must not touch the store")
		}
	})

	t.Run("changed", func(t *testing.T) {
		values := invoiceValues(original)
		values.Set(forms.FieldAmount, "130")
		values.Set(forms.FieldStatus, "Paid")
		rr := do(t, srv, http.MethodPost, "/invoices/seed-1", values, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
		}
		if !strings.Contains(rr.Header().Get("HX-Trigger"), EventInvoiceSaved) {
			t.Error("missing invoice:saved trigger")
		}
		got := mustGet(t, st, "seed-1")
		if got.AmountCents != 13000 || got.Status != core.StatusPaid {
			t.Errorf("updated invoice = %+v", got)
		}
		if got.UpdatedAt != testNow.UnixMilli() {
			t.Errorf("UpdatedAt = %d, want %d", got.UpdatedAt, testNow.UnixMilli())
		}
	})

	t.Run("invalid", func(t *testing.T) {
		values := invoiceValues(original)
		values.Set(forms.FieldAmount, "0")
		rr := do(t, srv, http.MethodPost, "/invoices/seed-1", values, nil)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), forms.MsgAmountZero) {
			t.Error("body missing amount message")
		}
	})

	t.Run("missing", func(t *testing.T) {
		rr := do(t, srv, http.MethodPost, "/invoices/missing", invoiceValues(original), nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rr.Code)
		}
	})
}

func TestDeleteInvoice(t *testing.T) {
	srv, st := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/invoices/seed-2/delete", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm status = %d", rr.Code)
	}
	for _, want := range []string{"Delete invoice?", "This will permanently remove INV-1002."} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("confirm dialog missing %q", want)
		}
	}

	rr = do(t, srv, http.MethodPost, "/invoices/seed-2/delete", url.Values{"confirm": {"no"}}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rr.Code)
	}
	if trigger := rr.Header().Get("HX-Trigger"); strings.Contains(trigger, EventInvoiceDeleted) || !strings.Contains(trigger, EventDialogClose) {
		t.Errorf("cancel trigger = %s", trigger)
	}
	if n := count(t, st); n != 6 {
		t.Fatalf("cancel deleted an invoice, %d left", n)
	}

	rr = do(t, srv, http.MethodPost, "/invoices/seed-2/delete", url.Values{"confirm": {"yes"}}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventInvoiceDeleted) {
		t.Error("missing invoice:deleted trigger")
	}
	if _, err := st.Get(context.Background(), "seed-2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("seed-2 still present, err = %v", err)
	}

	rr = do(t, srv, http.MethodPost, "/invoices/seed-2/delete", url.Values{"confirm": {"yes"}}, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("deleting a missing invoice status = %d, want 200", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/invoices/seed-2/delete", nil, nil); rr.Code != http.StatusNotFound {
		t.Errorf("confirm for missing invoice status = %d, want 404", rr.Code)
	}
}

func TestRegister(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/register", nil, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Create your account") {
		t.Fatalf("register page status = %d", rr.Code)
	}

	htmx := map[string]string{"HX-Request": "true"}

	t.Run("invalid", func(t *testing.T) {
		form := url.Values{
			forms.FieldName:            {"Ada"},
			forms.FieldEmail:           {"not-an-email"},
			forms.FieldPassword:        {"abcdefgh"},
			forms.FieldConfirmPassword: {"abcdefgh"},
		}
		rr := do(t, srv, http.MethodPost, "/register", form, htmx)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rr.Code)
		}
		body := rr.Body.String()
		// html/template escapes the "+" in the password message.
		if !strings.Contains(body, forms.MsgEmail) || !strings.Contains(body, "Password must be 8") {
			t.Error("missing field errors")
		}
		if strings.Contains(body, "abcdefgh") {
			t.Error("password echoed back")
		}
		if strings.Contains(body, "<html") {
			t.Error("htmx request should get the form partial")
		}
	})

	t.Run("valid", func(t *testing.T) {
		form := url.Values{
			forms.FieldName:            {"Ada Lovelace"},
			forms.FieldEmail:           {"Ada@Example.com"},
			forms.FieldPassword:        {"abc12345"},
			forms.FieldConfirmPassword: {"abc12345"},
		}
		rr := do(t, srv, http.MethodPost, "/register", form, htmx)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
		}
		if !strings.Contains(rr.Body.String(), "Account created for ada@example.com") {
			t.Error("missing confirmation")
		}
		if !strings.Contains(rr.Header().Get("HX-Trigger"), EventShowNotification) {
			t.Error("missing notification trigger")
		}
	})
}

func TestHealthReadyMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ready"`) {
		t.Errorf("readyz = %d %s", rr.Code, rr.Body.String())
	}

	do(t, srv, http.MethodGet, "/invoices/table", nil, nil)
	do(t, srv, http.MethodGet, "/invoices/table", nil, nil)

	rr = do(t, srv, http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"# TYPE http_requests_total counter",
		"\ninvoices 6\n",
		"view_cache_hits_total 1",
		"rate_limited_requests_total 0",
		"uptime_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestReadyzReportsFailingCheck(t *testing.T) {
	srv, _ := newTestServer(t, WithReadinessCheck("sqlite", func(context.Context) error {
		return errors.New("database is closed")
	}))

	rr := do(t, srv, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "database is closed") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestRateLimitOnPost(t *testing.T) {
	srv, _ := newTestServer(t, WithRateLimit(1))
	cancel := url.Values{"confirm": {"no"}}

	if rr := do(t, srv, http.MethodPost, "/invoices/seed-1/delete", cancel, nil); rr.Code != http.StatusOK {
		t.Fatalf("first post status = %d", rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/invoices/seed-1/delete", cancel, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second post status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	// GETs are not counted.
	if rr := do(t, srv, http.MethodGet, "/", nil, nil); rr.Code != http.StatusOK {
		t.Errorf("GET after limit status = %d", rr.Code)
	}
}

func TestViewCacheFollowsRevision(t *testing.T) {
	srv, st := newTestServer(t)

	do(t, srv, http.MethodGet, "/invoices/table?q=acme", nil, nil)
	if got := srv.viewCache.Stats().Hits; got != 0 {
		t.Fatalf("hits = %d, want 0", got)
	}
	rr := do(t, srv, http.MethodGet, "/invoices/table?q=acme", nil, nil)
	if !strings.Contains(rr.Body.String(), "0 shown") {
		t.Fatal("expected empty view")
	}
	if got := srv.viewCache.Stats().Hits; got != 1 {
		t.Fatalf("hits = %d, want 1", got)
	}

	inv := mustGet(t, st, "seed-1")
	inv.AccountName = "Acme Northwind"
	if err := st.Upsert(context.Background(), inv); err != nil {
		t.Fatal(err)
	}

	rr = do(t, srv, http.MethodGet, "/invoices/table?q=acme", nil, nil)
	if !strings.Contains(rr.Body.String(), "1 shown") {
		t.Error("view not recomputed after the store changed")
	}
}

func TestCreateInvoiceOversizedBody(t *testing.T) {
	srv, st := newTestServer(t)
	form := invoiceValues(core.Invoice{
		AccountName:   "Oversized Clinic",
		InvoiceNumber: "INV-9001",
		ServiceDate:   "2024-03-01",
		AmountCents:   1000,
		Status:        core.StatusOpen,
	})
	form.Set(forms.FieldNotes, strings.Repeat("n", maxBodyBytes))

	rr := do(t, srv, http.MethodPost, "/invoices", form, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if n := count(t, st); n != 6 {
		t.Errorf("store has %d invoices, want 6", n)
	}
}

// cancelAwareStore fails reads on a cancelled context, as the sqlite engine does.
type cancelAwareStore struct {
	*memory.Store
}

func (s cancelAwareStore) List(ctx context.Context) ([]core.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.List(ctx)
}

func TestCachedViewOutlivesCallerContext(t *testing.T) {
	st := cancelAwareStore{memory.New(store.SeedInvoices(testNow)...)}
	srv := NewServer(":0", services.NewInvoiceService(st))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := srv.cachedView(ctx, core.DefaultViewState())
	if err != nil {
		t.Fatalf("cachedView() error = %v, want nil for a disconnected caller", err)
	}
	if len(items) != 6 {
		t.Errorf("cachedView() returned %d invoices, want 6", len(items))
	}

	// the shared result is cached for the next caller
	if _, err := srv.cachedView(context.Background(), core.DefaultViewState()); err != nil {
		t.Fatal(err)
	}
	if got := srv.viewCache.Stats().Hits; got != 1 {
		t.Errorf("hits = %d, want 1", got)
	}
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/static/app.css", "/static/app.js"} {
		rr := do(t, srv, http.MethodGet, path, nil, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
		if !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
			t.Errorf("%s Cache-Control = %q", path, rr.Header().Get("Cache-Control"))
		}
	}
}
