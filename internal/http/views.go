package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"billing/internal/core"
	"billing/internal/forms"
	"billing/internal/log"
)

const pageTitle = "Billing UI Demo"

type pageData struct {
	Title    string
	Panel    panelData
	Statuses []core.Status
}

// panelData feeds the KPI strip and the table; both are swapped together.
type panelData struct {
	Summary core.Summary
	Items   []core.Invoice
	State   core.ViewState
	Columns []columnHeader
}

func (p panelData) Shown() int {
	return len(p.Items)
}

type columnHeader struct {
	Label    string
	Sortable bool
	Active   bool
	Icon     string
	AriaSort string
	Href     string
}

var columnLabels = map[core.SortField]string{
	core.FieldInvoiceNumber: "Invoice #",
	core.FieldAccountName:   "Account",
	core.FieldServiceDate:   "Service date",
	core.FieldAmountCents:   "Amount",
	core.FieldStatus:        "Status",
	core.FieldUpdatedAt:     "Updated",
}

// buildColumns computes each header's icon and the link that applies its toggle.
func buildColumns(state core.ViewState) []columnHeader {
	cols := make([]columnHeader, 0, len(columnLabels)+1)
	for _, f := range core.SortFields() {
		next := state
		next.Sort = state.Sort.Toggle(f)
		col := columnHeader{
			Label:    columnLabels[f],
			Sortable: true,
			Icon:     "↕",
			AriaSort: "none",
			Href:     "/invoices/table?" + ViewStateQuery(next).Encode(),
		}
		if state.Sort.Field == f {
			col.Active = true
			if state.Sort.Direction == core.Asc {
				col.Icon, col.AriaSort = "↑", "ascending"
			} else {
				col.Icon, col.AriaSort = "↓", "descending"
			}
		}
		cols = append(cols, col)
	}
	return append(cols, columnHeader{Label: "Actions"})
}

type invoiceFormData struct {
	Title       string
	Mode        forms.Mode
	Action      string
	SubmitLabel string
	Form        forms.InvoiceForm
	Errors      forms.FieldErrors
	Message     string
	Statuses    []core.Status
}

func newInvoiceFormData(mode forms.Mode, id string, form forms.InvoiceForm) invoiceFormData {
	d := invoiceFormData{
		Mode:     mode,
		Form:     form,
		Errors:   forms.FieldErrors{},
		Statuses: core.Statuses(),
	}
	if mode == forms.ModeEdit {
		d.Title = "Edit invoice"
		d.Action = "/invoices/" + id
		d.SubmitLabel = "Save changes"
	} else {
		d.Title = "New invoice"
		d.Action = "/invoices"
		d.SubmitLabel = "Create invoice"
	}
	return d
}

type registerData struct {
	Title   string
	Form    forms.RegistrationForm
	Errors  forms.FieldErrors
	Account *core.Account
}

// buildPanel loads the cached view for state plus the KPIs of the whole collection.
func (s *Server) buildPanel(ctx context.Context, state core.ViewState) (panelData, error) {
	items, err := s.cachedView(ctx, state)
	if err != nil {
		return panelData{}, err
	}
	summary, err := s.svc.Summary(ctx)
	if err != nil {
		return panelData{}, err
	}
	return panelData{
		Summary: summary,
		Items:   items,
		State:   state,
		Columns: buildColumns(state),
	}, nil
}

// cachedView returns the filtered and sorted table for state. Concurrent
// misses share one computation, so it must not die with the first caller's
// request.
func (s *Server) cachedView(ctx context.Context, state core.ViewState) ([]core.Invoice, error) {
	key := viewCacheKey(s.svc.Revision(), state)
	shared := context.WithoutCancel(ctx)
	return s.viewCache.GetOrCompute(key, func() ([]core.Invoice, error) {
		return s.svc.View(shared, state)
	})
}

// render executes name into a buffer first so a template error still yields a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func notFoundMessage(id string) string {
	return fmt.Sprintf("Invoice %s not found", id)
}
