package http

import (
	"errors"
	"net/http"

	"billing/internal/core"
	"billing/internal/forms"
	"billing/internal/log"
	"billing/internal/store"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	state := ParseViewState(r.URL.Query())
	panel, err := s.buildPanel(r.Context(), state)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to load invoices", log.FieldOperation, log.OpList, log.FieldError, err)
		InternalServerError("Could not load invoices").Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "index.html", pageData{
		Title:    pageTitle,
		Panel:    panel,
		Statuses: core.Statuses(),
	})
}

// handleInvoiceTable renders the KPI strip and table for the requested view.
func (s *Server) handleInvoiceTable(w http.ResponseWriter, r *http.Request) {
	state := ParseViewState(r.URL.Query())
	panel, err := s.buildPanel(r.Context(), state)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to load invoices", log.FieldOperation, log.OpList, log.FieldError, err)
		InternalServerError("Could not load invoices").Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "invoice_panel", panel)
}

func (s *Server) handleNewInvoice(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "invoice_form", newInvoiceFormData(forms.ModeCreate, "", forms.NewInvoiceForm()))
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	form := forms.FormFromValues(p.Values())

	inv, err := s.svc.Create(r.Context(), form)
	if err != nil {
		s.writeSaveError(w, r, forms.ModeCreate, "", form, err)
		return
	}
	s.invoicesSaved.Add(1)
	NewHTMXResponse().
		TriggerInvoiceSaved(inv.ID, inv.InvoiceNumber).
		TriggerDialogClose().
		TriggerSuccessNotification("Invoice " + inv.InvoiceNumber + " created").
		Write(w)
}

func (s *Server) handleEditInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inv, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, r, id, err)
		return
	}
	s.render(w, r, http.StatusOK, "invoice_form", newInvoiceFormData(forms.ModeEdit, inv.ID, forms.FormFromInvoice(inv)))
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	form := forms.FormFromValues(p.Values())

	inv, err := s.svc.Update(r.Context(), id, form)
	if err != nil {
		s.writeSaveError(w, r, forms.ModeEdit, id, form, err)
		return
	}
	s.invoicesSaved.Add(1)
	NewHTMXResponse().
		TriggerInvoiceSaved(inv.ID, inv.InvoiceNumber).
		TriggerDialogClose().
		TriggerSuccessNotification("Invoice " + inv.InvoiceNumber + " updated").
		Write(w)
}

func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inv, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, r, id, err)
		return
	}
	s.render(w, r, http.StatusOK, "confirm_delete", forms.ConfirmDelete(inv))
}

// handleDeleteInvoice deletes only when confirm is affirmative; anything else
// just closes the dialog. A missing id is not an error.
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	if !forms.Confirmed(p.Get("confirm")) {
		NewHTMXResponse().TriggerDialogClose().Write(w)
		return
	}

	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to delete invoice",
			log.FieldInvoiceID, id,
			log.FieldOperation, log.OpDelete,
			log.FieldError, err)
		InternalServerError("Could not delete invoice").Write(w)
		return
	}
	s.invoicesDeleted.Add(1)
	NewHTMXResponse().
		TriggerInvoiceDeleted(id).
		TriggerDialogClose().
		TriggerSuccessNotification("Invoice deleted").
		Write(w)
}

// writeSaveError maps a create/edit failure to a response: validation and
// no-op edits re-render the dialog with 422.
func (s *Server) writeSaveError(w http.ResponseWriter, r *http.Request, mode forms.Mode, id string, form forms.InvoiceForm, err error) {
	data := newInvoiceFormData(mode, id, form)
	if fe, ok := forms.AsFieldErrors(err); ok {
		data.Errors = fe
		s.render(w, r, http.StatusUnprocessableEntity, "invoice_form", data)
		return
	}
	switch {
	case errors.Is(err, forms.ErrUnchanged):
		data.Message = "No changes to save"
		s.render(w, r, http.StatusUnprocessableEntity, "invoice_form", data)
	case errors.Is(err, store.ErrNotFound):
		NotFoundError(notFoundMessage(id)).Write(w)
	default:
		s.logger.ErrorContext(r.Context(), "Failed to save invoice",
			log.FieldInvoiceID, id,
			log.FieldOperation, string(mode),
			log.FieldError, err)
		InternalServerError("Could not save invoice").
			TriggerErrorNotification("Could not save invoice").
			Write(w)
	}
}

func (s *Server) writeLookupError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		NotFoundError(notFoundMessage(id)).Write(w)
		return
	}
	s.logger.ErrorContext(r.Context(), "Failed to load invoice",
		log.FieldInvoiceID, id,
		log.FieldOperation, log.OpRead,
		log.FieldError, err)
	InternalServerError("Could not load invoice").Write(w)
}
