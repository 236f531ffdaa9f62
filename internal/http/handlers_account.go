package http

import (
	"net/http"

	"billing/internal/forms"
	"billing/internal/log"
)

const registerTitle = "Create your account"

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", registerData{
		Title:  registerTitle,
		Errors: forms.FieldErrors{},
	})
}

// handleRegister validates the sign-up form. Nothing is persisted; a valid
// submission only confirms the normalized account back to the user.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	values := p.Values()
	values.Set(forms.FieldPassword, p.Raw(forms.FieldPassword))
	values.Set(forms.FieldConfirmPassword, p.Raw(forms.FieldConfirmPassword))
	form := forms.RegistrationFromValues(values)

	name := "register.html"
	if isHTMX(r) {
		name = "register_form"
	}

	account, err := form.Submit()
	if err != nil {
		fe, ok := forms.AsFieldErrors(err)
		if !ok {
			fe = forms.FieldErrors{}
		}
		s.render(w, r, http.StatusUnprocessableEntity, name, registerData{
			Title:  registerTitle,
			Form:   form.Redacted(),
			Errors: fe,
		})
		return
	}

	s.registrations.Add(1)
	s.logger.WithComponent(log.ComponentAccount).InfoContext(r.Context(), "Registration accepted",
		log.FieldOperation, log.OpCreate,
		log.FieldSuccess, true)

	NewHTMXResponse().TriggerSuccessNotification("Account created for " + account.Email).Headers(w)
	s.render(w, r, http.StatusOK, name, registerData{
		Title:   registerTitle,
		Errors:  forms.FieldErrors{},
		Account: &account,
	})
}
