package forms

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"billing/internal/core"
)

const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
)

const (
	MsgName            = "Name must be at least 2 characters"
	MsgEmail           = "Enter a valid email address"
	MsgPassword        = "Password must be 8+ characters with a letter and a number"
	MsgConfirmPassword = "Passwords do not match"
)

// RegistrationForm is the account sign-up form.
type RegistrationForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

func RegistrationFromValues(v url.Values) RegistrationForm {
	return RegistrationForm{
		Name:            v.Get(FieldName),
		Email:           v.Get(FieldEmail),
		Password:        v.Get(FieldPassword),
		ConfirmPassword: v.Get(FieldConfirmPassword),
	}
}

func (f RegistrationForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if utf8.RuneCountInString(strings.TrimSpace(f.Name)) < 2 {
		errs.Add(FieldName, MsgName)
	}
	if !core.IsEmail(strings.TrimSpace(f.Email)) {
		errs.Add(FieldEmail, MsgEmail)
	}
	if !core.IsStrongPassword(f.Password) {
		errs.Add(FieldPassword, MsgPassword)
	}
	if f.ConfirmPassword != f.Password {
		errs.Add(FieldConfirmPassword, MsgConfirmPassword)
	}
	return errs
}

// Submit validates the form and returns the account with a lower-cased email.
func (f RegistrationForm) Submit() (core.Account, error) {
	if errs := f.Validate(); !errs.Empty() {
		return core.Account{}, errs
	}
	return core.Account{
		Name:  strings.TrimSpace(f.Name),
		Email: strings.ToLower(strings.TrimSpace(f.Email)),
	}, nil
}

// Redacted returns a copy safe to re-render: passwords are never echoed back.
func (f RegistrationForm) Redacted() RegistrationForm {
	f.Password = ""
	f.ConfirmPassword = ""
	return f
}
