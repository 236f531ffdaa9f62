package core

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// RE2 has no look-ahead: charset+length, then one letter, then one digit.
	passwordCharsetRe = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]{8,}$`)
	passwordLetterRe  = regexp.MustCompile(`[A-Za-z]`)
	passwordDigitRe   = regexp.MustCompile(`\d`)
)

// Account is the outcome of a successful registration. Passwords are never kept.
type Account struct {
	Name  string
	Email string
}

// IsEmail is a syntactic local@domain.tld check, nothing more.
func IsEmail(value string) bool {
	return emailRe.MatchString(strings.ToLower(value))
}

// IsStrongPassword requires 8+ characters with at least one letter and one
// digit, drawn only from letters, digits and @$!%*?&.
func IsStrongPassword(value string) bool {
	return passwordCharsetRe.MatchString(value) &&
		passwordLetterRe.MatchString(value) &&
		passwordDigitRe.MatchString(value)
}
