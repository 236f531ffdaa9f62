// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing dollar amounts typed into forms
// and rendering minor units as USD strings.
package core

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	ErrAmountNotNumber   = errors.New("amount is not a number")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountTooLarge    = errors.New("amount too large")
)

// ParseDollarsToCents converts a decimal dollar string to cents with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an
// optional sign and exponent notation (1.5e2). Input that is not a decimal number yields ErrAmountNotNumber;
// zero, negative and empty input yield ErrAmountNotPositive. A positive amount
// below half a cent rounds to 0 cents and is accepted.
//
// Examples:
//
//	ParseDollarsToCents("12.34")  -> 1234, nil
//	ParseDollarsToCents("12,34")  -> 1234, nil
//	ParseDollarsToCents("12.345") -> 1235, nil (half-up)
//	ParseDollarsToCents("12.344") -> 1234, nil
//	ParseDollarsToCents("1e3")    -> 100000, nil
//	ParseDollarsToCents("-1")     -> 0, ErrAmountNotPositive
//	ParseDollarsToCents("abc")    -> 0, ErrAmountNotNumber
func ParseDollarsToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrAmountNotPositive
	}
	s = strings.ReplaceAll(s, ",", ".")
	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		shifted, err := shiftExponent(s[:i], s[i+1:])
		if err != nil {
			return 0, err
		}
		s = shifted
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrAmountNotNumber
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, ErrAmountNotNumber
	}
	if intPart == "" {
		intPart = "0"
	}
	nonZero := false
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, ErrAmountNotNumber
		}
		if r != '0' {
			nonZero = true
		}
	}
	if negative || !nonZero {
		return 0, ErrAmountNotPositive
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrAmountTooLarge
	}
	const maxSafeDollars = (1<<63 - 1) / 100
	if iv >= maxSafeDollars {
		return 0, ErrAmountTooLarge
	}
	// first two fractional digits, half-up on the third
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

// maxExponent bounds scientific notation; anything larger overflows cents anyway.
const maxExponent = 32

// shiftExponent rewrites mantissa×10^exp as a plain decimal string, so
// "1.5e2" becomes "150". Exponents below -maxExponent are clamped: the
// amount stays positive and rounds to zero cents either way.
func shiftExponent(mantissa, exp string) (string, error) {
	e, err := strconv.Atoi(exp)
	if err != nil {
		return "", ErrAmountNotNumber
	}
	if e > maxExponent {
		return "", ErrAmountTooLarge
	}
	e = max(e, -maxExponent)

	parts := strings.Split(mantissa, ".")
	if len(parts) > 2 {
		return "", ErrAmountNotNumber
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	digits := intPart + fracPart
	if digits == "" {
		return "", ErrAmountNotNumber
	}

	point := len(intPart) + e
	switch {
	case point <= 0:
		return "0." + strings.Repeat("0", -point) + digits, nil
	case point >= len(digits):
		return digits + strings.Repeat("0", point-len(digits)), nil
	default:
		return digits[:point] + "." + digits[point:], nil
	}
}

// MoneyFormatter renders minor units of one currency for one locale.
type MoneyFormatter struct {
	unit    currency.Unit
	symbol  string
	printer *message.Printer
}

// NewMoneyFormatter builds a formatter; the number of minor digits comes from
// the currency's standard rounding.
func NewMoneyFormatter(unit currency.Unit, symbol string, tag language.Tag) *MoneyFormatter {
	return &MoneyFormatter{unit: unit, symbol: symbol, printer: message.NewPrinter(tag)}
}

var usd = NewMoneyFormatter(currency.USD, "$", language.AmericanEnglish)

// FormatMoney renders cents as a USD string, e.g. 12345 -> "$123.45".
func FormatMoney(cents int64) string {
	return usd.Format(cents)
}

// Format renders minor units with grouping separators, e.g. "$1,234.50".
func (f *MoneyFormatter) Format(minor int64) string {
	scale, _ := currency.Standard.Rounding(f.unit)
	var per int64 = 1
	for i := 0; i < scale; i++ {
		per *= 10
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	major := f.printer.Sprintf("%d", minor/per)
	if scale == 0 {
		return sign + f.symbol + major
	}
	frac := strconv.FormatInt(minor%per, 10)
	for len(frac) < scale {
		frac = "0" + frac
	}
	return sign + f.symbol + major + "." + frac
}

// CentsToDollars renders cents as a plain decimal string ("125.00") for form inputs.
func CentsToDollars(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	frac := strconv.FormatInt(cents%100, 10)
	if len(frac) < 2 {
		frac = "0" + frac
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + frac
}
