// Package core holds the clinic's domain types: money, calendar days,
// payments, expenses and invoices, together with their validation rules.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimalToCents converts a decimal string to minor units with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Zero and negative values are rejected.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := parseCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseOptionalCents is ParseDecimalToCents for fields such as discounts,
// where an empty string or zero is a valid value.
func ParseOptionalCents(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return parseCents(s)
}

func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
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

// Units returns the major-unit value as a float64 for display purposes only.
// Use Cents for arithmetic.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

// DivRound divides by n rounding half away from zero. Division by zero yields zero.
func (m Money) DivRound(n int64) Money {
	if n == 0 {
		return Money{}
	}
	q := m.Cents / n
	r := m.Cents % n
	if r < 0 {
		r = -r
	}
	d := n
	if d < 0 {
		d = -d
	}
	if 2*r >= d {
		if (m.Cents < 0) != (n < 0) {
			q--
		} else {
			q++
		}
	}
	return Money{Cents: q}
}

// String renders the amount with two decimals and a dot separator, e.g. "1234.50".
func (m Money) String() string {
	c := m.Cents
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	frac := strconv.FormatInt(c%100, 10)
	if len(frac) == 1 {
		frac = "0" + frac
	}
	return sign + strconv.FormatInt(c/100, 10) + "." + frac
}

// MarshalJSON encodes money as its integer minor units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(m.Cents, 10)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		m.Cents = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ErrInvalidAmount
	}
	m.Cents = v
	return nil
}

// Sum adds up the given amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
