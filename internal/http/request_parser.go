// This file holds the helpers that turn query strings and request bodies
// into typed values.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clinic/internal/core"
	"clinic/internal/period"
)

// maxBodyBytes bounds JSON request bodies. Imports carry a full ledger.
const maxBodyBytes = 8 << 20

var (
	errMalformedBody = core.NewValidationError("malformed request body")
	errEmptyBody     = fmt.Errorf("%w: empty body", errMalformedBody)
)

// MonthParams holds the year and month of a report request.
type MonthParams struct {
	Year  int
	Month time.Month
}

// ParseMonthParams reads year and month from the query, defaulting each to
// now's. Values that are present but not valid are rejected.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: now.Month()}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return MonthParams{}, core.NewValidationError("invalid year")
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, core.ErrInvalidMonth
		}
		params.Month = time.Month(m)
	}
	return params, nil
}

// ParseDateParam reads a YYYY-MM-DD date from the query, defaulting to
// now's calendar day.
func ParseDateParam(query url.Values, key string, now time.Time) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.DateOf(now), nil
	}
	return core.ParseDate(v)
}

// ParsePeriod reads the period token. A missing token means the current
// month; anything unrecognised means all time.
func ParsePeriod(query url.Values) period.Token {
	v := strings.TrimSpace(query.Get("period"))
	if v == "" {
		return period.Month
	}
	return period.ParseToken(v)
}

// decodeJSON reads one JSON value from the request body into dst. Text
// fields are sanitized by the caller.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: body exceeds %d bytes", errMalformedBody, tooLarge.Limit)
		}
		if core.IsValidation(err) {
			return err
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

func sanitizePayment(in *core.PaymentInput) {
	in.AppointmentID = sanitizeInput(in.AppointmentID)
	in.PatientName = sanitizeInput(in.PatientName)
	in.PatientPhone = sanitizeInput(in.PatientPhone)
	in.Doctor = sanitizeInput(in.Doctor)
	in.Service = sanitizeInput(in.Service)
	in.Method = sanitizeInput(in.Method)
}

func sanitizeExpense(in *core.ExpenseInput) {
	in.Category = sanitizeInput(in.Category)
	in.Description = sanitizeInput(in.Description)
	in.Method = sanitizeInput(in.Method)
}
