// This file implements a small builder for API responses so every handler
// writes headers, status and body the same way.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"clinic/internal/appointments"
	"clinic/internal/core"
	"clinic/internal/ledger"
)

// HeaderWarning carries a persistence warning on responses whose entity
// was recorded in memory but could not be written to storage.
const HeaderWarning = "X-Clinic-Warning"

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       []byte
}

// NewResponse creates a builder with a 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Warning attaches a persistence warning header. Joined errors span lines,
// which a header cannot.
func (b *ResponseBuilder) Warning(msg string) *ResponseBuilder {
	return b.Header(HeaderWarning, strings.ReplaceAll(msg, "\n", "; "))
}

// Attachment marks the body as a download named filename.
func (b *ResponseBuilder) Attachment(filename string) *ResponseBuilder {
	return b.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// JSON sets v as the JSON body. An encoding failure turns the response
// into a 500.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	raw, err := json.Marshal(v)
	if err != nil {
		b.statusCode = http.StatusInternalServerError
		raw = []byte(`{"error":"failed to encode response"}`)
	}
	b.headers["Content-Type"] = "application/json"
	b.body = append(raw, '\n')
	return b
}

// Body sets raw bytes of the given content type.
func (b *ResponseBuilder) Body(contentType string, content []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.body = content
	return b
}

func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// isNotFound reports whether err is any of the not-found sentinels.
func isNotFound(err error) bool {
	return errors.Is(err, ledger.ErrNotFound) || errors.Is(err, appointments.ErrNotFound)
}

// isPersistence reports whether err only says the write to storage failed.
func isPersistence(err error) bool {
	return errors.Is(err, ledger.ErrPersistence) || errors.Is(err, appointments.ErrPersistence)
}

// errorStatus maps an error to its HTTP status: validation 400, not found
// 404, everything else 500.
func errorStatus(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusBadRequest
	case isNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrUnsupportedBackup):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Created answers a write. A persistence error still yields 201 because the
// entity is kept in memory; the failure travels in the warning header.
func Created(v any, err error) *ResponseBuilder {
	b := NewResponse().Status(http.StatusCreated).JSON(v)
	if err != nil {
		b.Warning("saved in memory only: " + err.Error())
	}
	return b
}
