// Package http exposes the ledger as a JSON API.
//
// This file implements a small builder for JSON responses so that every
// handler writes bodies, headers and errors the same way.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"babywallet/internal/core"
	"babywallet/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		data = []byte(`{"error":{"type":"internal_error","message":"failed to encode response"}}`)
		b.statusCode = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, errType, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: errorDetail{Type: errType, Message: message}})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, log.ErrorTypeValidation, message)
}

// InternalServerError creates a 500 response. The message is generic: the
// cause is logged, never returned.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, log.ErrorTypeInternal, "internal server error")
}

// UnauthorizedError creates a 401 response for requests without an account.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "unauthorized", message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, retry later")
}

// ErrorFor maps a service error onto its response:
// validation 400, not found 404, invalid state and conflict 409, others 500.
func ErrorFor(err error) *JSONResponseBuilder {
	var (
		validation   *core.ValidationError
		notFound     *core.NotFoundError
		invalidState *core.InvalidStateError
		conflict     *core.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		return NewJSONResponse().
			Status(http.StatusBadRequest).
			Body(errorBody{Error: errorDetail{Type: log.ErrorTypeValidation, Message: validation.Error(), Field: validation.Field}})
	case errors.As(err, &notFound):
		return ErrorResponse(http.StatusNotFound, log.ErrorTypeNotFound, notFound.Error())
	case errors.As(err, &invalidState):
		return ErrorResponse(http.StatusConflict, log.ErrorTypeInvalidState, invalidState.Error())
	case errors.As(err, &conflict):
		return ErrorResponse(http.StatusConflict, log.ErrorTypeConflict, conflict.Error())
	default:
		return InternalServerError()
	}
}
