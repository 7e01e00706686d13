package http

// This file implements utilities for parsing and validating request data:
// JSON bodies, query parameters and the money/date fields they carry.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"babywallet/internal/core"
)

const (
	maxBodyBytes    = 1 << 20
	maxAccountIDLen = 128
	headerAccountID = "X-Account-ID"
)

// DecodeJSON reads a single JSON object from the request body into dst.
// Unknown fields and trailing data are rejected as validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.Validationf("body", "request body is required")
		case errors.As(err, &maxErr):
			return core.Validationf("body", "request body exceeds %d bytes", maxErr.Limit)
		default:
			return core.Validationf("body", "malformed JSON: %v", err)
		}
	}
	if dec.More() {
		return core.Validationf("body", "request body must contain a single JSON object")
	}
	return nil
}

// ParseMoneyField parses a required positive amount.
func ParseMoneyField(field, value string) (core.Money, error) {
	m, err := core.ParseMoney(value)
	if err != nil {
		return core.Money{}, core.NewValidationError(field, err)
	}
	return m, nil
}

// ParseOptionalMoney parses an amount that defaults to zero when absent.
func ParseOptionalMoney(field, value string) (core.Money, error) {
	if strings.TrimSpace(value) == "" {
		return core.Money{}, nil
	}
	return ParseMoneyField(field, value)
}

// ParseDateField parses a YYYY-MM-DD date; empty yields the zero Date.
func ParseDateField(field, value string) (core.Date, error) {
	if strings.TrimSpace(value) == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, core.Validationf(field, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

// QueryInt reads a non-negative integer query parameter, returning def
// when it is absent.
func QueryInt(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, core.Validationf(key, "must be a non-negative integer")
	}
	return n, nil
}

// QueryDecimal reads an optional decimal query parameter.
func QueryDecimal(query url.Values, key string) (*decimal.Decimal, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, core.Validationf(key, "must be a decimal number")
	}
	return &d, nil
}

// QueryString returns a sanitized query parameter.
func QueryString(query url.Values, key string) string {
	return sanitizeInput(query.Get(key))
}

// AccountID returns the authenticated account set by the upstream gateway.
func AccountID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(headerAccountID))
	if id == "" {
		return "", fmt.Errorf("missing %s header", headerAccountID)
	}
	if len(id) > maxAccountIDLen || strings.ContainsFunc(id, isControl) {
		return "", fmt.Errorf("malformed %s header", headerAccountID)
	}
	return id, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims surrounding whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if isControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

func isControl(r rune) bool {
	return r < 32 || r == 127
}
