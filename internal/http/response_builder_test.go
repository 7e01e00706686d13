package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"babywallet/internal/core"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/children/1").
		Body(map[string]string{"id": "1"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("Location"); got != "/api/children/1" {
		t.Errorf("Location = %q", got)
	}
	if w.Body.String() != "{\"id\":\"1\"}\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantType  string
		wantField string
	}{
		{"validation", core.Validationf("amount", "must be positive"), http.StatusBadRequest, "validation_error", "amount"},
		{"wrapped validation", fmt.Errorf("create: %w", core.Validationf("name", "empty")), http.StatusBadRequest, "validation_error", "name"},
		{"not found", &core.NotFoundError{Entity: "child", ID: "x"}, http.StatusNotFound, "not_found_error", ""},
		{"invalid state", &core.InvalidStateError{Entity: "investment", ID: "x", State: "cancelled", Action: "pause"}, http.StatusConflict, "invalid_state_error", ""},
		{"conflict", &core.ConflictError{InvestmentID: "x", Period: "2026-10"}, http.StatusConflict, "conflict_error", ""},
		{"infrastructure", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFor(tt.err).Write(w)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Type != tt.wantType {
				t.Errorf("type = %q, want %q", body.Error.Type, tt.wantType)
			}
			if body.Error.Field != tt.wantField {
				t.Errorf("field = %q, want %q", body.Error.Field, tt.wantField)
			}
			if tt.wantCode == http.StatusInternalServerError && body.Error.Message != "internal server error" {
				t.Errorf("internal errors must not leak: %q", body.Error.Message)
			}
		})
	}
}
