package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/saga/internal/domain"
)

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EPAYMENT, http.StatusPaymentRequired},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"unknown_code", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := statusFromCode(tt.code); got != tt.expected {
				t.Errorf("statusFromCode(%q) = %d, want %d", tt.code, got, tt.expected)
			}
		})
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedCode    string
		expectedMessage string
	}{
		{
			name:            "not found error",
			err:             domain.NotFound("invoice.get", "Invoice", "abc-123"),
			expectedStatus:  http.StatusNotFound,
			expectedCode:    domain.ENOTFOUND,
			expectedMessage: "Invoice not found: abc-123",
		},
		{
			name:            "validation error",
			err:             domain.Invalid("payment.create_intent", "amount must be positive"),
			expectedStatus:  http.StatusBadRequest,
			expectedCode:    domain.EINVALID,
			expectedMessage: "amount must be positive",
		},
		{
			name:            "internal error hides details",
			err:             domain.Internal(nil, "invoice.get", "query failed"),
			expectedStatus:  http.StatusInternalServerError,
			expectedCode:    domain.EINTERNAL,
			expectedMessage: "An internal error occurred. Please try again later.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			rec := httptest.NewRecorder()

			ErrorResponse(rec, req, tt.err)

			if rec.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.expectedStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var body envelope
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != tt.expectedCode {
				t.Errorf("code = %q, want %q", body.Code, tt.expectedCode)
			}
			if body.Message != tt.expectedMessage {
				t.Errorf("message = %q, want %q", body.Message, tt.expectedMessage)
			}
		})
	}
}

func TestJSONResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	JSONResponse(rec, http.StatusCreated, map[string]string{"id": "abc"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var body envelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "ok" {
		t.Errorf("code = %q, want ok", body.Code)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email" validate:"required,email"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"email": "a@example.com"}`, false},
		{"malformed_json", `{"email": `, true},
		{"unknown_field", `{"email": "a@example.com", "extra": 1}`, true},
		{"fails_validation", `{"email": "not-an-email"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))

			var dst payload
			err := DecodeJSON(req, &dst)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !domain.IsCode(err, domain.EINVALID) {
					t.Errorf("expected EINVALID, got %q", domain.ErrorCode(err))
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
