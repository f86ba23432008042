package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/salafacil/salafacil/internal/application"
)

func TestResponderServiceErrors(t *testing.T) {
	r := newResponder(discardLogger(), false)

	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "room conflict",
			err:     &application.ConflictError{},
			status:  http.StatusConflict,
			code:    codeConflict,
			message: "Sala já está ocupada neste horário.",
		},
		{
			name:    "status changed by another write",
			err:     fmt.Errorf("patch: %w", application.ErrStaleReservation),
			status:  http.StatusConflict,
			code:    codeConflict,
			message: "O agendamento foi alterado por outra operação. Tente novamente.",
		},
		{
			name:    "integration not configured",
			err:     fmt.Errorf("%w: google sign-in", application.ErrNotConfigured),
			status:  http.StatusServiceUnavailable,
			code:    codeUnavailable,
			message: "Recurso indisponível neste servidor.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.handleServiceError(context.Background(), rec, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != tc.code || body["message"] != tc.message {
				t.Fatalf("unexpected body %v", body)
			}
		})
	}
}
