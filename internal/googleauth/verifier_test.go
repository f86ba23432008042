package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func tokenInfoServer(t *testing.T, status int, claims map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id_token") != "good-credential" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_token"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(claims)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func validClaims() map[string]string {
	return map[string]string{
		"aud":            "client-123",
		"iss":            "https://accounts.google.com",
		"sub":            "google-sub-1",
		"email":          "Ana@Example.com",
		"email_verified": "true",
		"name":           "Ana Souza",
		"exp":            strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
	}
}

func TestVerifier_Verify(t *testing.T) {
	t.Run("returns the identity for a valid credential", func(t *testing.T) {
		srv := tokenInfoServer(t, http.StatusOK, validClaims())
		v := NewVerifier(srv.Client(), srv.URL, "client-123")

		identity, err := v.Verify(context.Background(), "good-credential")
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if identity.Subject != "google-sub-1" || identity.Email != "ana@example.com" || !identity.EmailVerified || identity.Name != "Ana Souza" {
			t.Fatalf("unexpected identity %+v", identity)
		}
	})

	t.Run("rejects credentials Google refuses", func(t *testing.T) {
		srv := tokenInfoServer(t, http.StatusOK, validClaims())
		v := NewVerifier(srv.Client(), srv.URL, "")

		if _, err := v.Verify(context.Background(), "forged"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
		if _, err := v.Verify(context.Background(), "  "); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for blank credential, got %v", err)
		}
	})

	t.Run("checks the audience when a client id is configured", func(t *testing.T) {
		claims := validClaims()
		claims["aud"] = "someone-else"
		srv := tokenInfoServer(t, http.StatusOK, claims)

		if _, err := NewVerifier(srv.Client(), srv.URL, "client-123").Verify(context.Background(), "good-credential"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected audience mismatch, got %v", err)
		}
		if _, err := NewVerifier(srv.Client(), srv.URL, "").Verify(context.Background(), "good-credential"); err != nil {
			t.Fatalf("expected audience check to be skipped, got %v", err)
		}
	})

	t.Run("rejects expired tokens and foreign issuers", func(t *testing.T) {
		expired := validClaims()
		expired["exp"] = strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10)
		srv := tokenInfoServer(t, http.StatusOK, expired)
		if _, err := NewVerifier(srv.Client(), srv.URL, "").Verify(context.Background(), "good-credential"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected expiry rejection, got %v", err)
		}

		foreign := validClaims()
		foreign["iss"] = "https://evil.example.com"
		srv = tokenInfoServer(t, http.StatusOK, foreign)
		if _, err := NewVerifier(srv.Client(), srv.URL, "").Verify(context.Background(), "good-credential"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected issuer rejection, got %v", err)
		}
	})

	t.Run("surfaces upstream failures", func(t *testing.T) {
		srv := tokenInfoServer(t, http.StatusInternalServerError, validClaims())
		_, err := NewVerifier(srv.Client(), srv.URL, "").Verify(context.Background(), "good-credential")
		if err == nil || errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected upstream error, got %v", err)
		}
	})
}
