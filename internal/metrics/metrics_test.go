package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/salafacil/salafacil/internal/scheduler"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

func TestMetrics(t *testing.T) {
	t.Run("counts requests and errors", func(t *testing.T) {
		m := newTestMetrics()
		m.ObserveHTTP(http.MethodGet, "/salas", http.StatusOK, 20*time.Millisecond)
		m.ObserveHTTP(http.MethodGet, "/salas", http.StatusOK, 10*time.Millisecond)
		m.ObserveHTTP(http.MethodPost, "/agendamentos", http.StatusConflict, time.Millisecond)

		if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/salas", "200")); got != 2 {
			t.Fatalf("expected 2 requests, got %v", got)
		}
		if got := testutil.ToFloat64(m.httpErrors.WithLabelValues("POST", "/agendamentos", "409")); got != 1 {
			t.Fatalf("expected 1 error, got %v", got)
		}
	})

	t.Run("counts transitions", func(t *testing.T) {
		m := newTestMetrics()
		m.ObserveTransition(scheduler.StatusScheduled, scheduler.StatusInProgress)
		if got := testutil.ToFloat64(m.transitions.WithLabelValues("agendada", "em_andamento")); got != 1 {
			t.Fatalf("expected 1 transition, got %v", got)
		}
	})

	t.Run("nil metrics are a no-op", func(t *testing.T) {
		var m *Metrics
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
		m.ObserveTransition(scheduler.StatusScheduled, scheduler.StatusCancelled)
		m.ObserveRateLimited("/auth")
		m.ObservePublishFailure()
	})

	t.Run("serves the exposition format", func(t *testing.T) {
		m := newTestMetrics()
		m.ObserveRateLimited("/auth")

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		body, _ := io.ReadAll(rec.Body)
		if rec.Code != http.StatusOK || !strings.Contains(string(body), `salafacil_rate_limited_requests_total{route="/auth"} 1`) {
			t.Fatalf("unexpected exposition (%d): %s", rec.Code, body)
		}
	})
}
