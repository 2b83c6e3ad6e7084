package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bakehouse/internal/ledger"
)

func TestHooks(t *testing.T) {
	m := New()
	h := m.Hooks()

	h.OnMovement(ledger.Movement{Type: ledger.MovementSale})
	h.OnMovement(ledger.Movement{Type: ledger.MovementSale})
	h.OnMovement(ledger.Movement{Type: ledger.MovementPurchase})
	h.OnCountDecision("t1", ledger.CountApproved, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.movements.WithLabelValues("sale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.movements.WithLabelValues("purchase")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("approved")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.adjustments))
}

func TestInstrument(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/v1/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/items/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/v1/items/{id}", "404")))

	m.Scheduled("opened")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `bakehouse_schedule_runs_total{outcome="opened"} 1`), body)
	assert.Contains(t, body, "bakehouse_http_requests_total")
}
