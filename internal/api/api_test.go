package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/bakehouse/internal/config"
	"github.com/roach88/bakehouse/internal/inventory"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/production"
	"github.com/roach88/bakehouse/internal/reconcile"
	"github.com/roach88/bakehouse/internal/sales"
	"github.com/roach88/bakehouse/internal/tenancy"
	"github.com/roach88/bakehouse/internal/testutil"
)

func testHTTPConfig() config.HTTP {
	cfg := config.Default().HTTP
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	return cfg
}

func newTestServer(t *testing.T, cfg config.HTTP) http.Handler {
	t.Helper()
	return newTestAPI(t, cfg).Handler()
}

func newTestAPI(t *testing.T, cfg config.HTTP) *Server {
	t.Helper()
	env := testutil.NewEnv(t)
	testutil.SeedTenant(t, env, "t1", ledger.DefaultSettings())
	srv := New(cfg, Deps{
		Services: Services{
			Inventory:  inventory.New(env),
			Counts:     reconcile.New(env),
			Sales:      sales.New(env),
			Production: production.New(env),
		},
		Resolver: tenancy.New(env),
		Health:   env.Store,
		Log:      zaptest.NewLogger(t),
	})
	return srv
}

func call(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(HeaderTenant, "t1")
		req.Header.Set(HeaderUser, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) ledger.ErrorCode {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Code
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code ledger.ErrorCode
		want int
	}{
		{ledger.ErrCodeNotFound, http.StatusNotFound},
		{ledger.ErrCodeValidation, http.StatusBadRequest},
		{ledger.ErrCodeForbidden, http.StatusForbidden},
		{ledger.ErrCodeInsufficientStock, http.StatusConflict},
		{ledger.ErrCodeConflict, http.StatusConflict},
		{ledger.ErrCodeInvalidTransition, http.StatusConflict},
		{ledger.ErrCodeStaleReport, http.StatusConflict},
		{codeRateLimited, http.StatusTooManyRequests},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.code), tt.code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newTestServer(t, testHTTPConfig())

	rec := call(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = call(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bakehouse_http_requests_total")
}

func TestTenantMiddleware(t *testing.T) {
	h := newTestServer(t, testHTTPConfig())

	rec := call(t, h, http.MethodGet, "/v1/items", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h, http.MethodGet, "/v1/items", "mallory", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, ledger.ErrCodeForbidden, errorCode(t, rec))

	rec = call(t, h, http.MethodGet, "/v1/items", "staff", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = call(t, h, http.MethodPost, "/v1/items", "staff", map[string]any{"sku": "FLOUR", "name": "Flour", "unit": "kg"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStockFlow(t *testing.T) {
	h := newTestServer(t, testHTTPConfig())

	rec := call(t, h, http.MethodPost, "/v1/items", "manager", map[string]any{
		"sku": "flour", "name": "Bread flour", "unit": "kg", "reorder_level": "10", "unit_cost_cents": 95,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item ledger.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "FLOUR", item.SKU)

	rec = call(t, h, http.MethodGet, "/v1/items/FLOUR", "staff", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, http.MethodPost, "/v1/movements", "staff", map[string]any{
		"type": "purchase", "item_id": item.ID, "location_id": "t1-main", "quantity": "25",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var m ledger.Movement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, ledger.Units(25), m.BalanceAfter)

	rec = call(t, h, http.MethodPost, "/v1/movements", "staff", map[string]any{
		"type": "usage", "item_id": item.ID, "location_id": "t1-main", "quantity": "30",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ledger.ErrCodeInsufficientStock, errorCode(t, rec))

	rec = call(t, h, http.MethodPost, "/v1/movements", "staff", map[string]any{"type": "purchase", "bogus": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodGet, "/v1/items/"+item.ID+"/movements", "staff", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []ledger.Movement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 1)

	rec = call(t, h, http.MethodGet, "/v1/ledger/verify", "manager", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodGet, "/v1/stock/low", "staff", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCountFlow(t *testing.T) {
	h := newTestServer(t, testHTTPConfig())

	rec := call(t, h, http.MethodPost, "/v1/items", "manager", map[string]any{"sku": "BUTTER", "name": "Butter", "unit": "kg", "unit_cost_cents": 820})
	require.Equal(t, http.StatusCreated, rec.Code)
	var item ledger.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	rec = call(t, h, http.MethodPost, "/v1/movements", "staff", map[string]any{
		"type": "purchase", "item_id": item.ID, "location_id": "t1-main", "quantity": "10",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = call(t, h, http.MethodPost, "/v1/counts", "staff", map[string]any{"location_id": "t1-main"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess reconcile.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))

	rec = call(t, h, http.MethodPost, "/v1/counts", "staff", map[string]any{"location_id": "t1-main"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h, http.MethodPut, "/v1/counts/"+sess.ID+"/lines/"+item.ID, "staff", map[string]any{"counted": "9.5"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodPost, "/v1/counts/"+sess.ID+"/submit", "staff", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rep reconcile.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, ledger.MustParseQuantity("-0.5"), rep.Lines[0].Variance)

	rec = call(t, h, http.MethodPost, "/v1/counts/"+sess.ID+"/approve", "manager", map[string]any{"digest": "deadbeef"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ledger.ErrCodeStaleReport, errorCode(t, rec))

	rec = call(t, h, http.MethodPost, "/v1/counts/"+sess.ID+"/approve", "manager", map[string]any{"digest": rep.Digest})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var d reconcile.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, ledger.CountApproved, d.Session.Status)
	require.Len(t, d.Adjustments, 1)

	rec = call(t, h, http.MethodPost, "/v1/counts/"+sess.ID+"/cancel", "manager", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ledger.ErrCodeInvalidTransition, errorCode(t, rec))

	rec = call(t, h, http.MethodGet, "/v1/counts?status=approved", "staff", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []ledger.CountSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestSalesSummaryRequiresPeriod(t *testing.T) {
	h := newTestServer(t, testHTTPConfig())

	rec := call(t, h, http.MethodGet, "/v1/sales/summary?from=2025-03-01", "staff", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodGet, "/v1/sales/summary?from=2025-03-01&to=2025-03-08", "staff", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	cfg := testHTTPConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 2
	h := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		rec := call(t, h, http.MethodGet, "/v1/items", "staff", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := call(t, h, http.MethodGet, "/v1/items", "staff", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = call(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_OnlyResolvedTenants(t *testing.T) {
	srv := newTestAPI(t, testHTTPConfig())
	h := srv.Handler()

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/items", nil)
		req.Header.Set(HeaderTenant, fmt.Sprintf("ghost-%d", i))
		req.Header.Set(HeaderUser, "staff")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	}
	rec := call(t, h, http.MethodGet, "/v1/items", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, srv.limiter.size(), "unresolved tenants get no bucket")

	for i := 0; i < 3; i++ {
		rec = call(t, h, http.MethodGet, "/v1/items", "staff", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, srv.limiter.size())
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type blockingRunner struct{ stopped atomic.Bool }

func (r *blockingRunner) Run(ctx context.Context) error {
	<-ctx.Done()
	r.stopped.Store(true)
	return nil
}

func TestServe_GracefulShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	sched := &blockingRunner{}
	cfg := testHTTPConfig()
	cfg.ShutdownTimeout = 5 * time.Second
	srv := New(cfg, Deps{
		Health:    pingFunc(func(context.Context) error { return nil }),
		Scheduler: sched,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.True(t, sched.stopped.Load())
}
