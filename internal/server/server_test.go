package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookiebanner/scanner/internal/browser"
	"github.com/cookiebanner/scanner/internal/operation"
	"github.com/cookiebanner/scanner/internal/scan"
)

// newTestServer wires a server to a pool with zero workers: enough to
// exercise request validation and the store-backed GET path without
// launching a real browser process.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := operation.NewMemoryStore()
	pool, err := operation.NewPool(context.Background(), 0, browser.Options{}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return New(store, nil, pool, scan.DefaultOptions(), zerolog.Nop())
}

// TestHandleCreateScanAcceptsValidRequest exercises the request-accepted
// path only; the background scan itself blocks forever acquiring a worker
// from the zero-capacity pool, which is fine since nothing waits on it.

func TestHandleCreateScanRejectsMissingURL(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/scans", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateScanAcceptsValidRequest(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/scans", bytes.NewReader([]byte(`{"url":"https://example.com"}`)))
	rec := httptest.NewRecorder()

	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp createScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.OperationID)
	assert.Equal(t, string(operation.StatusPending), resp.Status)
}

func TestHandleGetScanReturns404ForUnknownID(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/scans/does-not-exist", nil)
	rec := httptest.NewRecorder()

	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
