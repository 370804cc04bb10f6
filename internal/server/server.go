// Package server provides the HTTP API for async site scans.
//
// Endpoints:
//
//	POST /scans        — enqueue a new scan; returns operation ID immediately
//	GET  /scans/{id}   — poll operation status and retrieve artefact URLs
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cookiebanner/scanner/internal/logging"
	"github.com/cookiebanner/scanner/internal/operation"
	"github.com/cookiebanner/scanner/internal/scan"
	"github.com/cookiebanner/scanner/internal/storage"
)

// Server holds the dependencies shared across HTTP handlers.
type Server struct {
	store    operation.Store
	uploader storage.Uploader
	pool     *operation.Pool
	mux      *http.ServeMux
	log      zerolog.Logger

	// defaultScanOptions are used for every scan; the request body carries
	// only the URL, so no request overrides them.
	defaultScanOptions scan.Options
}

// New creates a Server wired to the given store, uploader, and worker
// pool.
func New(store operation.Store, uploader storage.Uploader, pool *operation.Pool, defaults scan.Options, log zerolog.Logger) *Server {
	s := &Server{
		store:              store,
		uploader:           uploader,
		pool:               pool,
		defaultScanOptions: defaults,
		log:                log,
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST /scans", s.handleCreateScan)
	s.mux.HandleFunc("GET /scans/{id}", s.handleGetScan)

	return s
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv.ListenAndServe()
}

// createScanRequest is the JSON body for POST /scans.
type createScanRequest struct {
	URL string `json:"url"`
}

// createScanResponse is returned immediately from POST /scans.
type createScanResponse struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
}

func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	var req createScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	op, err := s.store.Create(req.URL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create operation: "+err.Error())
		return
	}

	// Scans run for minutes and outlive any single HTTP request; a
	// background context keeps the scan alive after the connection that
	// created it closes.
	go s.run(context.Background(), op.ID, req.URL)

	writeJSON(w, http.StatusAccepted, createScanResponse{
		OperationID: op.ID,
		Status:      string(operation.StatusPending),
	})
}

// run checks a worker out of the pool, scans the site, and returns the
// worker whether the scan succeeded or failed.
func (s *Server) run(ctx context.Context, operationID, siteURL string) {
	w, err := s.pool.Acquire(ctx)
	if err != nil {
		_ = s.store.MarkFailed(operationID, fmt.Errorf("acquire worker: %w", err))
		return
	}
	defer s.pool.Release(w)

	logger, cleanup := logging.ForScan(s.log, siteURL, s.defaultScanOptions.SaveLogs)
	defer cleanup()

	operation.Run(ctx, operation.WorkerOptions{
		Worker:      w,
		ScanOptions: s.defaultScanOptions,
		OperationID: operationID,
		URL:         siteURL,
		Store:       s.store,
		Uploader:    s.uploader,
		Log:         logger,
	})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "operation id is required")
		return
	}

	op, err := s.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("operation %q not found", id))
		return
	}

	writeJSON(w, http.StatusOK, op)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
