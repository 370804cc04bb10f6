package operation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cookiebanner/scanner/internal/browser"
	"github.com/cookiebanner/scanner/internal/result"
	"github.com/cookiebanner/scanner/internal/scan"
	"github.com/cookiebanner/scanner/internal/scanerr"
	"github.com/cookiebanner/scanner/internal/storage"
)

// WorkerOptions configures a scan worker invocation.
type WorkerOptions struct {
	Worker      *browser.Worker
	ScanOptions scan.Options
	OperationID string
	URL         string
	Store       Store
	Uploader    storage.Uploader
	Log         zerolog.Logger
}

// Run executes one site scan, uploads the resulting JSON record and any
// screenshots, and transitions the operation through
// running → complete | failed.
//
// Run is intended to be called in a separate goroutine after the caller
// has already checked a *browser.Worker out of a Pool; it does not release
// the worker back to the pool itself — the caller does that once Run
// returns, so the worker is held for exactly the scan's duration.
//
// The scan runs through scan.RunWithRetry, so a condition that is
// retryable on a first try gets exactly one more attempt before anything
// is recorded. A scanerr.Error returned alongside a non-nil result (the
// normal case: scan.Site always returns a result) is recorded as a
// completed operation carrying the corresponding chrome_error; the
// operation is never resubmitted beyond that one retry.
func Run(ctx context.Context, opts WorkerOptions) {
	if err := opts.Store.MarkRunning(opts.OperationID); err != nil {
		// If we cannot even mark it running the store is broken; nothing to do.
		return
	}

	res, err := scan.RunWithRetry(ctx, opts.Worker, scan.Input{SiteURL: opts.URL}, opts.ScanOptions, opts.Log)

	if res == nil {
		_ = opts.Store.MarkFailed(opts.OperationID, fmt.Errorf("scan: %w", err))
		return
	}
	if err != nil {
		var serr *scanerr.Error
		if !errors.As(err, &serr) {
			_ = opts.Store.MarkFailed(opts.OperationID, fmt.Errorf("scan: %w", err))
			return
		}
	}

	artefacts, err := uploadArtefacts(ctx, opts.OperationID, res, opts.Uploader)
	if err != nil {
		_ = opts.Store.MarkFailed(opts.OperationID, fmt.Errorf("upload: %w", err))
		return
	}

	_ = opts.Store.MarkComplete(opts.OperationID, res, artefacts)
}

// uploadArtefacts serialises the scan result and every attached
// screenshot and uploads them. Returns the artefact list ready to be
// stored on the operation.
func uploadArtefacts(ctx context.Context, operationID string, res *result.Result, uploader storage.Uploader) ([]Artefact, error) {
	var artefacts []Artefact

	resultJSON, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	resultRequest := &storage.UploadRequest{
		ObjectName:  objectPath(operationID, "result.json"),
		Content:     bytes.NewReader(resultJSON),
		ContentType: "application/json",
	}
	uploaded, err := uploader.Upload(ctx, resultRequest)
	if err != nil {
		return nil, err
	}
	artefacts = append(artefacts, Artefact{
		Name:      "result",
		SignedURL: uploaded.SignedURL,
		ExpiresAt: uploaded.ExpiresAt,
	})

	for name, data := range res.Files {
		fileRequest := &storage.UploadRequest{
			ObjectName:  objectPath(operationID, name),
			Content:     bytes.NewReader(data),
			ContentType: "image/png",
		}
		uploaded, err := uploader.Upload(ctx, fileRequest)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", name, err)
		}
		artefacts = append(artefacts, Artefact{
			Name:      name,
			SignedURL: uploaded.SignedURL,
			ExpiresAt: uploaded.ExpiresAt,
		})
	}

	return artefacts, nil
}

func objectPath(operationID, filename string) string {
	date := time.Now().UTC().Format("2006/01/02")
	return fmt.Sprintf("operations/%s/%s/%s", date, operationID, filename)
}
