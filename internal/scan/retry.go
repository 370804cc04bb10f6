package scan

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/cookiebanner/scanner/internal/browser"
	"github.com/cookiebanner/scanner/internal/result"
	"github.com/cookiebanner/scanner/internal/scanerr"
)

// RunWithRetry runs Site, and if the first attempt ends in a condition
// scanerr.Retryable accepts on a first try, runs it exactly once more with
// meta.IsFirstTry=false so the second attempt's outcome is recorded rather
// than retried again. Callers with their own external job queue should call
// Site directly and do their own rescheduling instead - this exists for the
// callers in this repository (the CLI and the HTTP server) that have no
// queue of their own to play that role.
//
// Grounded on spec.md §4.6 step 2 / §7's two-tier retry behaviour.
func RunWithRetry(ctx context.Context, w *browser.Worker, in Input, opts Options, log zerolog.Logger) (*result.Result, error) {
	for attempt := 1; ; attempt++ {
		res, err := Site(ctx, w, in, opts, Meta{WorkerID: w.ID(), IsFirstTry: attempt == 1}, log)

		var serr *scanerr.Error
		if attempt == 1 && errors.As(err, &serr) && scanerr.Retryable(serr.Code, true, false) {
			log.Info().Str("chrome_error", string(serr.Code)).Msg("retrying scan after first-try failure")
			continue
		}
		return res, err
	}
}
