// Package scanerr classifies the terminal browser/transport conditions a
// scan can end in and decides whether a given
// condition should raise a retry signal (first try) or be recorded
// directly on the result (subsequent tries).
package scanerr

import (
	"fmt"

	"github.com/cookiebanner/scanner/internal/result"
)

// Code mirrors result.ChromeError; kept distinct so the controller can
// reason about classification without importing the result package's full
// surface into the lowest layers that raise these errors.
type Code = result.ChromeError

const (
	Timeout                     = result.ErrTimeout
	StartupProblem              = result.ErrStartupProblem
	NotReachable                = result.ErrNotReachable
	DNSNotResolved              = result.ErrDNSNotResolved
	WebsocketExceptionInteract  = result.ErrWebsocketExceptionInteract
	WebsocketNoInteract         = result.ErrWebsocketExceptionNoInteract
	BannerGone                  = result.ErrBannerGone
)

// Error wraps an underlying cause with a classification code. errors.As
// still reaches the original cause through Unwrap.
type Error struct {
	Code  Code
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause with the given classification code.
func New(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// Retryable reports whether this condition should raise a retry signal to
// the external job queue rather than being recorded terminally. Per
// every condition here is retryable on the first attempt;
// none are retryable afterwards. A transport crash that happens after at
// least one click in replay is always terminal regardless of try count —
// callers pass postInteraction=true for WebsocketExceptionInteract, which
// this method treats as never retryable.
func Retryable(code Code, isFirstTry bool, postInteraction bool) bool {
	if code == BannerGone {
		// banner_gone can only occur during replay, itself gated on a
		// successful initial scan; it is never a first-try signal.
		return false
	}
	if code == WebsocketExceptionInteract || postInteraction {
		return false
	}
	return isFirstTry
}
