package scanerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableOnFirstTryOnly(t *testing.T) {
	for _, code := range []Code{Timeout, StartupProblem, NotReachable, DNSNotResolved, WebsocketNoInteract} {
		assert.True(t, Retryable(code, true, false), "%s should be retryable on the first try", code)
		assert.False(t, Retryable(code, false, false), "%s should be terminal on later tries", code)
	}
}

func TestBannerGoneNeverRetries(t *testing.T) {
	assert.False(t, Retryable(BannerGone, true, false))
	assert.False(t, Retryable(BannerGone, false, false))
}

func TestPostInteractionTransportCrashNeverRetries(t *testing.T) {
	assert.False(t, Retryable(WebsocketExceptionInteract, true, true))
	assert.False(t, Retryable(WebsocketExceptionInteract, true, false))
	assert.False(t, Retryable(WebsocketNoInteract, true, true))
}

func TestErrorUnwrapsToCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := New(Timeout, fmt.Errorf("navigate: %w", cause))

	var serr *Error
	assert.True(t, errors.As(err, &serr))
	assert.Equal(t, Timeout, serr.Code)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "timeout")
}

func TestErrorWithoutCause(t *testing.T) {
	err := New(BannerGone, nil)
	assert.Equal(t, "banner_gone", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}
