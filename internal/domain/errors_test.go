package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrValidation, KindOf(NewValidationError("missing to")))
	assert.Equal(t, ErrAuthentication, KindOf(NewAuthenticationError("no token")))
	assert.Equal(t, ErrRateLimit, KindOf(NewRateLimitError("+15550001")))
	assert.Equal(t, ErrProviderAPI, KindOf(NewProviderError("timeout", nil)))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("send_text failed after 4 attempts: %w", NewProviderAPIError("throttled", 130429, 0))
	assert.Equal(t, ErrProviderAPI, KindOf(err))

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, 130429, e.Code)
}

func TestKindOfForeignError(t *testing.T) {
	// Foreign errors only enter via provider calls, so that's the kind
	// they are classified as.
	assert.Equal(t, ErrProviderAPI, KindOf(errors.New("connection reset")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewProviderError("5xx", nil)))
	assert.False(t, IsRetryable(NewValidationError("bad")))
	assert.False(t, IsRetryable(NewAuthenticationError("bad")))
	assert.False(t, IsRetryable(NewRateLimitError("key")))
}

func TestErrorMessageIncludesCode(t *testing.T) {
	err := NewProviderAPIError("rate limit hit", 130429, 2494055)
	assert.Contains(t, err.Error(), "130429")
	assert.Contains(t, err.Error(), "rate limit hit")
}

func TestStatusSupersedes(t *testing.T) {
	assert.True(t, StatusDelivered.Supersedes(StatusSent))
	assert.True(t, StatusRead.Supersedes(StatusDelivered))
	assert.False(t, StatusSent.Supersedes(StatusRead), "read must never revert to sent")
	assert.False(t, StatusSent.Supersedes(StatusSent), "replays must be no-ops")
	assert.Equal(t, -1, Status("bogus").Rank())
}
