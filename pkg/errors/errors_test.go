package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCapturesCodeAndSeverity(t *testing.T) {
	err := New(ErrOrderNotFound, "order abc123 not found")

	assert.Equal(t, ErrOrderNotFound, err.Code)
	assert.Equal(t, SeverityLow, err.Severity)
	assert.Contains(t, err.Error(), "ORDER_NOT_FOUND")
	assert.Contains(t, err.Error(), "order abc123 not found")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	wrapped := Wrap(cause, ErrAdapterTransport, "place_order failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, cause, wrapped.Unwrap())
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrAdapterTransport, "should not happen"))
}

func TestIsAndGetErrorCode(t *testing.T) {
	err := New(ErrCrossedBook, "best_bid >= best_ask")

	assert.True(t, Is(err, ErrCrossedBook))
	assert.False(t, Is(err, ErrOrderNotFound))
	assert.Equal(t, ErrCrossedBook, GetErrorCode(err))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain error")))
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrAdapterTransport, true},
		{ErrAdapterTimeout, true},
		{ErrOrderRejectedByVenue, false},
		{ErrOrderNotFound, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.retryable, IsRetryable(New(c.code, "x")), "code=%s", c.code)
	}
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(New(ErrOrderNotFound, "x")))
	assert.True(t, IsClientError(New(ErrMissingStrategyParam, "x")))
	assert.False(t, IsClientError(New(ErrAdapterTransport, "x")))
}

func TestErrorGroup(t *testing.T) {
	eg := NewErrorGroup()
	assert.False(t, eg.HasErrors())

	eg.Add(nil)
	assert.False(t, eg.HasErrors())

	eg.Add(New(ErrOrderNotFound, "a"))
	eg.Add(New(ErrInvalidOrder, "b"))
	assert.True(t, eg.HasErrors())
	assert.Len(t, eg.Errors(), 2)
	assert.Contains(t, eg.Error(), "2 errors")
}

func TestDefaultErrorHandlerBackoff(t *testing.T) {
	h := NewDefaultErrorHandler()

	assert.Equal(t, h.BaseDelay, h.GetRetryDelay(New(ErrAdapterTransport, "x"), 0))
	assert.Less(t, h.GetRetryDelay(New(ErrAdapterTransport, "x"), 1), h.GetRetryDelay(New(ErrAdapterTransport, "x"), 3))
	assert.LessOrEqual(t, h.GetRetryDelay(New(ErrAdapterTransport, "x"), 100), h.MaxDelay)
	assert.True(t, h.ShouldRetry(New(ErrAdapterTimeout, "x")))
	assert.False(t, h.ShouldRetry(New(ErrOrderNotFound, "x")))
}
