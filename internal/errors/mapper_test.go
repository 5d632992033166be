package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapCompletionError_Authentication(t *testing.T) {
	err := MapCompletionError(fmt.Errorf("status code 401, invalid api key"))
	require.ErrorIs(t, err, ErrAuthentication)
	require.False(t, IsRetryable(err))
}

func TestMapCompletionError_Transient(t *testing.T) {
	cases := []string{
		"dial tcp: connection refused",
		"429 too many requests",
		"request timeout",
		"unexpected EOF",
		"502 bad gateway",
	}
	for _, msg := range cases {
		err := MapCompletionError(errors.New(msg))
		require.ErrorIs(t, err, ErrTransient, "input: %s", msg)
		require.True(t, IsRetryable(err), "input: %s", msg)
	}
}

func TestMapCompletionError_Malformed(t *testing.T) {
	err := MapCompletionError(errors.New("no choices returned"))
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.False(t, IsRetryable(err))
}

func TestMapCompletionError_ContextPassthrough(t *testing.T) {
	require.ErrorIs(t, MapCompletionError(context.Canceled), context.Canceled)
	require.ErrorIs(t, MapCompletionError(context.DeadlineExceeded), ErrTransient)
	require.False(t, IsRetryable(context.Canceled))
}

func TestMapCompletionError_PreservesCategory(t *testing.T) {
	wrapped := fmt.Errorf("provider said no: %w", ErrAuthentication)
	require.ErrorIs(t, MapCompletionError(wrapped), ErrAuthentication)
}

func TestCategory(t *testing.T) {
	require.Equal(t, "ErrNotFound", Category(NotFound("x")))
	require.Equal(t, "ErrToolNotFound", Category(fmt.Errorf("dispatch: %w", ErrToolNotFound)))
	require.Equal(t, "ErrMaxToolIterations", Category(fmt.Errorf("loop: %w", ErrMaxToolIterations)))
	require.Equal(t, "", Category(nil))
}
