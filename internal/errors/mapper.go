package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MapCompletionError maps errors coming back from a completion provider into
// the Tyson taxonomy. Context errors propagate as-is so cancellation at the
// network suspension point stays visible to the caller.
func MapCompletionError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timeout: %w", ErrTransient)
	}

	// Already categorized
	for _, sentinel := range []error{ErrAuthentication, ErrTransient, ErrMalformedResponse} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "401"),
		strings.Contains(errStr, "403"),
		strings.Contains(errStr, "unauthorized"),
		strings.Contains(errStr, "forbidden"),
		strings.Contains(errStr, "invalid api key"),
		strings.Contains(errStr, "api key"):
		return fmt.Errorf("%v: %w", err, ErrAuthentication)

	case strings.Contains(errStr, "rate limit"),
		strings.Contains(errStr, "quota"),
		strings.Contains(errStr, "too many requests"),
		strings.Contains(errStr, "429"):
		return fmt.Errorf("rate limited: %w", ErrTransient)

	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "deadline exceeded"),
		strings.Contains(errStr, "connection"),
		strings.Contains(errStr, "network"),
		strings.Contains(errStr, "unreachable"),
		strings.Contains(errStr, "eof"),
		strings.Contains(errStr, "502"),
		strings.Contains(errStr, "503"),
		strings.Contains(errStr, "504"):
		return fmt.Errorf("%v: %w", err, ErrTransient)

	case strings.Contains(errStr, "no choices"),
		strings.Contains(errStr, "unexpected response"),
		strings.Contains(errStr, "decode"),
		strings.Contains(errStr, "unmarshal"):
		return fmt.Errorf("%v: %w", err, ErrMalformedResponse)

	default:
		return fmt.Errorf("%v: %w", err, ErrInternal)
	}
}

// IsRetryable reports whether the turn may retry the completion call.
// Authentication and malformed-response failures are terminal for the turn.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient)
}

// Category returns the taxonomy name for diagnostics and logs.
func Category(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrAuthentication):
		return "ErrAuthentication"
	case errors.Is(err, ErrTransient):
		return "ErrTransient"
	case errors.Is(err, ErrMalformedResponse):
		return "ErrMalformedResponse"
	case errors.Is(err, ErrToolNotFound):
		return "ErrToolNotFound"
	case errors.Is(err, ErrArgumentParse):
		return "ErrArgumentParse"
	case errors.Is(err, ErrToolTimeout):
		return "ErrToolTimeout"
	case errors.Is(err, ErrMaxToolIterations):
		return "ErrMaxToolIterations"
	case errors.Is(err, ErrNotFound):
		return "ErrNotFound"
	case errors.Is(err, ErrInvalidInput):
		return "ErrInvalidInput"
	case errors.Is(err, ErrInternal):
		return "ErrInternal"
	default:
		return "Unknown"
	}
}

// Wrap adds message context without changing the category.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NotFound wraps a message as not found.
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidInput wraps a message as invalid input.
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Transient wraps a message as transient.
func Transient(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTransient)
}
