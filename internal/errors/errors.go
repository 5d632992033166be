package errors

import (
	"errors"
)

// Sentinel errors for the failure categories a conversation turn can hit.
var (
	// ErrAuthentication - missing or rejected credential. Fatal, never retried;
	// the credential has to be fixed out-of-band.
	ErrAuthentication = errors.New("authentication failed")

	// ErrTransient - connection refused, timeout, rate limit. Safe to retry
	// with backoff within the turn's retry budget.
	ErrTransient = errors.New("transient error")

	// ErrMalformedResponse - the completion endpoint answered with a shape we
	// cannot use (no choices, undecodable body). Fatal for the current turn;
	// the user entry stays on the transcript so the turn can be retried.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrToolNotFound - the model requested a tool that is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrArgumentParse - tool arguments did not parse or failed schema validation.
	ErrArgumentParse = errors.New("argument parse error")

	// ErrToolTimeout - a tool handler exceeded the invocation deadline.
	ErrToolTimeout = errors.New("tool timeout")

	// ErrMaxToolIterations - the tool-dispatch loop hit its round-trip bound
	// for a single user message.
	ErrMaxToolIterations = errors.New("max tool iterations exceeded")

	// ErrNotFound - resource not found (session, transcript file).
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput - caller supplied an unusable request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal - anything that doesn't fit a category above.
	ErrInternal = errors.New("internal error")
)
