package domain

import "errors"

// Error taxonomy shared across services and handlers. Call sites wrap these
// with fmt.Errorf("...: %w", Err...) and handlers map them to HTTP codes.
var (
	// ErrValidation marks user-correctable bad input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown booking or package.
	ErrNotFound = errors.New("not found")
	// ErrUpstream marks store or internal service failure.
	ErrUpstream = errors.New("upstream unavailable")
	// ErrGateway marks a payment provider failure or rejection.
	ErrGateway = errors.New("payment gateway error")
	// ErrPreconditionFailed marks an operation attempted before its
	// required state, e.g. a voucher requested before settlement.
	ErrPreconditionFailed = errors.New("precondition failed")
)
