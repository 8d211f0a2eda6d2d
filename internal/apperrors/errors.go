package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors, one family per failure class. Input errors map to 4xx and
// are never retried; ledger-write errors are surfaced verbatim and retryable;
// consistency errors indicate corruption and must not be retried.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrNotOpen           = errors.New("exception is not open")
	ErrLedgerWrite       = errors.New("ledger write failed")
	ErrDuplicateInFlight = errors.New("duplicate request already in flight")
	ErrStaleChain        = errors.New("audit append lost to a concurrent writer")
	ErrChainCorrupted    = errors.New("audit chain corrupted")
)

// Invalid wraps ErrInvalidInput with a caller-facing message.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidInput}, args...)...)
}

// LedgerWrite wraps a provider error so its code/message reach the caller
// verbatim while callers can still test the class with errors.Is.
func LedgerWrite(provider error) error {
	return fmt.Errorf("%w: %v", ErrLedgerWrite, provider)
}

// IsInput reports whether err belongs to the reject-immediately class.
func IsInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotOpen)
}

// IsConsistency reports whether err indicates data corruption rather than a
// transient condition.
func IsConsistency(err error) bool {
	return errors.Is(err, ErrChainCorrupted) || errors.Is(err, ErrStaleChain)
}
