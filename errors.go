package crowdfund

import (
	"errors"
	"fmt"

	"github.com/xraph/crowdfund/payout"
	"github.com/xraph/crowdfund/priceoracle"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrAlreadyExists = errors.New("crowdfund: already exists")
	ErrInvalidInput  = errors.New("crowdfund: invalid input")

	// Ledger errors
	ErrLedgerNotFound           = errors.New("crowdfund: ledger not found")
	ErrInsufficientContribution = errors.New("crowdfund: contribution below minimum usd value")
	ErrNotOwner                 = errors.New("crowdfund: caller is not the owner")
	ErrTransferFailed           = errors.New("crowdfund: transfer to owner failed")
	ErrIndexOutOfRange          = errors.New("crowdfund: funder index out of range")
	ErrInvalidAmount            = errors.New("crowdfund: invalid amount")
	ErrInvalidAddress           = errors.New("crowdfund: address is empty")
	ErrInconsistentState        = errors.New("crowdfund: ledger state is inconsistent")

	// ErrOracleUnavailable is returned when the price feed cannot be read or
	// reports an unusable price. It is the same value as
	// priceoracle.ErrOracleUnavailable.
	ErrOracleUnavailable = priceoracle.ErrOracleUnavailable

	// ErrTransferRejected is returned by payout.Vault for recipients that refuse value.
	ErrTransferRejected = payout.ErrRejected

	// Store errors
	ErrStoreClosed     = errors.New("crowdfund: store is closed")
	ErrMigrationFailed = errors.New("crowdfund: migration failed")
	ErrRollbackFailed  = errors.New("crowdfund: rollback failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("crowdfund: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap makes every ValidationError match ErrInvalidInput.
func (e ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "crowdfund: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("crowdfund: %d errors occurred: %v", len(e.Errors), e.Errors[0])
}

// Unwrap lets errors.Is and errors.As see every collected error.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLedgerNotFound)
}

// IsAuthorization returns true if the caller was not allowed to perform the operation.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrNotOwner)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOracleUnavailable) ||
		errors.Is(err, ErrTransferFailed)
}
