package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the payout and fraud core. Validation, conflict,
// rail-disabled and not-configured errors are raised synchronously and
// never mutate state; external transfer errors mean no money moved.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoPayoutAccount   = errors.New("no payout account connected")
	ErrUserBlacklisted   = errors.New("user is blacklisted")
)

// ValidationError reports a malformed connect payload or threshold value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a named field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports an attempt to connect a rail while a different rail
// is already connected. Switching rails requires disconnecting first.
type ConflictError struct {
	Rail     string // requested rail
	Existing string // currently connected rail
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("payout account already connected via %s; disconnect before connecting %s", e.Existing, e.Rail)
}

// RailDisabledError reports that the platform has disabled the target rail.
type RailDisabledError struct {
	Rail string
}

func (e *RailDisabledError) Error() string {
	return fmt.Sprintf("payout rail %s is disabled", e.Rail)
}

// NotConfiguredError reports missing platform credentials for a rail.
type NotConfiguredError struct {
	Rail string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("payout rail %s is not configured", e.Rail)
}

// ExternalTransferError wraps a rail API rejection or timeout. Callers must
// treat it as "no money moved".
type ExternalTransferError struct {
	Rail string
	Err  error
}

func (e *ExternalTransferError) Error() string {
	return fmt.Sprintf("payout failed: %v", e.Err)
}

func (e *ExternalTransferError) Unwrap() error {
	return e.Err
}
