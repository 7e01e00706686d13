package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidAge        = errors.New("age out of range")
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrMissingFrequency  = errors.New("frequency is required for recurring investments")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// ValidationError reports bad input shape or range. Nothing was changed.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field == "" {
		return "validation failed: " + msg
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown id or one owned by another account.
// The two cases are deliberately indistinguishable to callers.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InvalidStateError reports an illegal state-machine transition.
type InvalidStateError struct {
	Entity string
	ID     string
	State  string
	Action string
	Err    error
}

func (e *InvalidStateError) Error() string {
	msg := fmt.Sprintf("cannot %s %s %s in state %q", e.Action, e.Entity, e.ID, e.State)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidStateError) Unwrap() error { return e.Err }

// ConflictError reports a duplicate contribution for a scheduled period.
type ConflictError struct {
	InvestmentID string
	Period       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("contribution for investment %s period %s already recorded", e.InvestmentID, e.Period)
}

func NewValidationError(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
