package custom_err

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrValidation        = errors.New("invalid request")
	ErrLockContention    = errors.New("locked, retry shortly")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrEngineTimeout     = errors.New("could not confirm, please retry")
	ErrEngineError       = errors.New("engine rejected the request")
	ErrConnection        = errors.New("connection error")
	ErrProtocol          = errors.New("unexpected engine response")
	ErrPersistence       = errors.New("failed to persist state")
	ErrConflict          = errors.New("record already in terminal state")
	ErrDuplicate         = errors.New("duplicate record")
	ErrTooManyRecipients = errors.New("too many recipients")
)

// ValidationError carries the user-facing reason a request was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError reports the debit that was required against what the wallet could spend.
// Amounts are display strings so this package stays free of the money type.
type InsufficientFundsError struct {
	Required  string
	Available string
	Symbol    string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance, %s %s required (available %s)", e.Required, e.Symbol, e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// EngineError is an application-level rejection reported by a wallet engine.
type EngineError struct {
	Message string
}

func (e *EngineError) Error() string { return e.Message }

func (e *EngineError) Is(target error) bool { return target == ErrEngineError }
