package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by every service. Callers match with errors.Is.
var (
	// ErrNotFound marks a valid absence (tray, order or reconciliation record).
	ErrNotFound = errors.New("not found")
	// ErrUnavailable marks a transport or collaborator failure.
	ErrUnavailable = errors.New("ledger unavailable")
	// ErrInvariant marks an operation rejected because it would break a domain invariant.
	ErrInvariant = errors.New("invariant violation")
	// ErrValidation marks malformed input rejected before any network call.
	ErrValidation = errors.New("validation failed")
)

var (
	ErrOrderNotActive       = fmt.Errorf("%w: order not active", ErrInvariant)
	ErrTrayLocked           = fmt.Errorf("%w: tray already reserved by another order", ErrInvariant)
	ErrInsufficientQuantity = fmt.Errorf("%w: insufficient available quantity", ErrInvariant)
	ErrInvalidTransition    = fmt.Errorf("%w: order status transition not allowed", ErrInvariant)
	ErrExceedsOrderLine     = fmt.Errorf("%w: pick exceeds the order line's remaining quantity", ErrInvariant)

	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be a non-negative integer", ErrValidation)
	ErrInvalidID       = fmt.Errorf("%w: identifier must not be empty", ErrValidation)
	ErrInvalidDate     = fmt.Errorf("%w: transaction date must be YYYY-MM-DD", ErrValidation)
	ErrInvalidTimeout  = fmt.Errorf("%w: auto-complete timeout must be positive", ErrValidation)
)

// LedgerError describes a failed call against the Ledger Store.
type LedgerError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *LedgerError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ledger %s: status=%d, message=%s", e.Op, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ledger %s: %s", e.Op, e.Message)
}

// Unwrap maps the HTTP outcome onto the error taxonomy so errors.Is works
// against the package sentinels.
func (e *LedgerError) Unwrap() []error {
	kind := ErrUnavailable
	switch {
	case e.StatusCode == http.StatusNotFound:
		kind = ErrNotFound
	case e.StatusCode == http.StatusConflict, e.StatusCode == http.StatusUnprocessableEntity:
		kind = ErrInvariant
	case e.StatusCode == http.StatusBadRequest:
		kind = ErrValidation
	}
	if e.Err != nil {
		return []error{kind, e.Err}
	}
	return []error{kind}
}

// IsConflict reports whether err came back from the ledger as a 409.
func IsConflict(err error) bool {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.StatusCode == http.StatusConflict
	}
	return false
}
