package models

import (
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of a tray reservation.
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusCompleted OrderStatus = "completed"
)

// orderTransitions lists every allowed status change. Completed is terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusActive: {OrderStatusCompleted},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseOrderStatus normalizes the ledger's status strings.
func ParseOrderStatus(value string) (OrderStatus, error) {
	switch value {
	case "active", "ACTIVE", "Active":
		return OrderStatusActive, nil
	case "completed", "COMPLETED", "Completed", "complete", "inactive":
		return OrderStatusCompleted, nil
	default:
		return "", fmt.Errorf("%w: unknown order status %q", ErrValidation, value)
	}
}

// Order is a time-bounded exclusive reservation binding one tray to one user.
type Order struct {
	ID           string        `json:"order_id"`
	TrayID       string        `json:"tray_id"`
	UserID       string        `json:"user_id"`
	StationID    string        `json:"station_id,omitempty"`
	AutoComplete time.Duration `json:"auto_complete"`
	Status       OrderStatus   `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Active reports whether the order still holds its tray.
func (o Order) Active() bool {
	return o.Status == OrderStatusActive
}

// ExpiresAt is the instant the ledger will auto-complete the order if nothing
// touches it in the meantime.
func (o Order) ExpiresAt() time.Time {
	base := o.UpdatedAt
	if base.IsZero() {
		base = o.CreatedAt
	}
	return base.Add(o.AutoComplete)
}

// NeedsRecheck reports whether a locally held copy can no longer be trusted
// without asking the ledger again.
func (o Order) NeedsRecheck(now time.Time) bool {
	if !o.Active() {
		return false
	}
	if o.AutoComplete <= 0 {
		return true
	}
	return !now.Before(o.ExpiresAt())
}

// Transition moves the order to the next status, rejecting moves outside the
// transition table.
func (o Order) Transition(to OrderStatus) (Order, error) {
	if o.Status == to && to == OrderStatusCompleted {
		return o, nil
	}
	if !CanTransition(o.Status, to) {
		return o, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	return o, nil
}

// LockRequest carries the inputs of a request-tray or select-tray action.
type LockRequest struct {
	TrayID    string
	UserID    string
	StationID string
	Timeout   time.Duration
}

// Validate rejects malformed lock requests before any network call.
func (r LockRequest) Validate() error {
	if r.TrayID == "" {
		return fmt.Errorf("%w: tray_id", ErrInvalidID)
	}
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id", ErrInvalidID)
	}
	if r.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
