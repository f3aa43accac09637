package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format the ledger accepts.
const DateLayout = "2006-01-02"

// TransactionType is the direction of a quantity movement.
type TransactionType string

const (
	TransactionInbound  TransactionType = "inbound"
	TransactionOutbound TransactionType = "outbound"
)

// ParseTransactionType accepts inbound/outbound and the original UI aliases.
func ParseTransactionType(value string) (TransactionType, error) {
	switch value {
	case "inbound", "putaway", "in":
		return TransactionInbound, nil
	case "outbound", "pick", "out":
		return TransactionOutbound, nil
	default:
		return "", fmt.Errorf("%w: unknown transaction direction %q", ErrValidation, value)
	}
}

// Transaction is an immutable ledger entry against an order.
type Transaction struct {
	OrderID     string          `json:"order_id"`
	MaterialID  string          `json:"material_id"`
	Delta       int             `json:"quantity_delta"`
	Date        time.Time       `json:"transaction_date"`
	Type        TransactionType `json:"transaction_type"`
	SapOrderRef string          `json:"sap_order_reference,omitempty"`
}

// NewTransaction builds a transaction from an unsigned quantity, negating it
// for outbound movements.
func NewTransaction(orderID, materialID string, typ TransactionType, quantity int, date time.Time) (Transaction, error) {
	if quantity < 0 {
		return Transaction{}, ErrInvalidQuantity
	}
	delta := quantity
	if typ == TransactionOutbound {
		delta = -quantity
	}
	tx := Transaction{
		OrderID:    orderID,
		MaterialID: materialID,
		Delta:      delta,
		Date:       date,
		Type:       typ,
	}
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// Validate checks identifiers and that the type agrees with the delta sign.
// A zero delta is accepted in either direction.
func (t Transaction) Validate() error {
	if t.OrderID == "" {
		return fmt.Errorf("%w: order_id", ErrInvalidID)
	}
	if t.MaterialID == "" {
		return fmt.Errorf("%w: material_id", ErrInvalidID)
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	switch t.Type {
	case TransactionInbound:
		if t.Delta < 0 {
			return fmt.Errorf("%w: inbound delta %d is negative", ErrValidation, t.Delta)
		}
	case TransactionOutbound:
		if t.Delta > 0 {
			return fmt.Errorf("%w: outbound delta %d is positive", ErrValidation, t.Delta)
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, t.Type)
	}
	return nil
}

// Quantity is the unsigned amount moved.
func (t Transaction) Quantity() int {
	if t.Delta < 0 {
		return -t.Delta
	}
	return t.Delta
}

// ParseDate parses a YYYY-MM-DD transaction date.
func ParseDate(value string) (time.Time, error) {
	if len(value) > len(DateLayout) {
		value = value[:len(DateLayout)]
	}
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return parsed, nil
}
