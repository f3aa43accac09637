package models

// SapOrderSummary is one open ERP order with its line progress.
type SapOrderSummary struct {
	OrderRef       string `json:"order_ref"`
	TotalItems     int    `json:"total_items"`
	PendingItems   int    `json:"pending_items"`
	CompletedItems int    `json:"completed_items"`
	Status         string `json:"order_status"`
}

// SapOrderLine is one ERP order line to be picked from a tray.
type SapOrderLine struct {
	ID           string `json:"id"`
	OrderRef     string `json:"order_ref"`
	MaterialID   string `json:"material"`
	Description  string `json:"item_description"`
	Quantity     int    `json:"quantity"`
	Consumed     int    `json:"quantity_consumed"`
	TrayID       string `json:"tray_id"`
	InboundDate  string `json:"inbound_date,omitempty"`
	MovementType string `json:"movement_type,omitempty"`
}

// Remaining is the quantity still to pick, never negative.
func (l SapOrderLine) Remaining() int {
	if l.Consumed >= l.Quantity {
		return 0
	}
	return l.Quantity - l.Consumed
}
