package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// flexID accepts identifiers the ledger sends either as numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type trayRow struct {
	TrayID            flexID  `json:"tray_id"`
	ItemID            flexID  `json:"item_id"`
	ItemDescription   string  `json:"item_description"`
	AvailableQuantity int     `json:"available_quantity"`
	InboundDate       string  `json:"inbound_date"`
	TrayStatus        string  `json:"tray_status"`
	TrayDivider       int     `json:"tray_divider"`
	TrayHeight        int     `json:"tray_height"`
	TrayWeight        float64 `json:"tray_weight"`
	TrayLockCount     *int    `json:"tray_lockcount"`
	InStation         *bool   `json:"in_station"`
}

type trayEnvelope struct {
	Records []trayRow `json:"records"`
	Count   *int      `json:"count"`
}

// groupTrayRows folds the ledger's one-row-per-item listing into trays,
// keeping first-seen order for both trays and contents.
func groupTrayRows(rows []trayRow, requested models.Location) []models.Tray {
	trays := make([]models.Tray, 0, len(rows))
	index := make(map[string]int, len(rows))

	for _, row := range rows {
		if row.TrayID == "" {
			continue
		}

		trayID := string(row.TrayID)
		pos, seen := index[trayID]
		if !seen {
			location := requested
			if row.InStation != nil {
				location = models.LocationStorage
				if *row.InStation {
					location = models.LocationStation
				}
			}
			lockCount := 1
			if row.TrayLockCount != nil {
				lockCount = *row.TrayLockCount
			}
			trays = append(trays, models.Tray{
				ID:        trayID,
				Divider:   row.TrayDivider,
				Height:    row.TrayHeight,
				Weight:    row.TrayWeight,
				Location:  location,
				LockCount: lockCount,
				Status:    models.TrayStatus(row.TrayStatus),
				Contents:  []models.TrayItem{},
			})
			pos = len(trays) - 1
			index[trayID] = pos
		}

		if row.ItemID == "" {
			continue
		}
		trays[pos].Contents = append(trays[pos].Contents, models.TrayItem{
			MaterialID:  string(row.ItemID),
			Description: row.ItemDescription,
			Quantity:    row.AvailableQuantity,
			InboundDate: row.InboundDate,
		})
	}

	return trays
}

type orderRecord struct {
	ID               flexID `json:"id"`
	RecordID         flexID `json:"record_id"`
	TrayID           string `json:"tray_id"`
	UserID           flexID `json:"user_id"`
	StationID        string `json:"station_id"`
	Status           string `json:"status"`
	AutoCompleteTime *int   `json:"auto_complete_time"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type orderEnvelope struct {
	Records []orderRecord `json:"records"`
}

func (e orderEnvelope) orders() ([]models.Order, error) {
	orders := make([]models.Order, 0, len(e.Records))
	for _, rec := range e.Records {
		order, err := rec.order()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r orderRecord) order() (models.Order, error) {
	id := string(r.ID)
	if id == "" {
		id = string(r.RecordID)
	}
	if id == "" {
		return models.Order{}, fmt.Errorf("ledger order record without id for tray %s", r.TrayID)
	}

	status := models.OrderStatusActive
	if r.Status != "" {
		parsed, err := models.ParseOrderStatus(r.Status)
		if err != nil {
			return models.Order{}, err
		}
		status = parsed
	}

	order := models.Order{
		ID:        id,
		TrayID:    r.TrayID,
		UserID:    string(r.UserID),
		StationID: r.StationID,
		Status:    status,
		CreatedAt: parseTimestamp(r.CreatedAt),
		UpdatedAt: parseTimestamp(r.UpdatedAt),
	}
	if r.AutoCompleteTime != nil {
		order.AutoComplete = time.Duration(*r.AutoCompleteTime) * time.Minute
	}
	return order, nil
}

type reconcileRow struct {
	Material           flexID `json:"material"`
	SapQuantity        int    `json:"sap_quantity"`
	ItemQuantity       int    `json:"item_quantity"`
	QuantityDifference int    `json:"quantity_difference"`
	ReconcileStatus    string `json:"reconcile_status"`
}

type reconcileEnvelope struct {
	Records []reconcileRow `json:"records"`
}

// record derives difference and status from the two quantities so every
// record obeys the same classification rule regardless of what the ledger sent.
func (r reconcileRow) record() models.ReconciliationRecord {
	return models.NewReconciliationRecord(string(r.Material), r.SapQuantity, r.ItemQuantity)
}

type sapLineRow struct {
	ID           flexID `json:"id"`
	OrderRef     flexID `json:"order_ref"`
	Material     flexID `json:"material"`
	Description  string `json:"item_description"`
	Quantity     int    `json:"quantity"`
	Consumed     int    `json:"quantity_consumed"`
	TrayID       flexID `json:"tray_id"`
	InboundDate  string `json:"inbound_date"`
	MovementType string `json:"movement_type"`
}

func (r sapLineRow) line() models.SapOrderLine {
	return models.SapOrderLine{
		ID:           string(r.ID),
		OrderRef:     string(r.OrderRef),
		MaterialID:   string(r.Material),
		Description:  r.Description,
		Quantity:     r.Quantity,
		Consumed:     r.Consumed,
		TrayID:       string(r.TrayID),
		InboundDate:  r.InboundDate,
		MovementType: r.MovementType,
	}
}

type sapSummaryRow struct {
	OrderRef       flexID `json:"order_ref"`
	TotalItems     int    `json:"total_items"`
	PendingItems   int    `json:"pending_items"`
	CompletedItems int    `json:"completed_items"`
	OrderStatus    string `json:"order_status"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	models.DateLayout,
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}
