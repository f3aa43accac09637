// Package fakeledger is an in-memory Ledger Store used by service and handler
// tests. It enforces the ledger's own rules: one active order per tray,
// transactions only against active orders, and 404 for empty lookups.
package fakeledger

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// Operation names accepted by Fail and counted by Calls.
const (
	OpFetchTrays         = "fetch_trays"
	OpFindActiveOrders   = "find_active_orders"
	OpGetOrder           = "get_order"
	OpCreateOrder        = "create_order"
	OpCompleteOrder      = "complete_order"
	OpAssignOrderUser    = "assign_order_user"
	OpAppendTransaction  = "append_transaction"
	OpReconcileReport    = "reconcile_report"
	OpExternalQuantity   = "external_quantity"
	OpListStations       = "list_stations"
	OpUnblockSlot        = "unblock_slot"
	OpPublishCameraEvent = "publish_camera_event"
	OpActiveSapOrders    = "active_sap_orders"
	OpSapOrdersInTray    = "sap_orders_in_tray"
)

// Ledger is safe for concurrent use.
type Ledger struct {
	mu sync.Mutex

	trayOrder    []string
	trays        map[string]*models.Tray
	orders       map[string]*models.Order
	orderSeq     int
	transactions []models.Transaction
	external     map[string]int
	stations     []models.Station
	unblocked    []string
	cameraEvents []models.CameraEvent
	sapLines     []models.SapOrderLine
	calls        map[string]int
	failures     map[string]error

	// OnCall runs before every operation, outside the lock.
	OnCall func(op string)
	Now    func() time.Time
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		trays:    make(map[string]*models.Tray),
		orders:   make(map[string]*models.Order),
		external: make(map[string]int),
		calls:    make(map[string]int),
		failures: make(map[string]error),
		Now:      time.Now,
	}
}

// AddTray seeds a tray. A zero LockCount is raised to 1 (available).
func (l *Ledger) AddTray(tray models.Tray) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tray.LockCount == 0 {
		tray.LockCount = 1
	}
	if tray.Location == models.LocationAny {
		tray.Location = models.LocationStorage
	}
	tray.Contents = append([]models.TrayItem(nil), tray.Contents...)
	if _, ok := l.trays[tray.ID]; !ok {
		l.trayOrder = append(l.trayOrder, tray.ID)
	}
	l.trays[tray.ID] = &tray
}

// SetExternal seeds the external ledger quantity of a material.
func (l *Ledger) SetExternal(materialID string, quantity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.external[materialID] = quantity
}

// AddStation seeds an idle station.
func (l *Ledger) AddStation(station models.Station) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stations = append(l.stations, station)
}

// Fail makes every later call of op return err until cleared with a nil err.
func (l *Ledger) Fail(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.failures, op)
		return
	}
	l.failures[op] = err
}

// Unavailable is a transport-level failure as the real client reports it.
func Unavailable(op string) error {
	return &models.LedgerError{Op: op, StatusCode: http.StatusBadGateway, Message: "upstream unavailable"}
}

// Calls returns how many times op was invoked.
func (l *Ledger) Calls(op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[op]
}

// Expire auto-completes an active order the way the ledger does on timeout.
func (l *Ledger) Expire(orderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if order, ok := l.orders[orderID]; ok && order.Active() {
		l.completeLocked(order)
	}
}

// Tray returns a copy of the stored tray.
func (l *Ledger) Tray(trayID string) (models.Tray, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tray, ok := l.trays[trayID]
	if !ok {
		return models.Tray{}, false
	}
	return copyTray(*tray), true
}

// Order returns a copy of the stored order.
func (l *Ledger) Order(orderID string) (models.Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok {
		return models.Order{}, false
	}
	return *order, true
}

// Transactions returns every appended transaction in order.
func (l *Ledger) Transactions() []models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Transaction(nil), l.transactions...)
}

// CameraEvents returns every published camera event.
func (l *Ledger) CameraEvents() []models.CameraEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.CameraEvent(nil), l.cameraEvents...)
}

// Unblocked returns every unblocked slot id.
func (l *Ledger) Unblocked() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.unblocked...)
}

func (l *Ledger) begin(op string) error {
	if l.OnCall != nil {
		l.OnCall(op)
	}
	l.mu.Lock()
	l.calls[op]++
	err := l.failures[op]
	l.mu.Unlock()
	return err
}

func notFound(op, what string) error {
	return &models.LedgerError{Op: op, StatusCode: http.StatusNotFound, Message: what + " not found"}
}

func conflict(op, what string) error {
	return &models.LedgerError{Op: op, StatusCode: http.StatusConflict, Message: what}
}

func (l *Ledger) FetchTrays(ctx context.Context, filter models.TrayFilter) (models.TrayPage, error) {
	if err := l.begin(OpFetchTrays); err != nil {
		return models.TrayPage{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.TrayPage{}, &models.LedgerError{Op: OpFetchTrays, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	matched := make([]models.Tray, 0)
	for _, id := range l.trayOrder {
		tray := l.trays[id]
		if filter.TrayID != "" && tray.ID != filter.TrayID {
			continue
		}
		if filter.MaterialID != "" && !tray.HasMaterial(filter.MaterialID) {
			continue
		}
		if filter.Location != models.LocationAny && tray.Location != filter.Location {
			continue
		}
		if filter.Divider != nil && tray.Divider != *filter.Divider {
			continue
		}
		if filter.HasInventory != nil && (len(tray.Contents) > 0) != *filter.HasInventory {
			continue
		}
		matched = append(matched, copyTray(*tray))
	}

	filtered := filter.TrayID != "" || filter.MaterialID != ""
	if !filtered {
		total := len(matched)
		start, end := window(filter.Offset, filter.Limit, total)
		return models.TrayPage{Trays: matched[start:end], Total: total, TotalKnown: true, Rows: end - start}, nil
	}
	if len(matched) == 0 {
		return models.TrayPage{}, notFound(OpFetchTrays, "trays")
	}

	// Filtered listings page item rows like trays_for_order does. A material
	// filter only returns that material's rows.
	rows := itemRows(matched, filter.MaterialID)
	start, end := window(filter.Offset, filter.Limit, len(rows))
	return models.TrayPage{Trays: groupRows(rows[start:end]), Rows: end - start}, nil
}

type itemRow struct {
	tray models.Tray
	item *models.TrayItem
}

func itemRows(trays []models.Tray, materialID string) []itemRow {
	rows := make([]itemRow, 0, len(trays))
	for _, tray := range trays {
		shell := tray
		shell.Contents = nil
		if len(tray.Contents) == 0 && materialID == "" {
			rows = append(rows, itemRow{tray: shell})
		}
		for i := range tray.Contents {
			if materialID != "" && tray.Contents[i].MaterialID != materialID {
				continue
			}
			rows = append(rows, itemRow{tray: shell, item: &tray.Contents[i]})
		}
	}
	return rows
}

func groupRows(rows []itemRow) []models.Tray {
	trays := make([]models.Tray, 0, len(rows))
	index := make(map[string]int)
	for _, row := range rows {
		pos, ok := index[row.tray.ID]
		if !ok {
			tray := row.tray
			tray.Contents = []models.TrayItem{}
			pos = len(trays)
			index[tray.ID] = pos
			trays = append(trays, tray)
		}
		if row.item != nil {
			trays[pos].Contents = append(trays[pos].Contents, *row.item)
		}
	}
	return trays
}

func window(offset, limit, total int) (int, int) {
	start := min(offset, total)
	end := total
	if limit > 0 {
		end = min(start+limit, total)
	}
	return start, end
}

func (l *Ledger) FindActiveOrders(_ context.Context, trayID, userID string) ([]models.Order, error) {
	if err := l.begin(OpFindActiveOrders); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	orders := make([]models.Order, 0)
	for _, order := range l.orders {
		if order.TrayID != trayID || !order.Active() {
			continue
		}
		if userID != "" && order.UserID != userID {
			continue
		}
		orders = append(orders, *order)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].UpdatedAt.Before(orders[j].UpdatedAt)
	})
	return orders, nil
}

func (l *Ledger) GetOrder(_ context.Context, orderID string) (models.Order, error) {
	if err := l.begin(OpGetOrder); err != nil {
		return models.Order{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[orderID]
	if !ok {
		return models.Order{}, notFound(OpGetOrder, "order "+orderID)
	}
	return *order, nil
}

func (l *Ledger) CreateOrder(_ context.Context, req models.LockRequest) (models.Order, error) {
	if err := l.begin(OpCreateOrder); err != nil {
		return models.Order{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tray, ok := l.trays[req.TrayID]
	if !ok {
		return models.Order{}, notFound(OpCreateOrder, "tray "+req.TrayID)
	}
	for _, order := range l.orders {
		if order.TrayID == req.TrayID && order.Active() {
			return models.Order{}, conflict(OpCreateOrder, "tray "+req.TrayID+" already has an active order")
		}
	}

	l.orderSeq++
	now := l.Now().UTC()
	order := &models.Order{
		ID:           strconv.Itoa(l.orderSeq),
		TrayID:       req.TrayID,
		UserID:       req.UserID,
		StationID:    req.StationID,
		AutoComplete: req.Timeout,
		Status:       models.OrderStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	l.orders[order.ID] = order
	tray.LockCount = 0
	return *order, nil
}

func (l *Ledger) CompleteOrder(_ context.Context, orderID string) error {
	if err := l.begin(OpCompleteOrder); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[orderID]
	if !ok {
		return notFound(OpCompleteOrder, "order "+orderID)
	}
	if !order.Active() {
		return conflict(OpCompleteOrder, "order "+orderID+" already completed")
	}
	l.completeLocked(order)
	return nil
}

func (l *Ledger) completeLocked(order *models.Order) {
	order.Status = models.OrderStatusCompleted
	order.UpdatedAt = l.Now().UTC()
	if tray, ok := l.trays[order.TrayID]; ok {
		tray.LockCount = 1
	}
}

func (l *Ledger) AssignOrderUser(_ context.Context, orderID, userID string) error {
	if err := l.begin(OpAssignOrderUser); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[orderID]
	if !ok {
		return notFound(OpAssignOrderUser, "order "+orderID)
	}
	order.UserID = userID
	order.UpdatedAt = l.Now().UTC()
	return nil
}

func (l *Ledger) AppendTransaction(_ context.Context, tx models.Transaction) error {
	if err := l.begin(OpAppendTransaction); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[tx.OrderID]
	if !ok {
		return notFound(OpAppendTransaction, "order "+tx.OrderID)
	}
	if !order.Active() {
		return conflict(OpAppendTransaction, "order "+tx.OrderID+" is not active")
	}

	tray, ok := l.trays[order.TrayID]
	if !ok {
		return notFound(OpAppendTransaction, "tray "+order.TrayID)
	}

	applied := false
	for i := range tray.Contents {
		if tray.Contents[i].MaterialID == tx.MaterialID {
			tray.Contents[i].Quantity += tx.Delta
			applied = true
			break
		}
	}
	if !applied {
		tray.Contents = append(tray.Contents, models.TrayItem{
			MaterialID:  tx.MaterialID,
			Quantity:    tx.Delta,
			InboundDate: tx.Date.Format(models.DateLayout),
		})
	}

	if tx.SapOrderRef != "" && tx.Delta < 0 {
		for i := range l.sapLines {
			if l.sapLines[i].ID == tx.SapOrderRef {
				l.sapLines[i].Consumed -= tx.Delta
			}
		}
	}

	order.UpdatedAt = l.Now().UTC()
	l.transactions = append(l.transactions, tx)
	return nil
}

// AddSapLine seeds an ERP order line.
func (l *Ledger) AddSapLine(line models.SapOrderLine) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sapLines = append(l.sapLines, line)
}

// SapLine returns the stored line.
func (l *Ledger) SapLine(id string) (models.SapOrderLine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.sapLines {
		if line.ID == id {
			return line, true
		}
	}
	return models.SapOrderLine{}, false
}

// ActiveSapOrders summarises lines per order ref. An order stays active
// while any line has quantity left.
func (l *Ledger) ActiveSapOrders(_ context.Context) ([]models.SapOrderSummary, error) {
	if err := l.begin(OpActiveSapOrders); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	summaries := make([]models.SapOrderSummary, 0)
	index := make(map[string]int)
	for _, line := range l.sapLines {
		pos, ok := index[line.OrderRef]
		if !ok {
			summaries = append(summaries, models.SapOrderSummary{OrderRef: line.OrderRef, Status: "completed"})
			pos = len(summaries) - 1
			index[line.OrderRef] = pos
		}
		summary := &summaries[pos]
		summary.TotalItems++
		if line.Remaining() > 0 {
			summary.PendingItems++
			summary.Status = "active"
		} else {
			summary.CompletedItems++
		}
	}

	active := summaries[:0]
	for _, summary := range summaries {
		if summary.Status == "active" {
			active = append(active, summary)
		}
	}
	return active, nil
}

func (l *Ledger) SapOrdersInTray(_ context.Context, trayID string) ([]models.SapOrderLine, error) {
	if err := l.begin(OpSapOrdersInTray); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lines := make([]models.SapOrderLine, 0)
	for _, line := range l.sapLines {
		if line.TrayID == trayID {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, notFound(OpSapOrdersInTray, "sap orders for tray "+trayID)
	}
	return lines, nil
}

func (l *Ledger) ReconcileReport(_ context.Context, status models.ReconcileStatus, page models.Page) ([]models.ReconciliationRecord, error) {
	if err := l.begin(OpReconcileReport); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	internal := make(map[string]int)
	for _, tray := range l.trays {
		for _, item := range tray.Contents {
			internal[item.MaterialID] += item.Quantity
		}
	}

	materials := make([]string, 0, len(internal)+len(l.external))
	seen := make(map[string]bool)
	for material := range internal {
		seen[material] = true
		materials = append(materials, material)
	}
	for material := range l.external {
		if !seen[material] {
			materials = append(materials, material)
		}
	}
	sort.Strings(materials)

	records := make([]models.ReconciliationRecord, 0)
	for _, material := range materials {
		record := models.NewReconciliationRecord(material, l.external[material], internal[material])
		if record.Status == status {
			records = append(records, record)
		}
	}

	start := min(page.Offset, len(records))
	end := len(records)
	if page.Limit > 0 {
		end = min(start+page.Limit, len(records))
	}
	if start == end {
		return nil, notFound(OpReconcileReport, fmt.Sprintf("%s records", status))
	}
	return records[start:end], nil
}

func (l *Ledger) ExternalQuantity(_ context.Context, materialID string) (int, error) {
	if err := l.begin(OpExternalQuantity); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	quantity, ok := l.external[materialID]
	if !ok {
		return 0, notFound(OpExternalQuantity, "material "+materialID)
	}
	return quantity, nil
}

func (l *Ledger) ListStations(_ context.Context) ([]models.Station, error) {
	if err := l.begin(OpListStations); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Station{}, l.stations...), nil
}

func (l *Ledger) UnblockSlot(_ context.Context, slotID string) error {
	if err := l.begin(OpUnblockSlot); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.unblocked = append(l.unblocked, slotID)
	return nil
}

func (l *Ledger) PublishCameraEvent(_ context.Context, event models.CameraEvent) error {
	if err := l.begin(OpPublishCameraEvent); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cameraEvents = append(l.cameraEvents, event)
	return nil
}

func copyTray(tray models.Tray) models.Tray {
	tray.Contents = append([]models.TrayItem{}, tray.Contents...)
	return tray
}
