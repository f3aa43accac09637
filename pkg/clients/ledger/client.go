package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/config"
	"github.com/mamadbah2/traystore/internal/domain/models"
)

const (
	cameraTopic     = "CAMERA_EVENTS"
	cameraMaxSecs   = 60
	requestIDHeader = "X-Request-ID"
)

// APIClient is a resty-backed client for the nanostore Ledger Store, the
// robot manager slot API and the pub/sub bridge.
type APIClient struct {
	httpClient *resty.Client
	pubsub     *resty.Client
	cfg        config.LedgerConfig
	logger     *zap.Logger
}

// NewClient builds a Ledger Store client using the provided configuration values.
func NewClient(cfg config.LedgerConfig, logger *zap.Logger) *APIClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &APIClient{
		httpClient: newResty(cfg.BaseURL, cfg.Token, cfg.Timeout),
		pubsub:     newResty(cfg.PubSubBaseURL, cfg.Token, cfg.Timeout),
		cfg:        cfg,
		logger:     logger,
	}
}

func newResty(baseURL, token string, timeout time.Duration) *resty.Client {
	client := resty.New()
	client.
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", token)).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			if req.Header.Get(requestIDHeader) == "" {
				req.SetHeader(requestIDHeader, uuid.NewString())
			}
			return nil
		})
	return client
}

// FetchTrays returns one page of trays matching the filter. Tray-and-material
// filters go to trays_for_order; the unfiltered listing goes to trays.
func (c *APIClient) FetchTrays(ctx context.Context, filter models.TrayFilter) (models.TrayPage, error) {
	params := map[string]string{
		"num_records": strconv.Itoa(filter.Limit),
		"offset":      strconv.Itoa(filter.Offset),
	}
	if inStation, ok := filter.Location.InStation(); ok {
		params["in_station"] = strconv.FormatBool(inStation)
	}

	path := "/nanostore/trays_for_order"
	switch {
	case filter.TrayID != "":
		params["tray_id"] = filter.TrayID
	case filter.MaterialID != "":
		params["item_id"] = filter.MaterialID
	default:
		path = "/nanostore/trays"
		if filter.Divider != nil {
			params["tray_divider"] = strconv.Itoa(*filter.Divider)
		}
		if filter.HasInventory != nil {
			params["has_item"] = strconv.FormatBool(*filter.HasInventory)
		}
	}

	var envelope trayEnvelope
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&envelope).
		Get(path)
	if err := checkResponse("fetch trays", resp, err); err != nil {
		return models.TrayPage{}, err
	}

	page := models.TrayPage{
		Trays: groupTrayRows(envelope.Records, filter.Location),
		Rows:  len(envelope.Records),
	}
	if envelope.Count != nil {
		page.Total = *envelope.Count
		page.TotalKnown = true
	}

	c.logger.Debug("trays fetched",
		zap.String("path", path),
		zap.Int("rows", len(envelope.Records)),
		zap.Int("trays", len(page.Trays)))

	return page, nil
}

// FindActiveOrders lists active orders for a tray, oldest update first. An
// empty userID matches every user.
func (c *APIClient) FindActiveOrders(ctx context.Context, trayID, userID string) ([]models.Order, error) {
	params := map[string]string{
		"tray_id":        trayID,
		"status":         string(models.OrderStatusActive),
		"order_by_field": "updated_at",
		"order_by_type":  "ASC",
	}
	if userID != "" {
		params["user_id"] = userID
	}

	var envelope orderEnvelope
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&envelope).
		Get("/nanostore/orders")
	if err := checkResponse("find active orders", resp, err); err != nil {
		return nil, err
	}

	return envelope.orders()
}

// GetOrder looks up one order by id.
func (c *APIClient) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	var envelope orderEnvelope
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("record_id", orderID).
		SetResult(&envelope).
		Get("/nanostore/orders")
	if err := checkResponse("get order", resp, err); err != nil {
		return models.Order{}, err
	}

	orders, err := envelope.orders()
	if err != nil {
		return models.Order{}, err
	}
	for _, order := range orders {
		if order.ID == orderID {
			return order, nil
		}
	}
	return models.Order{}, &models.LedgerError{Op: "get order", StatusCode: http.StatusNotFound, Message: "order " + orderID + " not returned"}
}

// CreateOrder asks the ledger to create a new active order.
func (c *APIClient) CreateOrder(ctx context.Context, req models.LockRequest) (models.Order, error) {
	params := map[string]string{
		"tray_id":            req.TrayID,
		"user_id":            req.UserID,
		"auto_complete_time": strconv.Itoa(timeoutMinutes(req.Timeout)),
	}
	if req.StationID != "" {
		params["station_id"] = req.StationID
	}

	var envelope orderEnvelope
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&envelope).
		Post("/nanostore/orders")
	if err := checkResponse("create order", resp, err); err != nil {
		return models.Order{}, err
	}

	orders, err := envelope.orders()
	if err != nil {
		return models.Order{}, err
	}
	if len(orders) == 0 {
		return models.Order{}, &models.LedgerError{Op: "create order", Message: "empty response"}
	}
	return orders[0], nil
}

// CompleteOrder marks the order completed.
func (c *APIClient) CompleteOrder(ctx context.Context, orderID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("record_id", orderID).
		Patch("/nanostore/orders/complete")
	return checkResponse("complete order", resp, err)
}

// AssignOrderUser stamps the handling user on the order before a transaction.
func (c *APIClient) AssignOrderUser(ctx context.Context, orderID, userID string) error {
	uid, err := strconv.Atoi(userID)
	var body map[string]any
	if err != nil {
		body = map[string]any{"user_id": userID}
	} else {
		body = map[string]any{"user_id": uid}
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("record_id", orderID).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Patch("/nanostore/orders")
	return checkResponse("assign order user", resp, err)
}

// AppendTransaction records one signed movement.
func (c *APIClient) AppendTransaction(ctx context.Context, tx models.Transaction) error {
	params := map[string]string{
		"order_id":                  tx.OrderID,
		"item_id":                   tx.MaterialID,
		"transaction_item_quantity": strconv.Itoa(tx.Delta),
		"transaction_type":          string(tx.Type),
		"transaction_date":          tx.Date.Format(models.DateLayout),
	}
	if tx.SapOrderRef != "" {
		params["sap_order_reference"] = tx.SapOrderRef
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		Post("/nanostore/transaction")
	return checkResponse("append transaction", resp, err)
}

// ReconcileReport fetches one page of reconciliation records with the given
// status. A 404 is returned as ErrNotFound; callers decide what it means.
func (c *APIClient) ReconcileReport(ctx context.Context, status models.ReconcileStatus, page models.Page) ([]models.ReconciliationRecord, error) {
	var envelope reconcileEnvelope
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"reconcile_status": string(status),
			"num_records":      strconv.Itoa(page.Limit),
			"offset":           strconv.Itoa(page.Offset),
		}).
		SetResult(&envelope).
		Get("/nanostore/sap_reconcile/report")
	if err := checkResponse("reconcile report", resp, err); err != nil {
		return nil, err
	}

	records := make([]models.ReconciliationRecord, 0, len(envelope.Records))
	for _, row := range envelope.Records {
		records = append(records, row.record())
	}
	return records, nil
}

// ExternalQuantity returns the external (ERP) quantity for one material.
func (c *APIClient) ExternalQuantity(ctx context.Context, materialID string) (int, error) {
	var envelope reconcileEnvelope
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"material":    materialID,
			"num_records": "1",
			"offset":      "0",
		}).
		SetResult(&envelope).
		Get("/nanostore/sap_reconcile/report")
	if err := checkResponse("external quantity", resp, err); err != nil {
		return 0, err
	}

	for _, row := range envelope.Records {
		if string(row.Material) == materialID {
			return row.SapQuantity, nil
		}
	}
	return 0, &models.LedgerError{Op: "external quantity", StatusCode: http.StatusNotFound, Message: "material " + materialID + " not returned"}
}

// ActiveSapOrders lists the open ERP orders with their line counts.
func (c *APIClient) ActiveSapOrders(ctx context.Context) ([]models.SapOrderSummary, error) {
	var envelope struct {
		Records []sapSummaryRow `json:"records"`
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("order_status", "active").
		SetResult(&envelope).
		Get("/nanostore/sap_orders/get_unique_sap_orders")
	if err := checkResponse("active sap orders", resp, err); err != nil {
		return nil, err
	}

	orders := make([]models.SapOrderSummary, 0, len(envelope.Records))
	for _, row := range envelope.Records {
		orders = append(orders, models.SapOrderSummary{
			OrderRef:       string(row.OrderRef),
			TotalItems:     row.TotalItems,
			PendingItems:   row.PendingItems,
			CompletedItems: row.CompletedItems,
			Status:         row.OrderStatus,
		})
	}
	return orders, nil
}

// SapOrdersInTray lists the ERP order lines that pick from the tray. A tray
// with no lines is a 404.
func (c *APIClient) SapOrdersInTray(ctx context.Context, trayID string) ([]models.SapOrderLine, error) {
	var envelope struct {
		Records []sapLineRow `json:"records"`
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("tray_id", trayID).
		SetResult(&envelope).
		Get("/nanostore/sap_orders/get_orders_in_tray")
	if err := checkResponse("sap orders in tray", resp, err); err != nil {
		return nil, err
	}

	lines := make([]models.SapOrderLine, 0, len(envelope.Records))
	for _, row := range envelope.Records {
		lines = append(lines, row.line())
	}
	return lines, nil
}

// ListStations returns idle pick/put stations, most recently updated first.
func (c *APIClient) ListStations(ctx context.Context) ([]models.Station, error) {
	var envelope struct {
		Records []models.Station `json:"records"`
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"tags":           "station",
			"slot_status":    "inactive",
			"order_by_field": "updated_at",
			"order_by_type":  "DESC",
		}).
		SetResult(&envelope).
		Get("/robotmanager/slots")
	if err := checkResponse("list stations", resp, err); err != nil {
		return nil, err
	}
	return envelope.Records, nil
}

// UnblockSlot frees a station slot after its order is released.
func (c *APIClient) UnblockSlot(ctx context.Context, slotID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("slot_id", slotID).
		Patch("/robotmanager/unblock")
	return checkResponse("unblock slot", resp, err)
}

// PublishCameraEvent asks the station camera for a snapshot of the tray.
func (c *APIClient) PublishCameraEvent(ctx context.Context, event models.CameraEvent) error {
	payload := map[string]any{
		"event":     "capture_snap",
		"task_id":   event.TrayID,
		"filename":  fmt.Sprintf("%s - %s", event.TrayID, event.UserID),
		"max_secs":  cameraMaxSecs,
		"camera_id": c.cfg.CameraID,
		"device_id": c.cfg.CameraDeviceID,
	}

	resp, err := c.pubsub.R().
		SetContext(ctx).
		SetQueryParam("topic", cameraTopic).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/pubsub/publish")
	return checkResponse("publish camera event", resp, err)
}

// apiError represents a Ledger Store error payload.
type apiError struct {
	Message string `json:"message"`
	Detail  any    `json:"detail"`
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &models.LedgerError{Op: op, Err: err}
	}
	if resp.StatusCode() < http.StatusBadRequest {
		return nil
	}

	message := strings.TrimSpace(resp.String())
	var payload apiError
	if jsonErr := json.Unmarshal(resp.Body(), &payload); jsonErr == nil {
		switch {
		case payload.Message != "":
			message = payload.Message
		case payload.Detail != nil:
			message = fmt.Sprint(payload.Detail)
		}
	}

	return &models.LedgerError{Op: op, StatusCode: resp.StatusCode(), Message: message}
}

func timeoutMinutes(d time.Duration) int {
	minutes := int(math.Ceil(d.Minutes()))
	if minutes < 1 {
		return 1
	}
	return minutes
}
