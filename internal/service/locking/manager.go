package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/config"
	"github.com/mamadbah2/traystore/internal/domain/models"
)

// OrderStore is the part of the Ledger Store that owns orders.
type OrderStore interface {
	FindActiveOrders(ctx context.Context, trayID, userID string) ([]models.Order, error)
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
	CreateOrder(ctx context.Context, req models.LockRequest) (models.Order, error)
	CompleteOrder(ctx context.Context, orderID string) error
}

// StationController frees station slots and triggers the station camera.
type StationController interface {
	ListStations(ctx context.Context) ([]models.Station, error)
	UnblockSlot(ctx context.Context, slotID string) error
	PublishCameraEvent(ctx context.Context, event models.CameraEvent) error
}

// Manager creates and releases tray reservations. It keeps no timers and no
// cached order state: every status question goes back to the ledger.
type Manager struct {
	orders   OrderStore
	stations StationController
	cfg      config.LockingConfig
	logger   *zap.Logger
}

// NewManager wires the lock manager. stations may be nil when no robot
// manager is reachable; Release then only completes the order.
func NewManager(orders OrderStore, stations StationController, cfg config.LockingConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{orders: orders, stations: stations, cfg: cfg, logger: logger}
}

// RequestLock returns the oldest active order the user already holds on the
// tray, or creates one. A tray held by another user is refused before any
// order is created. A duplicate-creation conflict from the ledger is resolved
// by looking the order up again.
func (m *Manager) RequestLock(ctx context.Context, req models.LockRequest) (models.Order, error) {
	if req.UserID == "" {
		req.UserID = m.cfg.DefaultUserID
	}
	if req.Timeout == 0 {
		req.Timeout = m.cfg.DefaultTimeout
	}
	if err := req.Validate(); err != nil {
		return models.Order{}, err
	}

	existing, err := m.orders.FindActiveOrders(ctx, req.TrayID, "")
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return models.Order{}, fmt.Errorf("lookup active order for tray %s: %w", req.TrayID, err)
	}
	for _, order := range existing {
		current, err := m.confirmActive(ctx, order)
		if err != nil {
			return models.Order{}, err
		}
		if !current.Active() {
			continue
		}
		if current.UserID != req.UserID {
			return models.Order{}, fmt.Errorf("%w: tray %s held by order %s", models.ErrTrayLocked, req.TrayID, current.ID)
		}
		m.logger.Debug("reusing active order",
			zap.String("tray_id", req.TrayID),
			zap.String("order_id", current.ID))
		return current, nil
	}

	order, err := m.orders.CreateOrder(ctx, req)
	if err == nil {
		m.logger.Info("order created",
			zap.String("tray_id", req.TrayID),
			zap.String("user_id", req.UserID),
			zap.String("order_id", order.ID),
			zap.Duration("auto_complete", req.Timeout))
		return order, nil
	}
	if !models.IsConflict(err) {
		return models.Order{}, fmt.Errorf("create order for tray %s: %w", req.TrayID, err)
	}

	return m.resolveConflict(ctx, req)
}

// confirmActive re-reads an order whose auto-complete deadline has passed,
// since the listing may not reflect the ledger's timeout yet.
func (m *Manager) confirmActive(ctx context.Context, order models.Order) (models.Order, error) {
	if !order.NeedsRecheck(time.Now()) {
		return order, nil
	}
	current, err := m.orders.GetOrder(ctx, order.ID)
	if errors.Is(err, models.ErrNotFound) {
		return models.Order{}, nil
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("recheck order %s: %w", order.ID, err)
	}
	return current, nil
}

// resolveConflict runs after the ledger refused a second active order. If the
// winner belongs to this user the lock is ours; otherwise the tray is taken.
func (m *Manager) resolveConflict(ctx context.Context, req models.LockRequest) (models.Order, error) {
	mine, err := m.orders.FindActiveOrders(ctx, req.TrayID, req.UserID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return models.Order{}, fmt.Errorf("lookup order after conflict on tray %s: %w", req.TrayID, err)
	}
	if len(mine) > 0 {
		m.logger.Info("duplicate order creation resolved to existing order",
			zap.String("tray_id", req.TrayID),
			zap.String("order_id", mine[0].ID))
		return mine[0], nil
	}

	others, err := m.orders.FindActiveOrders(ctx, req.TrayID, "")
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return models.Order{}, fmt.Errorf("lookup order after conflict on tray %s: %w", req.TrayID, err)
	}
	if len(others) > 0 {
		return models.Order{}, fmt.Errorf("%w: tray %s held by order %s", models.ErrTrayLocked, req.TrayID, others[0].ID)
	}

	// The competing order completed between the conflict and the lookup.
	return models.Order{}, fmt.Errorf("%w: tray %s", models.ErrTrayLocked, req.TrayID)
}

// FindActive returns the oldest active order on the tray, optionally
// restricted to one user. ErrNotFound means the tray is not locked.
func (m *Manager) FindActive(ctx context.Context, trayID, userID string) (models.Order, error) {
	if trayID == "" {
		return models.Order{}, fmt.Errorf("%w: tray_id", models.ErrInvalidID)
	}

	orders, err := m.orders.FindActiveOrders(ctx, trayID, userID)
	if err != nil {
		return models.Order{}, err
	}
	if len(orders) == 0 {
		return models.Order{}, fmt.Errorf("%w: no active order on tray %s", models.ErrNotFound, trayID)
	}
	return orders[0], nil
}

// Get re-queries the ledger for the order's current status.
func (m *Manager) Get(ctx context.Context, orderID string) (models.Order, error) {
	if orderID == "" {
		return models.Order{}, fmt.Errorf("%w: order_id", models.ErrInvalidID)
	}
	return m.orders.GetOrder(ctx, orderID)
}

// Complete transitions the order to Completed. Completing an order the
// ledger already completed, by request or by timeout, succeeds.
func (m *Manager) Complete(ctx context.Context, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("%w: order_id", models.ErrInvalidID)
	}

	err := m.orders.CompleteOrder(ctx, orderID)
	if err == nil {
		m.logger.Info("order completed", zap.String("order_id", orderID))
		return nil
	}
	if !errors.Is(err, models.ErrInvariant) && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("complete order %s: %w", orderID, err)
	}

	order, getErr := m.orders.GetOrder(ctx, orderID)
	if getErr != nil {
		return fmt.Errorf("complete order %s: %w", orderID, getErr)
	}
	if _, terr := order.Transition(models.OrderStatusCompleted); terr != nil {
		return terr
	}
	if order.Active() {
		return fmt.Errorf("complete order %s: %w", orderID, err)
	}

	m.logger.Debug("order already completed", zap.String("order_id", orderID))
	return nil
}

// Release hands the tray back: it snapshots the tray, completes the order and
// frees the station slot. Camera failures are logged and never block.
func (m *Manager) Release(ctx context.Context, orderID, slotID string) error {
	order, err := m.Get(ctx, orderID)
	if err != nil {
		return err
	}

	if m.stations != nil && order.Active() {
		event := models.CameraEvent{TrayID: order.TrayID, UserID: order.UserID}
		if err := m.stations.PublishCameraEvent(ctx, event); err != nil {
			m.logger.Warn("camera event failed on release",
				zap.String("order_id", orderID),
				zap.String("tray_id", order.TrayID),
				zap.Error(err))
		}
	}

	if err := m.Complete(ctx, orderID); err != nil {
		return err
	}

	if slotID == "" {
		slotID = order.StationID
	}
	if m.stations == nil || slotID == "" {
		return nil
	}
	if err := m.stations.UnblockSlot(ctx, slotID); err != nil {
		return fmt.Errorf("unblock slot %s: %w", slotID, err)
	}

	m.logger.Info("tray released",
		zap.String("order_id", orderID),
		zap.String("tray_id", order.TrayID),
		zap.String("slot_id", slotID))
	return nil
}

// Stations lists idle pick/put stations.
func (m *Manager) Stations(ctx context.Context) ([]models.Station, error) {
	if m.stations == nil {
		return []models.Station{}, nil
	}
	stations, err := m.stations.ListStations(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return []models.Station{}, nil
	}
	return stations, err
}
