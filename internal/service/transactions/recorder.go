package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// Ledger is the part of the Ledger Store the recorder writes to.
type Ledger interface {
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
	AssignOrderUser(ctx context.Context, orderID, userID string) error
	AppendTransaction(ctx context.Context, tx models.Transaction) error
}

// QuantitySource answers the last locally known available quantity.
type QuantitySource interface {
	LastKnownQuantity(trayID, materialID string) (int, bool)
	QueryByTray(ctx context.Context, trayID string, location models.Location) ([]models.Tray, error)
}

// Camera captures a tray snapshot before a pick.
type Camera interface {
	PublishCameraEvent(ctx context.Context, event models.CameraEvent) error
}

// Nudger is told which tray changed after a confirmed commit.
type Nudger interface {
	Nudge(trayID string)
}

// Movement is one inbound or outbound request.
type Movement struct {
	OrderID     string
	MaterialID  string
	Type        models.TransactionType
	Quantity    int
	Date        time.Time
	UserID      string
	SapOrderRef string
}

// Recorder appends signed movements against active orders.
type Recorder struct {
	ledger     Ledger
	quantities QuantitySource
	camera     Camera
	nudger     Nudger
	logger     *zap.Logger
}

// NewRecorder wires the recorder. camera and nudger may be nil.
func NewRecorder(ledger Ledger, quantities QuantitySource, camera Camera, nudger Nudger, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		ledger:     ledger,
		quantities: quantities,
		camera:     camera,
		nudger:     nudger,
		logger:     logger,
	}
}

// SetNudger attaches the orchestrator after construction.
func (r *Recorder) SetNudger(n Nudger) {
	r.nudger = n
}

// RecordInbound puts quantity units of the material into the order's tray.
func (r *Recorder) RecordInbound(ctx context.Context, orderID, materialID string, quantity int, date time.Time) (models.Transaction, error) {
	return r.Record(ctx, Movement{
		OrderID:    orderID,
		MaterialID: materialID,
		Type:       models.TransactionInbound,
		Quantity:   quantity,
		Date:       date,
	})
}

// RecordOutbound picks quantity units of the material from the order's tray.
func (r *Recorder) RecordOutbound(ctx context.Context, orderID, materialID string, quantity int, date time.Time) (models.Transaction, error) {
	return r.Record(ctx, Movement{
		OrderID:    orderID,
		MaterialID: materialID,
		Type:       models.TransactionOutbound,
		Quantity:   quantity,
		Date:       date,
	})
}

// Record validates the movement, confirms the order is still active and
// appends it. Nothing local changes unless the ledger accepts the append.
func (r *Recorder) Record(ctx context.Context, m Movement) (models.Transaction, error) {
	tx, err := models.NewTransaction(m.OrderID, m.MaterialID, m.Type, m.Quantity, m.Date)
	if err != nil {
		return models.Transaction{}, err
	}
	tx.SapOrderRef = m.SapOrderRef

	order, err := r.ledger.GetOrder(ctx, m.OrderID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return models.Transaction{}, fmt.Errorf("%w: order %s does not exist", models.ErrOrderNotActive, m.OrderID)
	case err != nil:
		return models.Transaction{}, fmt.Errorf("load order %s: %w", m.OrderID, err)
	case !order.Active():
		return models.Transaction{}, fmt.Errorf("%w: order %s is %s", models.ErrOrderNotActive, order.ID, order.Status)
	}

	if tx.Type == models.TransactionOutbound {
		if err := r.checkAvailable(ctx, order.TrayID, tx); err != nil {
			return models.Transaction{}, err
		}
	}

	if m.UserID != "" && m.UserID != order.UserID {
		if err := r.ledger.AssignOrderUser(ctx, order.ID, m.UserID); err != nil {
			return models.Transaction{}, fmt.Errorf("assign user to order %s: %w", order.ID, err)
		}
	}

	if tx.Type == models.TransactionOutbound && r.camera != nil {
		userID := m.UserID
		if userID == "" {
			userID = order.UserID
		}
		if err := r.camera.PublishCameraEvent(ctx, models.CameraEvent{TrayID: order.TrayID, UserID: userID}); err != nil {
			r.logger.Warn("camera event failed before pick",
				zap.String("order_id", order.ID),
				zap.String("tray_id", order.TrayID),
				zap.Error(err))
		}
	}

	if err := r.ledger.AppendTransaction(ctx, tx); err != nil {
		if errors.Is(err, models.ErrInvariant) || errors.Is(err, models.ErrNotFound) {
			return models.Transaction{}, fmt.Errorf("%w: order %s rejected the transaction: %v", models.ErrOrderNotActive, order.ID, err)
		}
		return models.Transaction{}, fmt.Errorf("append transaction to order %s: %w", order.ID, err)
	}

	r.logger.Info("transaction recorded",
		zap.String("order_id", tx.OrderID),
		zap.String("tray_id", order.TrayID),
		zap.String("material_id", tx.MaterialID),
		zap.String("type", string(tx.Type)),
		zap.Int("delta", tx.Delta))

	if r.nudger != nil {
		r.nudger.Nudge(order.TrayID)
	}
	return tx, nil
}

// checkAvailable compares the pick against the last known quantity. Two
// concurrent picks can both pass; the ledger has no compare-and-swap.
func (r *Recorder) checkAvailable(ctx context.Context, trayID string, tx models.Transaction) error {
	if r.quantities == nil || tx.Quantity() == 0 {
		return nil
	}

	available, known := r.quantities.LastKnownQuantity(trayID, tx.MaterialID)
	if !known {
		trays, err := r.quantities.QueryByTray(ctx, trayID, models.LocationAny)
		if err != nil {
			return fmt.Errorf("load tray %s: %w", trayID, err)
		}
		for _, tray := range trays {
			available += tray.Quantity(tx.MaterialID)
		}
	}

	if available < tx.Quantity() {
		return fmt.Errorf("%w: tray %s holds %d of %s, %d requested",
			models.ErrInsufficientQuantity, trayID, available, tx.MaterialID, tx.Quantity())
	}
	return nil
}
