package picking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
	"github.com/mamadbah2/traystore/internal/service/transactions"
)

// OrderSource lists ERP orders and their lines.
type OrderSource interface {
	ActiveSapOrders(ctx context.Context) ([]models.SapOrderSummary, error)
	SapOrdersInTray(ctx context.Context, trayID string) ([]models.SapOrderLine, error)
}

// Locker reserves the tray a line is picked from.
type Locker interface {
	RequestLock(ctx context.Context, req models.LockRequest) (models.Order, error)
}

// Recorder appends the outbound movement.
type Recorder interface {
	Record(ctx context.Context, m transactions.Movement) (models.Transaction, error)
}

// PickRequest picks quantity units for one order line. OrderID may be empty,
// in which case the tray is locked for UserID first.
type PickRequest struct {
	TrayID   string `json:"tray_id"`
	LineID   string `json:"line_id"`
	Quantity int    `json:"quantity"`
	OrderID  string `json:"order_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// PickResult is the committed movement and the line as it stood before it.
type PickResult struct {
	Line        models.SapOrderLine `json:"line"`
	OrderID     string              `json:"order_id"`
	Transaction models.Transaction  `json:"transaction"`
}

// Service picks ERP order lines out of trays.
type Service struct {
	orders   OrderSource
	locker   Locker
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(orders OrderSource, locker Locker, recorder Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{orders: orders, locker: locker, recorder: recorder, logger: logger, now: time.Now}
}

// ActiveOrders lists open ERP orders.
func (s *Service) ActiveOrders(ctx context.Context) ([]models.SapOrderSummary, error) {
	orders, err := s.orders.ActiveSapOrders(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return []models.SapOrderSummary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list active sap orders: %w", err)
	}
	return orders, nil
}

// LinesInTray lists the order lines to pick from the tray. No lines is an
// empty list.
func (s *Service) LinesInTray(ctx context.Context, trayID string) ([]models.SapOrderLine, error) {
	if trayID == "" {
		return nil, fmt.Errorf("%w: tray_id", models.ErrInvalidID)
	}
	lines, err := s.orders.SapOrdersInTray(ctx, trayID)
	if errors.Is(err, models.ErrNotFound) {
		return []models.SapOrderLine{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sap orders in tray %s: %w", trayID, err)
	}
	return lines, nil
}

// PickLine records an outbound movement for the line, referenced by the
// line id. The quantity may not exceed what the line still needs.
func (s *Service) PickLine(ctx context.Context, req PickRequest) (PickResult, error) {
	if req.TrayID == "" {
		return PickResult{}, fmt.Errorf("%w: tray_id", models.ErrInvalidID)
	}
	if req.LineID == "" {
		return PickResult{}, fmt.Errorf("%w: line_id", models.ErrInvalidID)
	}
	if req.Quantity <= 0 {
		return PickResult{}, models.ErrInvalidQuantity
	}

	line, err := s.findLine(ctx, req.TrayID, req.LineID)
	if err != nil {
		return PickResult{}, err
	}
	if req.Quantity > line.Remaining() {
		return PickResult{}, fmt.Errorf("%w: line %s has %d left, requested %d",
			models.ErrExceedsOrderLine, line.ID, line.Remaining(), req.Quantity)
	}

	orderID := req.OrderID
	if orderID == "" {
		order, err := s.locker.RequestLock(ctx, models.LockRequest{TrayID: req.TrayID, UserID: req.UserID})
		if err != nil {
			return PickResult{}, err
		}
		orderID = order.ID
	}

	date := s.now().UTC()
	if line.InboundDate != "" {
		parsed, err := models.ParseDate(line.InboundDate)
		if err != nil {
			return PickResult{}, fmt.Errorf("line %s: %w", line.ID, err)
		}
		date = parsed
	}

	tx, err := s.recorder.Record(ctx, transactions.Movement{
		OrderID:     orderID,
		MaterialID:  line.MaterialID,
		Type:        models.TransactionOutbound,
		Quantity:    req.Quantity,
		Date:        date,
		UserID:      req.UserID,
		SapOrderRef: line.ID,
	})
	if err != nil {
		return PickResult{}, err
	}

	s.logger.Info("sap order line picked",
		zap.String("order_ref", line.OrderRef),
		zap.String("line_id", line.ID),
		zap.String("tray_id", req.TrayID),
		zap.Int("quantity", req.Quantity))
	return PickResult{Line: line, OrderID: orderID, Transaction: tx}, nil
}

func (s *Service) findLine(ctx context.Context, trayID, lineID string) (models.SapOrderLine, error) {
	lines, err := s.LinesInTray(ctx, trayID)
	if err != nil {
		return models.SapOrderLine{}, err
	}
	for _, line := range lines {
		if line.ID == lineID {
			return line, nil
		}
	}
	return models.SapOrderLine{}, fmt.Errorf("%w: sap order line %s in tray %s", models.ErrNotFound, lineID, trayID)
}
