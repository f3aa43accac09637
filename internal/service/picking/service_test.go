package picking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/traystore/internal/config"
	"github.com/mamadbah2/traystore/internal/domain/models"
	"github.com/mamadbah2/traystore/internal/service/locking"
	"github.com/mamadbah2/traystore/internal/service/registry"
	"github.com/mamadbah2/traystore/internal/service/transactions"
	"github.com/mamadbah2/traystore/internal/testutil/fakeledger"
)

func newService(t *testing.T) (*Service, *fakeledger.Ledger) {
	t.Helper()

	ledger := fakeledger.New()
	ledger.AddTray(models.Tray{ID: "T1", Contents: []models.TrayItem{{MaterialID: "M1", Quantity: 10}}})
	ledger.AddSapLine(models.SapOrderLine{ID: "17", OrderRef: "SO-1", MaterialID: "M1", Quantity: 5, Consumed: 1, TrayID: "T1", InboundDate: "2026-10-01"})
	ledger.AddSapLine(models.SapOrderLine{ID: "18", OrderRef: "SO-1", MaterialID: "M1", Quantity: 2, Consumed: 2, TrayID: "T1"})
	ledger.AddSapLine(models.SapOrderLine{ID: "19", OrderRef: "SO-2", MaterialID: "M1", Quantity: 1, Consumed: 1, TrayID: "T1"})

	reg := registry.NewRegistry(ledger, 10, nil)
	locker := locking.NewManager(ledger, ledger, config.LockingConfig{DefaultTimeout: 10 * time.Minute, DefaultUserID: "1"}, nil)
	recorder := transactions.NewRecorder(ledger, reg, ledger, nil, nil)
	return NewService(ledger, locker, recorder, nil), ledger
}

func TestActiveOrdersSkipsFinishedOrders(t *testing.T) {
	svc, _ := newService(t)

	orders, err := svc.ActiveOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "SO-1", orders[0].OrderRef)
	assert.Equal(t, 2, orders[0].TotalItems)
	assert.Equal(t, 1, orders[0].PendingItems)
	assert.Equal(t, 1, orders[0].CompletedItems)
}

func TestLinesInTray(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	lines, err := svc.LinesInTray(ctx, "T1")
	require.NoError(t, err)
	assert.Len(t, lines, 3)

	lines, err = svc.LinesInTray(ctx, "T9")
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = svc.LinesInTray(ctx, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestPickLineLocksTrayAndReferencesLine(t *testing.T) {
	svc, ledger := newService(t)

	result, err := svc.PickLine(context.Background(), PickRequest{TrayID: "T1", LineID: "17", Quantity: 3, UserID: "7"})
	require.NoError(t, err)
	assert.Equal(t, -3, result.Transaction.Delta)
	assert.Equal(t, "17", result.Transaction.SapOrderRef)
	assert.Equal(t, "2026-10-01", result.Transaction.Date.Format(models.DateLayout))

	order, ok := ledger.Order(result.OrderID)
	require.True(t, ok)
	assert.Equal(t, "T1", order.TrayID)
	assert.Equal(t, "7", order.UserID)

	line, ok := ledger.SapLine("17")
	require.True(t, ok)
	assert.Zero(t, line.Remaining())

	tray, _ := ledger.Tray("T1")
	assert.Equal(t, 7, tray.Quantity("M1"))
}

func TestPickLineReusesGivenOrder(t *testing.T) {
	svc, ledger := newService(t)
	ctx := context.Background()

	order, err := ledger.CreateOrder(ctx, models.LockRequest{TrayID: "T1", UserID: "1", Timeout: time.Minute})
	require.NoError(t, err)

	result, err := svc.PickLine(ctx, PickRequest{TrayID: "T1", LineID: "17", Quantity: 1, OrderID: order.ID})
	require.NoError(t, err)
	assert.Equal(t, order.ID, result.OrderID)
	assert.Equal(t, 1, ledger.Calls(fakeledger.OpCreateOrder))
}

func TestPickLineRejectsOverpick(t *testing.T) {
	svc, ledger := newService(t)

	_, err := svc.PickLine(context.Background(), PickRequest{TrayID: "T1", LineID: "17", Quantity: 5})
	assert.ErrorIs(t, err, models.ErrExceedsOrderLine)
	assert.ErrorIs(t, err, models.ErrInvariant)
	assert.Zero(t, ledger.Calls(fakeledger.OpCreateOrder))
	assert.Empty(t, ledger.Transactions())
}

func TestPickLineValidation(t *testing.T) {
	svc, ledger := newService(t)
	ctx := context.Background()

	for name, req := range map[string]PickRequest{
		"missing tray":  {LineID: "17", Quantity: 1},
		"missing line":  {TrayID: "T1", Quantity: 1},
		"zero quantity": {TrayID: "T1", LineID: "17"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.PickLine(ctx, req)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
	assert.Zero(t, ledger.Calls(fakeledger.OpSapOrdersInTray))

	_, err := svc.PickLine(ctx, PickRequest{TrayID: "T1", LineID: "99", Quantity: 1})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPickLineRefusesTrayHeldByOtherUser(t *testing.T) {
	svc, ledger := newService(t)
	ctx := context.Background()

	_, err := ledger.CreateOrder(ctx, models.LockRequest{TrayID: "T1", UserID: "U1", Timeout: time.Minute})
	require.NoError(t, err)

	_, err = svc.PickLine(ctx, PickRequest{TrayID: "T1", LineID: "17", Quantity: 1, UserID: "U2"})
	assert.ErrorIs(t, err, models.ErrTrayLocked)
	assert.Empty(t, ledger.Transactions())
}
