package transactions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/traystore/internal/domain/models"
	"github.com/mamadbah2/traystore/internal/service/registry"
	"github.com/mamadbah2/traystore/internal/testutil/fakeledger"
)

type recordingNudger struct {
	mu    sync.Mutex
	trays []string
}

func (n *recordingNudger) Nudge(trayID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.trays = append(n.trays, trayID)
}

func (n *recordingNudger) nudged() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.trays...)
}

type fixture struct {
	ledger   *fakeledger.Ledger
	registry *registry.Registry
	nudger   *recordingNudger
	recorder *Recorder
	order    models.Order
}

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) fixture {
	t.Helper()

	ledger := fakeledger.New()
	ledger.AddTray(models.Tray{ID: "T1", Contents: []models.TrayItem{{MaterialID: "M1", Quantity: 3}}})

	order, err := ledger.CreateOrder(context.Background(), models.LockRequest{TrayID: "T1", UserID: "U1", Timeout: time.Minute})
	require.NoError(t, err)

	reg := registry.NewRegistry(ledger, 10, nil)
	nudger := &recordingNudger{}
	return fixture{
		ledger:   ledger,
		registry: reg,
		nudger:   nudger,
		recorder: NewRecorder(ledger, reg, ledger, nudger, nil),
		order:    order,
	}
}

func (f fixture) quantity(t *testing.T, materialID string) int {
	t.Helper()
	trays, err := f.registry.QueryByTray(context.Background(), "T1", models.LocationAny)
	require.NoError(t, err)
	require.Len(t, trays, 1)
	return trays[0].Quantity(materialID)
}

func TestRecordInboundIncreasesQuantity(t *testing.T) {
	f := newFixture(t)
	before := f.quantity(t, "M1")

	tx, err := f.recorder.RecordInbound(context.Background(), f.order.ID, "M1", 5, day)
	require.NoError(t, err)
	assert.Equal(t, 5, tx.Delta)
	assert.Equal(t, models.TransactionInbound, tx.Type)

	assert.Equal(t, before+5, f.quantity(t, "M1"))
	assert.Equal(t, []string{"T1"}, f.nudger.nudged())
}

func TestRecordOutboundNegatesAndSnapshots(t *testing.T) {
	f := newFixture(t)

	tx, err := f.recorder.RecordOutbound(context.Background(), f.order.ID, "M1", 2, day)
	require.NoError(t, err)
	assert.Equal(t, -2, tx.Delta)
	assert.Equal(t, 1, f.quantity(t, "M1"))

	events := f.ledger.CameraEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "T1", events[0].TrayID)
	assert.Equal(t, "U1", events[0].UserID)
}

func TestDeltasSumToAvailableQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.recorder.RecordInbound(ctx, f.order.ID, "M2", 7, day)
	require.NoError(t, err)
	_, err = f.recorder.RecordOutbound(ctx, f.order.ID, "M2", 3, day)
	require.NoError(t, err)
	_, err = f.recorder.RecordInbound(ctx, f.order.ID, "M2", 1, day)
	require.NoError(t, err)

	sum := 0
	for _, tx := range f.ledger.Transactions() {
		if tx.MaterialID == "M2" {
			sum += tx.Delta
		}
	}
	assert.Equal(t, 5, sum)
	assert.Equal(t, sum, f.quantity(t, "M2"))
}

func TestRecordAgainstCompletedOrder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.CompleteOrder(context.Background(), f.order.ID))

	_, err := f.recorder.RecordInbound(context.Background(), f.order.ID, "M1", 1, day)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrOrderNotActive)
	assert.ErrorIs(t, err, models.ErrInvariant)
	assert.Empty(t, f.ledger.Transactions())
	assert.Empty(t, f.nudger.nudged())
}

// completingLedger completes the order between the status check and the
// append, as a concurrent release or the ledger's auto-complete would.
type completingLedger struct {
	*fakeledger.Ledger
}

func (c completingLedger) AppendTransaction(ctx context.Context, tx models.Transaction) error {
	c.Ledger.Expire(tx.OrderID)
	return c.Ledger.AppendTransaction(ctx, tx)
}

func TestRecordRaceWithCompletion(t *testing.T) {
	f := newFixture(t)
	recorder := NewRecorder(completingLedger{f.ledger}, f.registry, nil, f.nudger, nil)

	_, err := recorder.RecordInbound(context.Background(), f.order.ID, "M1", 1, day)
	assert.ErrorIs(t, err, models.ErrOrderNotActive)
	assert.Empty(t, f.nudger.nudged())
}

func TestRecordUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.recorder.RecordInbound(context.Background(), "999", "M1", 1, day)
	assert.ErrorIs(t, err, models.ErrOrderNotActive)
}

func TestRecordValidatesBeforeCalling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.recorder.RecordInbound(ctx, f.order.ID, "M1", -1, day)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	_, err = f.recorder.RecordInbound(ctx, f.order.ID, "", 1, day)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.recorder.RecordInbound(ctx, f.order.ID, "M1", 1, time.Time{})
	assert.ErrorIs(t, err, models.ErrInvalidDate)

	assert.Zero(t, f.ledger.Calls(fakeledger.OpGetOrder))
}

func TestRecordOutboundInsufficient(t *testing.T) {
	f := newFixture(t)

	_, err := f.recorder.RecordOutbound(context.Background(), f.order.ID, "M1", 4, day)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientQuantity)
	assert.Empty(t, f.ledger.Transactions())
	assert.Zero(t, f.ledger.Calls(fakeledger.OpPublishCameraEvent))
}

func TestRecordOutboundUsesLastKnownQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.QueryByTray(ctx, "T1", models.LocationAny)
	require.NoError(t, err)
	fetches := f.ledger.Calls(fakeledger.OpFetchTrays)

	_, err = f.recorder.RecordOutbound(ctx, f.order.ID, "M1", 3, day)
	require.NoError(t, err)
	assert.Equal(t, fetches, f.ledger.Calls(fakeledger.OpFetchTrays))
}

func TestRecordOutboundAfterMaterialQueryOfOtherMaterial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledger.AddTray(models.Tray{ID: "T1", Contents: []models.TrayItem{
		{MaterialID: "M1", Quantity: 3},
		{MaterialID: "M2", Quantity: 6},
	}})

	trays, err := f.registry.QueryByMaterial(ctx, "M1", models.LocationAny)
	require.NoError(t, err)
	require.Len(t, trays, 1)
	assert.False(t, trays[0].HasMaterial("M2"))

	tx, err := f.recorder.RecordOutbound(ctx, f.order.ID, "M2", 4, day)
	require.NoError(t, err)
	assert.Equal(t, -4, tx.Delta)
	assert.Equal(t, 2, f.quantity(t, "M2"))
}

func TestRecordAssignsUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.recorder.Record(context.Background(), Movement{
		OrderID:     f.order.ID,
		MaterialID:  "M1",
		Type:        models.TransactionInbound,
		Quantity:    2,
		Date:        day,
		UserID:      "U7",
		SapOrderRef: "SAP-1",
	})
	require.NoError(t, err)

	order, _ := f.ledger.Order(f.order.ID)
	assert.Equal(t, "U7", order.UserID)

	txs := f.ledger.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "SAP-1", txs[0].SapOrderRef)
}

func TestRecordTransportFailureLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	f.ledger.Fail(fakeledger.OpAppendTransaction, fakeledger.Unavailable(fakeledger.OpAppendTransaction))

	_, err := f.recorder.RecordInbound(context.Background(), f.order.ID, "M1", 1, day)
	assert.ErrorIs(t, err, models.ErrUnavailable)
	assert.Empty(t, f.nudger.nudged())
}
