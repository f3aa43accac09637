package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/traystore/internal/domain/models"
	"github.com/mamadbah2/traystore/internal/testutil/fakeledger"
)

func seededLedger() *fakeledger.Ledger {
	ledger := fakeledger.New()
	ledger.AddTray(models.Tray{
		ID:       "T1",
		Divider:  4,
		Location: models.LocationStorage,
		Contents: []models.TrayItem{{MaterialID: "M1", Quantity: 10}, {MaterialID: "M2", Quantity: 3}},
	})
	ledger.AddTray(models.Tray{
		ID:       "T2",
		Divider:  2,
		Location: models.LocationStation,
		Contents: []models.TrayItem{{MaterialID: "M1", Quantity: 5}},
	})
	ledger.AddTray(models.Tray{ID: "T3", Divider: 4, Location: models.LocationStorage})
	return ledger
}

func TestQueryByTray(t *testing.T) {
	reg := NewRegistry(seededLedger(), 10, nil)

	trays, err := reg.QueryByTray(context.Background(), "T1", models.LocationStorage)
	require.NoError(t, err)
	require.Len(t, trays, 1)
	assert.Equal(t, 10, trays[0].Quantity("M1"))

	trays, err = reg.QueryByTray(context.Background(), "T1", models.LocationStation)
	require.NoError(t, err)
	assert.Empty(t, trays)
}

func TestQueryByTrayNotFoundIsEmpty(t *testing.T) {
	reg := NewRegistry(seededLedger(), 10, nil)

	trays, err := reg.QueryByTray(context.Background(), "missing", models.LocationAny)
	require.NoError(t, err)
	assert.NotNil(t, trays)
	assert.Empty(t, trays)
}

func TestQueryByTrayRejectsEmptyID(t *testing.T) {
	ledger := seededLedger()
	reg := NewRegistry(ledger, 10, nil)

	_, err := reg.QueryByTray(context.Background(), "", models.LocationAny)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Zero(t, ledger.Calls(fakeledger.OpFetchTrays))
}

func TestQueryByMaterial(t *testing.T) {
	reg := NewRegistry(seededLedger(), 10, nil)

	trays, err := reg.QueryByMaterial(context.Background(), "M1", models.LocationAny)
	require.NoError(t, err)
	require.Len(t, trays, 2)
	assert.Equal(t, "T1", trays[0].ID)
	assert.Equal(t, "T2", trays[1].ID)

	trays, err = reg.QueryByMaterial(context.Background(), "M1", models.LocationStation)
	require.NoError(t, err)
	require.Len(t, trays, 1)
	assert.Equal(t, "T2", trays[0].ID)
}

func TestQueryUnfilteredPagesAndCounts(t *testing.T) {
	reg := NewRegistry(seededLedger(), 2, nil)

	trays, total, err := reg.QueryUnfiltered(context.Background(), models.UnfilteredFilters{}, 0)
	require.NoError(t, err)
	assert.Len(t, trays, 2)
	assert.Equal(t, 3, total)

	trays, total, err = reg.QueryUnfiltered(context.Background(), models.UnfilteredFilters{}, 2)
	require.NoError(t, err)
	assert.Len(t, trays, 1)
	assert.Equal(t, 3, total)

	divider := 4
	empty := false
	trays, total, err = reg.QueryUnfiltered(context.Background(), models.UnfilteredFilters{Divider: &divider, HasInventory: &empty}, 0)
	require.NoError(t, err)
	require.Len(t, trays, 1)
	assert.Equal(t, "T3", trays[0].ID)
	assert.Equal(t, 1, total)
}

func TestTransportFailureClearsProjection(t *testing.T) {
	ledger := seededLedger()
	reg := NewRegistry(ledger, 10, nil)
	key := models.TrayKey{TrayID: "T1", Location: models.LocationAny}

	_, err := reg.Refresh(context.Background(), key)
	require.NoError(t, err)
	projection, ok := reg.Snapshot(key)
	require.True(t, ok)
	require.Len(t, projection.Page.Trays, 1)

	ledger.Fail(fakeledger.OpFetchTrays, fakeledger.Unavailable(fakeledger.OpFetchTrays))
	_, err = reg.Refresh(context.Background(), key)
	assert.ErrorIs(t, err, models.ErrUnavailable)

	projection, ok = reg.Snapshot(key)
	require.True(t, ok)
	assert.Empty(t, projection.Page.Trays)
	assert.ErrorIs(t, projection.Err, models.ErrUnavailable)
}

func TestApplyReplacesInFull(t *testing.T) {
	reg := NewRegistry(seededLedger(), 10, nil)
	key := models.MaterialKey{MaterialID: "M1"}

	first := reg.Begin(key)
	require.True(t, reg.Apply(first, models.TrayPage{Trays: []models.Tray{{ID: "T1"}, {ID: "T2"}}}, nil))

	second := reg.Begin(key)
	require.True(t, reg.Apply(second, models.TrayPage{Trays: []models.Tray{{ID: "T2"}}}, nil))

	projection, ok := reg.Snapshot(key)
	require.True(t, ok)
	require.Len(t, projection.Page.Trays, 1)
	assert.Equal(t, "T2", projection.Page.Trays[0].ID)
}

func TestApplyDiscardsOutOfOrderResponse(t *testing.T) {
	reg := NewRegistry(seededLedger(), 10, nil)
	key := models.TrayKey{TrayID: "T1"}

	older := reg.Begin(key)
	newer := reg.Begin(key)

	require.True(t, reg.Apply(newer, models.TrayPage{Trays: []models.Tray{{ID: "T1", LockCount: 0}}}, nil))
	assert.False(t, reg.Apply(older, models.TrayPage{Trays: []models.Tray{{ID: "T1", LockCount: 1}}}, nil))

	projection, _ := reg.Snapshot(key)
	require.Len(t, projection.Page.Trays, 1)
	assert.Equal(t, 0, projection.Page.Trays[0].LockCount)
}

// A result that lands after its key was invalidated (query switched away)
// must never be applied.
func TestApplyDiscardsAfterInvalidate(t *testing.T) {
	reg := NewRegistry(seededLedger(), 10, nil)
	key := models.TrayKey{TrayID: "T1"}

	ticket := reg.Begin(key)
	reg.Invalidate(key)

	assert.False(t, reg.Apply(ticket, models.TrayPage{Trays: []models.Tray{{ID: "T1"}}}, nil))
	_, ok := reg.Snapshot(key)
	assert.False(t, ok)

	reg.Forget(key)
	assert.False(t, reg.Apply(ticket, models.TrayPage{Trays: []models.Tray{{ID: "T1"}}}, nil))
	assert.Greater(t, reg.Generation(key), ticket.Generation)
}

func TestLastKnownQuantity(t *testing.T) {
	reg := NewRegistry(seededLedger(), 10, nil)
	ctx := context.Background()

	_, ok := reg.LastKnownQuantity("T1", "M1")
	assert.False(t, ok)

	_, err := reg.QueryByTray(ctx, "T1", models.LocationAny)
	require.NoError(t, err)

	quantity, ok := reg.LastKnownQuantity("T1", "M2")
	require.True(t, ok)
	assert.Equal(t, 3, quantity)

	_, ok = reg.LastKnownQuantity("T1", "M9")
	assert.False(t, ok)
}

func TestLastKnownQuantityIgnoresPartialProjections(t *testing.T) {
	ledger := seededLedger()
	ctx := context.Background()

	reg := NewRegistry(ledger, 10, nil)
	_, err := reg.QueryByMaterial(ctx, "M1", models.LocationAny)
	require.NoError(t, err)
	_, ok := reg.LastKnownQuantity("T1", "M1")
	assert.False(t, ok)
	_, ok = reg.LastKnownQuantity("T1", "M2")
	assert.False(t, ok)

	// One row per page: T1's M2 line is cut off.
	small := NewRegistry(ledger, 1, nil)
	trays, err := small.QueryByTray(ctx, "T1", models.LocationAny)
	require.NoError(t, err)
	require.Len(t, trays, 1)
	assert.False(t, trays[0].HasMaterial("M2"))

	projection, ok := small.Snapshot(models.TrayKey{TrayID: "T1"})
	require.True(t, ok)
	assert.False(t, projection.Complete)
	_, ok = small.LastKnownQuantity("T1", "M1")
	assert.False(t, ok)
}
