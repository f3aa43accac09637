package models

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTransitions(t *testing.T) {
	active := Order{ID: "1", Status: OrderStatusActive}

	completed, err := active.Transition(OrderStatusCompleted)
	require.NoError(t, err)
	assert.False(t, completed.Active())

	again, err := completed.Transition(OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, completed, again)

	_, err = completed.Transition(OrderStatusActive)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestOrderNeedsRecheck(t *testing.T) {
	updated := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	order := Order{Status: OrderStatusActive, AutoComplete: 10 * time.Minute, UpdatedAt: updated}

	assert.False(t, order.NeedsRecheck(updated.Add(9*time.Minute)))
	assert.True(t, order.NeedsRecheck(updated.Add(10*time.Minute)))

	order.Status = OrderStatusCompleted
	assert.False(t, order.NeedsRecheck(updated.Add(time.Hour)))
}

func TestLockRequestValidate(t *testing.T) {
	assert.ErrorIs(t, LockRequest{UserID: "1", Timeout: time.Minute}.Validate(), ErrInvalidID)
	assert.ErrorIs(t, LockRequest{TrayID: "T1", Timeout: time.Minute}.Validate(), ErrInvalidID)
	assert.ErrorIs(t, LockRequest{TrayID: "T1", UserID: "1"}.Validate(), ErrInvalidTimeout)
	assert.NoError(t, LockRequest{TrayID: "T1", UserID: "1", Timeout: time.Minute}.Validate())
}

func TestNewTransactionSignsDelta(t *testing.T) {
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	in, err := NewTransaction("1", "M1", TransactionInbound, 5, day)
	require.NoError(t, err)
	assert.Equal(t, 5, in.Delta)

	out, err := NewTransaction("1", "M1", TransactionOutbound, 5, day)
	require.NoError(t, err)
	assert.Equal(t, -5, out.Delta)
	assert.Equal(t, 5, out.Quantity())

	zero, err := NewTransaction("1", "M1", TransactionOutbound, 0, day)
	require.NoError(t, err)
	assert.Zero(t, zero.Delta)

	_, err = NewTransaction("1", "M1", TransactionInbound, -1, day)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = NewTransaction("", "M1", TransactionInbound, 1, day)
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = NewTransaction("1", "M1", TransactionInbound, 1, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidDate)

	mismatched := Transaction{OrderID: "1", MaterialID: "M1", Delta: 3, Date: day, Type: TransactionOutbound}
	assert.ErrorIs(t, mismatched.Validate(), ErrValidation)
}

func TestParseDate(t *testing.T) {
	day, err := ParseDate("2026-10-15T13:45:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseDate("15/10/2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestClassifyDifference(t *testing.T) {
	record := NewReconciliationRecord("M1", 100, 80)
	assert.Equal(t, -20, record.Difference)
	assert.Equal(t, ReconcileExternalSurplus, record.Status)

	assert.Equal(t, ReconcileInternalSurplus, NewReconciliationRecord("M1", 3, 5).Status)
	assert.Equal(t, ReconcileMatched, NewReconciliationRecord("M1", 7, 7).Status)

	_, err := ParseReconcileStatus("lost")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSummaryAdd(t *testing.T) {
	var summary ReconcileSummary
	summary.Add(NewReconciliationRecord("M1", 100, 80))
	summary.Add(NewReconciliationRecord("M2", 1, 4))
	summary.Add(NewReconciliationRecord("M3", 2, 2))

	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 1, summary.InternalSurplus)
	assert.Equal(t, 1, summary.ExternalSurplus)
	assert.Equal(t, -17, summary.NetDifference)
}

func TestLocationText(t *testing.T) {
	for _, loc := range []Location{LocationAny, LocationStorage, LocationStation} {
		parsed, err := ParseLocation(loc.String())
		require.NoError(t, err)
		assert.Equal(t, loc, parsed)
	}

	var spec QuerySpec
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"material","id":"M1","location":"station"}`), &spec))
	assert.Equal(t, LocationStation, spec.Location)

	err := json.Unmarshal([]byte(`{"location":"roof"}`), &spec)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestQuerySpecKey(t *testing.T) {
	key, err := QuerySpec{Kind: QueryKindTray, ID: "T1"}.Key()
	require.NoError(t, err)
	assert.Equal(t, "tray:T1@any", key.String())

	key, err = QuerySpec{Kind: QueryKindMaterial, ID: "M1", Location: LocationStorage}.Key()
	require.NoError(t, err)
	assert.Equal(t, TrayFilter{MaterialID: "M1", Location: LocationStorage, Limit: 10}, key.Filter(10))

	divider, has := 4, false
	key, err = QuerySpec{Divider: &divider, HasInventory: &has, Offset: 20}.Key()
	require.NoError(t, err)
	assert.Equal(t, QueryKindUnfiltered, key.Kind())
	assert.Equal(t, "unfiltered:divider=4,inventory=false,offset=20", key.String())

	_, err = QuerySpec{Kind: QueryKindTray}.Key()
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = QuerySpec{Offset: -1}.Key()
	assert.ErrorIs(t, err, ErrValidation)
	_, err = QuerySpec{Kind: "zone"}.Key()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTrayQuantities(t *testing.T) {
	tray := Tray{ID: "T1", LockCount: 1, Contents: []TrayItem{
		{MaterialID: "M1", Quantity: 4},
		{MaterialID: "M1", Quantity: 2},
		{MaterialID: "M2", Quantity: 9},
	}}

	assert.True(t, tray.Available())
	assert.Equal(t, 6, tray.Quantity("M1"))
	assert.True(t, tray.HasMaterial("M2"))
	assert.False(t, tray.HasMaterial("M3"))
	assert.Equal(t, 12, TrayPage{Trays: []Tray{tray, tray}}.SumQuantity("M1"))
}

func TestLedgerErrorTaxonomy(t *testing.T) {
	cases := map[int]error{
		http.StatusNotFound:            ErrNotFound,
		http.StatusConflict:            ErrInvariant,
		http.StatusUnprocessableEntity: ErrInvariant,
		http.StatusBadRequest:          ErrValidation,
		http.StatusBadGateway:          ErrUnavailable,
	}
	for status, want := range cases {
		err := error(&LedgerError{Op: "op", StatusCode: status, Message: "m"})
		assert.ErrorIs(t, err, want, "status %d", status)
	}

	cause := errors.New("dial tcp: refused")
	err := error(&LedgerError{Op: "op", Err: cause})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)

	assert.True(t, IsConflict(&LedgerError{StatusCode: http.StatusConflict}))
	assert.False(t, IsConflict(&LedgerError{StatusCode: http.StatusNotFound}))
}
