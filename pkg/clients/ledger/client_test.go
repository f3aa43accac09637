package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/traystore/internal/config"
	"github.com/mamadbah2/traystore/internal/domain/models"
)

type recorded struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   map[string]any
}

func newTestClient(t *testing.T, status int, response string) (*APIClient, *[]recorded) {
	t.Helper()

	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recorded{method: r.Method, path: r.URL.Path, query: r.URL.Query(), header: r.Header.Clone()}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&call.body)
		}
		calls = append(calls, call)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(config.LedgerConfig{
		BaseURL:        srv.URL + "/",
		PubSubBaseURL:  srv.URL,
		Token:          "secret",
		Timeout:        2 * time.Second,
		CameraID:       "cam",
		CameraDeviceID: "dev",
	}, nil)
	return client, &calls
}

func TestFetchTraysGroupsItemRows(t *testing.T) {
	client, calls := newTestClient(t, http.StatusOK, `{"records":[
		{"tray_id":"T1","item_id":4711,"available_quantity":5,"tray_divider":4,"tray_lockcount":1,"in_station":false},
		{"tray_id":"T1","item_id":"M2","available_quantity":3,"tray_divider":4,"tray_lockcount":1,"in_station":false},
		{"tray_id":"T2","item_id":4711,"available_quantity":7,"tray_lockcount":0,"in_station":true}
	]}`)

	page, err := client.FetchTrays(context.Background(), models.MaterialKey{MaterialID: "4711", Location: models.LocationAny}.Filter(10))
	require.NoError(t, err)
	require.Len(t, page.Trays, 2)
	assert.False(t, page.TotalKnown)
	assert.Equal(t, 3, page.Rows)
	assert.False(t, page.Last(3))

	assert.Equal(t, "T1", page.Trays[0].ID)
	assert.Equal(t, models.LocationStorage, page.Trays[0].Location)
	assert.Equal(t, 5, page.Trays[0].Quantity("4711"))
	assert.Equal(t, 3, page.Trays[0].Quantity("M2"))
	assert.True(t, page.Trays[0].Available())

	assert.Equal(t, models.LocationStation, page.Trays[1].Location)
	assert.False(t, page.Trays[1].Available())

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "/nanostore/trays_for_order", call.path)
	assert.Equal(t, "4711", call.query.Get("item_id"))
	assert.Equal(t, "10", call.query.Get("num_records"))
	assert.Empty(t, call.query.Get("in_station"))
	assert.Equal(t, "Bearer secret", call.header.Get("Authorization"))
	assert.NotEmpty(t, call.header.Get(requestIDHeader))
}

func TestFetchTraysUnfilteredListing(t *testing.T) {
	client, calls := newTestClient(t, http.StatusOK, `{"records":[{"tray_id":"T3","tray_divider":4}],"count":3}`)

	divider, hasInventory := 4, false
	key := models.UnfilteredKey{Filters: models.UnfilteredFilters{Divider: &divider, HasInventory: &hasInventory}, Offset: 2}
	page, err := client.FetchTrays(context.Background(), key.Filter(2))
	require.NoError(t, err)

	assert.True(t, page.TotalKnown)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Trays, 1)
	assert.Empty(t, page.Trays[0].Contents)

	call := (*calls)[0]
	assert.Equal(t, "/nanostore/trays", call.path)
	assert.Equal(t, "4", call.query.Get("tray_divider"))
	assert.Equal(t, "false", call.query.Get("has_item"))
	assert.Equal(t, "2", call.query.Get("offset"))
}

func TestStatusCodesMapOntoTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, models.ErrNotFound},
		{http.StatusConflict, models.ErrInvariant},
		{http.StatusUnprocessableEntity, models.ErrInvariant},
		{http.StatusBadRequest, models.ErrValidation},
		{http.StatusBadGateway, models.ErrUnavailable},
		{http.StatusInternalServerError, models.ErrUnavailable},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			client, _ := newTestClient(t, tc.status, `{"message":"nope"}`)
			_, err := client.GetOrder(context.Background(), "1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	client := NewClient(config.LedgerConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)

	_, err := client.FindActiveOrders(context.Background(), "T1", "")
	assert.ErrorIs(t, err, models.ErrUnavailable)
}

func TestCreateOrder(t *testing.T) {
	client, calls := newTestClient(t, http.StatusOK, `{"records":[{"id":42,"tray_id":"T1","user_id":7,"status":"active","auto_complete_time":10,"updated_at":"2026-10-15T08:00:00Z"}]}`)

	order, err := client.CreateOrder(context.Background(), models.LockRequest{
		TrayID:    "T1",
		UserID:    "7",
		StationID: "S1",
		Timeout:   90 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "42", order.ID)
	assert.Equal(t, "7", order.UserID)
	assert.Equal(t, 10*time.Minute, order.AutoComplete)
	assert.True(t, order.Active())
	assert.Equal(t, time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC), order.UpdatedAt)

	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "2", call.query.Get("auto_complete_time"))
	assert.Equal(t, "S1", call.query.Get("station_id"))
}

func TestCreateOrderConflict(t *testing.T) {
	client, _ := newTestClient(t, http.StatusConflict, `{"detail":"tray already has an active order"}`)

	_, err := client.CreateOrder(context.Background(), models.LockRequest{TrayID: "T1", UserID: "1", Timeout: time.Minute})
	assert.True(t, models.IsConflict(err))
	assert.Contains(t, err.Error(), "already has an active order")
}

func TestGetOrderMissingFromResponse(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK, `{"records":[{"id":"9","tray_id":"T1","status":"completed"}]}`)

	_, err := client.GetOrder(context.Background(), "1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAppendTransactionParams(t *testing.T) {
	client, calls := newTestClient(t, http.StatusOK, `{}`)

	tx, err := models.NewTransaction("42", "M1", models.TransactionOutbound, 3, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	tx.SapOrderRef = "SAP-1"
	require.NoError(t, client.AppendTransaction(context.Background(), tx))

	call := (*calls)[0]
	assert.Equal(t, "/nanostore/transaction", call.path)
	assert.Equal(t, "-3", call.query.Get("transaction_item_quantity"))
	assert.Equal(t, "outbound", call.query.Get("transaction_type"))
	assert.Equal(t, "2026-10-15", call.query.Get("transaction_date"))
	assert.Equal(t, "SAP-1", call.query.Get("sap_order_reference"))
}

func TestAssignOrderUserSendsNumericIDs(t *testing.T) {
	client, calls := newTestClient(t, http.StatusOK, `{}`)

	require.NoError(t, client.AssignOrderUser(context.Background(), "42", "7"))
	require.NoError(t, client.AssignOrderUser(context.Background(), "42", "operator"))

	assert.Equal(t, float64(7), (*calls)[0].body["user_id"])
	assert.Equal(t, "operator", (*calls)[1].body["user_id"])
}

func TestReconcileReportDerivesStatus(t *testing.T) {
	client, calls := newTestClient(t, http.StatusOK, `{"records":[
		{"material":"M1","sap_quantity":100,"item_quantity":80,"quantity_difference":0,"reconcile_status":"matched"}
	]}`)

	records, err := client.ReconcileReport(context.Background(), models.ReconcileExternalSurplus, models.Page{Offset: 0, Limit: 50})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, -20, records[0].Difference)
	assert.Equal(t, models.ReconcileExternalSurplus, records[0].Status)
	assert.Equal(t, "sap_shortage", (*calls)[0].query.Get("reconcile_status"))
}

func TestExternalQuantity(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK, `{"records":[{"material":4711,"sap_quantity":12,"item_quantity":0}]}`)

	quantity, err := client.ExternalQuantity(context.Background(), "4711")
	require.NoError(t, err)
	assert.Equal(t, 12, quantity)

	_, err = client.ExternalQuantity(context.Background(), "9999")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPublishCameraEvent(t *testing.T) {
	client, calls := newTestClient(t, http.StatusOK, `{}`)

	require.NoError(t, client.PublishCameraEvent(context.Background(), models.CameraEvent{TrayID: "T1", UserID: "7"}))

	call := (*calls)[0]
	assert.Equal(t, "/pubsub/publish", call.path)
	assert.Equal(t, cameraTopic, call.query.Get("topic"))
	assert.Equal(t, "capture_snap", call.body["event"])
	assert.Equal(t, "T1 - 7", call.body["filename"])
	assert.Equal(t, "cam", call.body["camera_id"])
}

func TestStationsAndUnblock(t *testing.T) {
	client, calls := newTestClient(t, http.StatusOK, `{"records":[{"slot_id":"S1","slot_name":"Station 1","slot_status":"inactive","tags":"station"}]}`)

	stations, err := client.ListStations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "S1", stations[0].SlotID)

	require.NoError(t, client.UnblockSlot(context.Background(), "S1"))
	assert.Equal(t, "/robotmanager/unblock", (*calls)[1].path)
	assert.Equal(t, http.MethodPatch, (*calls)[1].method)
}

func TestActiveSapOrders(t *testing.T) {
	client, calls := newTestClient(t, http.StatusOK, `{"records":[
		{"order_ref":4500012,"total_items":3,"pending_items":2,"completed_items":1,"order_status":"active"}
	]}`)

	orders, err := client.ActiveSapOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "4500012", orders[0].OrderRef)
	assert.Equal(t, 2, orders[0].PendingItems)

	call := (*calls)[0]
	assert.Equal(t, "/nanostore/sap_orders/get_unique_sap_orders", call.path)
	assert.Equal(t, "active", call.query.Get("order_status"))
}

func TestSapOrdersInTray(t *testing.T) {
	client, calls := newTestClient(t, http.StatusOK, `{"records":[
		{"id":17,"order_ref":"4500012","material":4711,"item_description":"bolt","quantity":5,"quantity_consumed":2,"tray_id":"T1","inbound_date":"2026-10-01"}
	]}`)

	lines, err := client.SapOrdersInTray(context.Background(), "T1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "17", lines[0].ID)
	assert.Equal(t, "4711", lines[0].MaterialID)
	assert.Equal(t, 3, lines[0].Remaining())
	assert.Equal(t, "T1", (*calls)[0].query.Get("tray_id"))
}

func TestSapOrdersInTrayNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.StatusNotFound, `{"detail":"no sap order for this tray"}`)

	_, err := client.SapOrdersInTray(context.Background(), "T9")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
