package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotCoffee418/optical_meter_reader/pkg/aggregator"
	"github.com/NotCoffee418/optical_meter_reader/pkg/capturedb"
	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

var day1 = time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)

func newTestHistory(t *testing.T) (*historyServer, *capturedb.Store) {
	t.Helper()
	store, err := capturedb.Open(filepath.Join(t.TempDir(), "captures.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log, _ := test.NewNullLogger()
	h := newHistoryServer(store, log)
	h.now = func() time.Time { return day1.AddDate(0, 0, 1).Add(23 * time.Hour) }
	return h, store
}

func storeReading(t *testing.T, store *capturedb.Store, meterID string, kwh float64, at time.Time) *types.Reading {
	t.Helper()
	capture := types.NewRawCapture(types.ThreePhaseOptical, true, []byte{0x95, 0x95}, nil)
	rec := &types.ParsedRecord{
		Variant:  types.ThreePhaseOptical,
		Valid:    true,
		Identity: types.MeterIdentity{ManufacturerID: meterID},
		Energy:   types.EnergyReadings{KWh: kwh, KVAh: kwh},
	}
	r := types.NewReading(capture, rec, at)
	require.NoError(t, store.InsertReading(r))
	return r
}

func serve(h *historyServer, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHistoryReadingsNewestFirst(t *testing.T) {
	h, store := newTestHistory(t)
	storeReading(t, store, "m1", 10, day1.Add(time.Hour))
	newest := storeReading(t, store, "m1", 11, day1.Add(2*time.Hour))

	resp := serve(h, "/readings?limit=1")
	require.Equal(t, http.StatusOK, resp.Code)

	var readings []*types.Reading
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &readings))
	require.Len(t, readings, 1)
	assert.Equal(t, newest.ID, readings[0].ID)
}

func TestHistoryReadingsEmptyAndBadLimit(t *testing.T) {
	h, _ := newTestHistory(t)

	resp := serve(h, "/readings")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())

	resp = serve(h, "/readings?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHistoryReadingByID(t *testing.T) {
	h, store := newTestHistory(t)
	stored := storeReading(t, store, "m1", 10, day1.Add(time.Hour))

	resp := serve(h, "/readings/"+stored.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	got, err := types.ReadingFromJsonBytes(resp.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, stored.RawHex, got.RawHex)
	require.NotNil(t, got.Record)
	assert.Equal(t, 10.0, got.Record.Energy.KWh)

	resp = serve(h, "/readings/missing")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHistoryConsumption(t *testing.T) {
	h, store := newTestHistory(t)
	day2 := day1.AddDate(0, 0, 1)
	storeReading(t, store, "m1", 100, day1.Add(20*time.Hour))
	storeReading(t, store, "m1", 112.5, day2.Add(20*time.Hour))

	log, _ := test.NewNullLogger()
	require.NoError(t, aggregator.AggregateAndCleanup(store, h.now(), 3, log))

	resp := serve(h, "/consumption/m1")
	require.Equal(t, http.StatusOK, resp.Code)
	var c aggregator.DailyConsumption
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &c))
	assert.Equal(t, 12.5, c.KWh)
	assert.Equal(t, day1.Unix(), c.FromDay)
	assert.True(t, c.Complete)

	resp = serve(h, "/consumption/m1?from=2025-03-09&to=2025-03-10")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = serve(h, "/consumption/m2")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = serve(h, "/consumption/m1?from=2025-03-11&to=2025-03-10")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = serve(h, "/consumption/m1?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
