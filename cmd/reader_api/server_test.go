package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotCoffee418/optical_meter_reader/pkg/engine"
	"github.com/NotCoffee418/optical_meter_reader/pkg/metrics"
	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

type fakeEngine struct {
	capture  types.RawCapture
	readErr  error
	reads    []types.MeterVariant
	diagnose map[engine.ChannelID]bool
}

func (f *fakeEngine) Read(variant types.MeterVariant) (types.RawCapture, error) {
	f.reads = append(f.reads, variant)
	if f.readErr != nil {
		return types.RawCapture{Variant: variant}, f.readErr
	}
	return f.capture, nil
}

func (f *fakeEngine) Diagnose(id engine.ChannelID) (bool, error) {
	return f.diagnose[id], nil
}

type fakePublisher struct {
	records []types.ParsedRecord
	err     error
}

func (p *fakePublisher) Publish(rec types.ParsedRecord) error {
	p.records = append(p.records, rec)
	return p.err
}

func threePhaseCapture(valid bool) types.RawCapture {
	data := make([]byte, 79)
	data[18], data[19], data[20] = 0x01, 0xE2, 0x40 // 123456
	data[27], data[28] = 0x08, 0xFE                 // 230.2 V
	return types.NewRawCapture(types.ThreePhaseOptical, valid, data, nil)
}

func newTestServer(t *testing.T, e *fakeEngine, p recordPublisher) (*server, *httptest.Server) {
	t.Helper()
	log, _ := test.NewNullLogger()
	s := newServer(e, p, nil, log)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	ts := httptest.NewServer(s.routes(nil))
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestReadParsed(t *testing.T) {
	e := &fakeEngine{capture: threePhaseCapture(true)}
	p := &fakePublisher{}
	_, ts := newTestServer(t, e, p)

	resp, body := get(t, ts.URL+"/read/3ph-optical")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reading, err := types.ReadingFromJsonBytes(body)
	require.NoError(t, err)
	assert.True(t, reading.Valid)
	assert.Equal(t, 79, reading.Length)
	require.NotNil(t, reading.Record)
	assert.Equal(t, "123456", reading.Record.Identity.ManufacturerID)
	assert.InDelta(t, 230.2, reading.Record.Electrical.VoltageR, 1e-9)
	assert.Equal(t, []types.MeterVariant{types.ThreePhaseOptical}, e.reads)
	assert.Len(t, p.records, 1)
}

func TestReadRawSkipsDecode(t *testing.T) {
	p := &fakePublisher{}
	_, ts := newTestServer(t, &fakeEngine{capture: threePhaseCapture(true)}, p)

	resp, body := get(t, ts.URL+"/read/3ph-optical?parse=false")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reading, err := types.ReadingFromJsonBytes(body)
	require.NoError(t, err)
	assert.Nil(t, reading.Record)
	raw, err := reading.RawBytes()
	require.NoError(t, err)
	assert.Len(t, raw, 79)
	assert.Empty(t, p.records)
}

func TestReadUnknownVariant(t *testing.T) {
	e := &fakeEngine{}
	_, ts := newTestServer(t, e, nil)

	resp, body := get(t, ts.URL+"/read/water-meter")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "unsupported meter variant")
	assert.Empty(t, e.reads)
}

func TestReadBadParseFlag(t *testing.T) {
	_, ts := newTestServer(t, &fakeEngine{}, nil)
	resp, _ := get(t, ts.URL+"/read/3ph-optical?parse=maybe")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReadFailureHidesWireDetail(t *testing.T) {
	_, ts := newTestServer(t, &fakeEngine{capture: threePhaseCapture(false)}, nil)

	resp, body := get(t, ts.URL+"/read/3ph-optical")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &out))
	assert.JSONEq(t, `"read failed"`, string(out["error"]))
}

func TestParseFailure(t *testing.T) {
	short := types.NewRawCapture(types.ThreePhaseOptical, true, make([]byte, 40), nil)
	_, ts := newTestServer(t, &fakeEngine{capture: short}, nil)

	resp, body := get(t, ts.URL+"/read/3ph-optical")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "parse failed")
}

func TestPublishFailureDoesNotFailRead(t *testing.T) {
	p := &fakePublisher{err: errors.New("connection refused")}
	_, ts := newTestServer(t, &fakeEngine{capture: threePhaseCapture(true)}, p)

	resp, _ := get(t, ts.URL+"/read/3ph-optical")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, p.records, 1)
}

func TestReadTextFormat(t *testing.T) {
	_, ts := newTestServer(t, &fakeEngine{capture: threePhaseCapture(true)}, nil)

	resp, body := get(t, ts.URL+"/read/3ph-optical?format=text")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	assert.Contains(t, string(body), "0000:")
	assert.Contains(t, string(body), "=== METER INFORMATION ===")
}

func TestLatest(t *testing.T) {
	_, ts := newTestServer(t, &fakeEngine{capture: threePhaseCapture(true)}, nil)

	resp, _ := get(t, ts.URL+"/latest")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, readBody := get(t, ts.URL+"/read/3ph-optical")
	first, err := types.ReadingFromJsonBytes(readBody)
	require.NoError(t, err)

	resp, body := get(t, ts.URL+"/latest")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	latest, err := types.ReadingFromJsonBytes(body)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)
}

func TestDiagnostics(t *testing.T) {
	e := &fakeEngine{diagnose: map[engine.ChannelID]bool{engine.ChannelOptical: true}}
	_, ts := newTestServer(t, e, nil)

	resp, body := get(t, ts.URL+"/diagnostics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"optical":"PASS","infrared":"FAIL"}`, string(body))
}

func TestVariants(t *testing.T) {
	_, ts := newTestServer(t, &fakeEngine{}, nil)

	_, body := get(t, ts.URL+"/variants")
	var names []string
	require.NoError(t, json.Unmarshal(body, &names))
	assert.Len(t, names, len(types.AllVariants()))
	assert.Contains(t, names, "3ph-optical-solar")
}

func TestMetricsEndpoint(t *testing.T) {
	log, _ := test.NewNullLogger()
	reg := metrics.NewRegistry()
	m := metrics.NewExchangeMetrics(reg)
	s := newServer(&fakeEngine{capture: threePhaseCapture(true)}, nil, m, log)
	ts := httptest.NewServer(s.routes(reg))
	defer ts.Close()

	get(t, ts.URL+"/read/3ph-optical")
	resp, body := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "decode")
}

func TestWebSocketBroadcast(t *testing.T) {
	s, ts := newTestServer(t, &fakeEngine{capture: threePhaseCapture(true)}, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.count() == 1 }, time.Second, 10*time.Millisecond)

	_, body := get(t, ts.URL+"/read/3ph-optical")
	sent, err := types.ReadingFromJsonBytes(body)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	got, err := types.ReadingFromJsonBytes(msg)
	require.NoError(t, err)
	assert.Equal(t, sent.ID, got.ID)
}

func TestRenderTextOmitsSummaryWithoutRecord(t *testing.T) {
	out := renderText(threePhaseCapture(true), nil, "read failed")
	assert.True(t, strings.HasPrefix(out, "read failed"))
	assert.NotContains(t, out, "===")
}

func TestStalledWebSocketClientIsDropped(t *testing.T) {
	s, ts := newTestServer(t, &fakeEngine{}, nil)
	s.hub.writeWait = 50 * time.Millisecond

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.count() == 1 }, time.Second, 10*time.Millisecond)

	// The client never reads, so the socket buffers fill and a write must time out.
	large := types.NewReading(types.NewRawCapture(types.ThreePhaseOptical, true, make([]byte, 1<<20), nil), nil, time.Now())
	start := time.Now()
	for i := 0; i < 200 && s.hub.count() > 0; i++ {
		s.hub.broadcast(large)
	}
	assert.Zero(t, s.hub.count())
	assert.Less(t, time.Since(start), 10*time.Second)
}
