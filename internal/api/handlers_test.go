package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windrig/internal/models"
	"windrig/internal/rig"
	"windrig/internal/serial"
)

type fakeRig struct {
	events    []models.RigEvent
	boost     models.BoostResponse
	boostErr  error
	lastLimit int
	source    string
}

func (f *fakeRig) GetStatus() models.RigStatus {
	return models.RigStatus{Status: "running", SessionID: "abc", Ticks: 10, ParseErrors: 2}
}

func (f *fakeRig) GetSnapshot() models.RigSnapshot {
	return models.RigSnapshot{Tick: 10, WindName: "NE", Altitude: 140}
}

func (f *fakeRig) GetEvents(limit int) []models.RigEvent {
	f.lastLimit = limit
	return f.events
}

func (f *fakeRig) ChannelStats() []serial.ChannelStats {
	return []serial.ChannelStats{{Channel: 5, Name: "KASA", Open: true, Received: 3}}
}

func (f *fakeRig) TriggerBoost(ctx context.Context, source string) (models.BoostResponse, error) {
	f.source = source
	return f.boost, f.boostErr
}

type fakeStore struct {
	connected bool
	history   []models.HistoryPoint
}

func (f *fakeStore) IsConnected() bool { return f.connected }
func (f *fakeStore) GetAltitudeHistory() ([]models.HistoryPoint, error) {
	return f.history, nil
}

func serve(t *testing.T, r *Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func newTestRouter(fr *fakeRig, store HistoryStore) *Router {
	r := NewRouter(fr, store, "api/")
	r.Setup()
	return r
}

func TestStatusAndState(t *testing.T) {
	r := newTestRouter(&fakeRig{}, nil)

	rec := serve(t, r, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "running", status["status"])
	assert.Equal(t, "abc", status["sessionId"])
	assert.EqualValues(t, 2, status["parseErrors"])

	rec = serve(t, r, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.RigSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "NE", snap.WindName)

	rec = serve(t, r, http.MethodPost, "/api/state", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEventsLimit(t *testing.T) {
	fr := &fakeRig{}
	r := newTestRouter(fr, nil)

	rec := serve(t, r, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
	assert.Equal(t, 50, fr.lastLimit)

	rec = serve(t, r, http.MethodGet, "/api/events?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, fr.lastLimit)

	rec = serve(t, r, http.MethodGet, "/api/events?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(t, r, http.MethodGet, "/api/events?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChannels(t *testing.T) {
	r := newTestRouter(&fakeRig{}, nil)

	rec := serve(t, r, http.MethodGet, "/api/channels", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats []serial.ChannelStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, "KASA", stats[0].Name)
}

func TestBoost(t *testing.T) {
	fr := &fakeRig{boost: models.BoostResponse{Accepted: true}}
	r := newTestRouter(fr, nil)

	rec := serve(t, r, http.MethodPost, "/api/boost", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "api", fr.source)

	rec = serve(t, r, http.MethodPost, "/api/boost", `{"source":"painel"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "painel", fr.source)

	rec = serve(t, r, http.MethodPost, "/api/boost", `{bad`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, r, http.MethodGet, "/api/boost", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBoostRejectedAndStopped(t *testing.T) {
	fr := &fakeRig{boost: models.BoostResponse{Accepted: false, Reason: "boost em andamento"}}
	r := newTestRouter(fr, nil)

	rec := serve(t, r, http.MethodPost, "/api/boost", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	fr.boostErr = rig.ErrNotRunning
	rec = serve(t, r, http.MethodPost, "/api/boost", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	fr.boostErr = errors.New("timeout")
	rec = serve(t, r, http.MethodPost, "/api/boost", "")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestAltitudeHistory(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeRig{}, nil), http.MethodGet, "/api/history/altitude", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(t, newTestRouter(&fakeRig{}, &fakeStore{connected: false}), http.MethodGet, "/api/history/altitude", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	store := &fakeStore{connected: true, history: []models.HistoryPoint{{Value: 150, Tick: 1}, {Value: 149, Tick: 2}}}
	rec = serve(t, newTestRouter(&fakeRig{}, store), http.MethodGet, "/api/history/altitude", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.HistoryPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 2)
}

func TestMiddleware(t *testing.T) {
	r := newTestRouter(&fakeRig{}, nil)

	rec := serve(t, r, http.MethodOptions, "/api/status", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	panicky := Chain(RecoveryMiddleware)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("falha")
	}))
	rec = httptest.NewRecorder()
	panicky.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
