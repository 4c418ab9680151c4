package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windrig/internal/models"
)

type fakeController struct {
	boostErr error
	sources  chan string
}

func (f *fakeController) GetStatus() models.RigStatus {
	return models.RigStatus{Status: "running", SessionID: "s-1"}
}

func (f *fakeController) GetSnapshot() models.RigSnapshot {
	return models.RigSnapshot{Tick: 42, WindName: "N", Altitude: 150}
}

func (f *fakeController) TriggerBoost(ctx context.Context, source string) (models.BoostResponse, error) {
	if f.sources != nil {
		f.sources <- source
	}
	if f.boostErr != nil {
		return models.BoostResponse{}, f.boostErr
	}
	return models.BoostResponse{Accepted: true}, nil
}

type envelope struct {
	Type   string                 `json:"type"`
	Error  string                 `json:"error"`
	State  models.RigSnapshot     `json:"state"`
	Status models.RigStatus       `json:"status"`
	Event  models.RigEvent        `json:"event"`
	Result models.BoostResponse   `json:"result"`
	Data   map[string]interface{} `json:"data"`
}

func startHub(t *testing.T, controller Controller) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(controller)
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	server := httptest.NewServer(NewHandler(hub))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return hub, conn
}

// readUntil lê mensagens até encontrar o tipo pedido
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var env envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == msgType {
			return env
		}
	}
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(models.CommandMessage{Type: cmd}))
}

func TestInitialMessages(t *testing.T) {
	_, conn := startHub(t, &fakeController{})

	welcome := readUntil(t, conn, TypeWelcome)
	assert.NotEmpty(t, welcome.Data["clientId"])

	status := readUntil(t, conn, TypeStatus)
	assert.Equal(t, "running", status.Status.Status)

	state := readUntil(t, conn, TypeState)
	assert.Equal(t, uint64(42), state.State.Tick)
}

func TestBoostCommand(t *testing.T) {
	ctrl := &fakeController{sources: make(chan string, 1)}
	_, conn := startHub(t, ctrl)
	readUntil(t, conn, TypeWelcome)

	sendCommand(t, conn, "boost")
	resp := readUntil(t, conn, TypeBoost)
	assert.True(t, resp.Result.Accepted)
	assert.True(t, strings.HasPrefix(<-ctrl.sources, "websocket:"))
}

func TestBoostCommandError(t *testing.T) {
	_, conn := startHub(t, &fakeController{boostErr: errors.New("loop de controle parado")})
	readUntil(t, conn, TypeWelcome)

	sendCommand(t, conn, "boost")
	resp := readUntil(t, conn, TypeError)
	assert.Equal(t, "loop de controle parado", resp.Error)
}

func TestPingAndInvalidMessages(t *testing.T) {
	_, conn := startHub(t, &fakeController{})
	readUntil(t, conn, TypeWelcome)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","params":{"time":1234}}`)))
	pong := readUntil(t, conn, TypePong)
	assert.Equal(t, TypePong, pong.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"bogus":true}`)))
	bad := readUntil(t, conn, TypeError)
	assert.Equal(t, "invalid_format", bad.Data["code"])

	sendCommand(t, conn, "launch")
	unknown := readUntil(t, conn, TypeError)
	assert.Equal(t, "unknown_command", unknown.Data["code"])
}

func TestBroadcastReachesClients(t *testing.T) {
	hub, conn := startHub(t, &fakeController{})
	readUntil(t, conn, TypeWelcome)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.BroadcastEvent(models.RigEvent{Type: models.EventWindChanged, Tick: 7})
	event := readUntil(t, conn, TypeEvent)
	assert.Equal(t, models.EventWindChanged, event.Event.Type)

	hub.BroadcastState(models.RigSnapshot{Tick: 100, WindName: "E"})
	state := readUntil(t, conn, TypeState)
	assert.Equal(t, "E", state.State.WindName)
}

func TestBroadcastStateSkipsRepeatedTick(t *testing.T) {
	hub := NewHub(nil)
	hub.clients[&Client{id: "x", send: make(chan []byte, 4)}] = true

	hub.BroadcastState(models.RigSnapshot{Tick: 5})
	hub.BroadcastState(models.RigSnapshot{Tick: 5})
	hub.BroadcastState(models.RigSnapshot{Tick: 6})

	assert.Len(t, hub.broadcast, 2)
}

func TestBroadcastDoesNotBlockWhenQueueFull(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < cap(hub.broadcast)+10; i++ {
		hub.BroadcastEvent(models.RigEvent{Type: models.EventBoost})
	}
	assert.Equal(t, int64(10), hub.DroppedMessages())
}

func TestShutdownReleasesClientReaders(t *testing.T) {
	hub, conn := startHub(t, &fakeController{})
	readUntil(t, conn, TypeWelcome)

	var client *Client
	hub.mu.RLock()
	for c := range hub.clients {
		client = c
	}
	hub.mu.RUnlock()
	require.NotNil(t, client)

	hub.Shutdown()

	select {
	case <-client.done:
	case <-time.After(2 * time.Second):
		t.Fatal("readPump continuou bloqueado após o Shutdown")
	}
}

func TestCommandAfterShutdownDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	hub.Shutdown()
	for len(hub.commands) < cap(hub.commands) {
		hub.commands <- models.ClientCommand{Command: "get_status"}
	}

	client := &Client{hub: hub, id: "x", send: make(chan []byte, 4)}
	done := make(chan struct{})
	go func() {
		client.processIncomingMessage([]byte(`{"type":"get_status"}`))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("comando bloqueou com o hub encerrado")
	}
}
