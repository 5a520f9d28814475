package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wellsteer/wellsteer/internal/config"
	"github.com/wellsteer/wellsteer/internal/override"
	"github.com/wellsteer/wellsteer/internal/steering"
	"github.com/wellsteer/wellsteer/internal/survey"
	"github.com/wellsteer/wellsteer/internal/wits"
	wsHub "github.com/wellsteer/wellsteer/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

func newCoordinator(t *testing.T) (*steering.Coordinator, *wits.Link, *override.Store) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Connection.IPAddress = "127.0.0.1"
	cfg.Connection.Port = 12345

	link := wits.NewLink(cfg.Connection, wits.NewParser(0, nil))
	agg := survey.NewAggregator(cfg.Drilling.MinDistance, cfg.Drilling.MovingAverageCount,
		cfg.Drilling.Fallbacks.BuildRate, cfg.Drilling.Fallbacks.TurnRate)
	ovr := override.NewStore(nil)
	coord := steering.New(link, agg, ovr, cfg)
	coord.Recompute()
	return coord, link, ovr
}

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
// Returns the ws:// URL, the hub, and a cancel function.
func startHub(t *testing.T, coord *steering.Coordinator, link *wits.Link) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(coord, link, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads one text message from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return msg
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateSnapshot(t *testing.T) {
	coord, link, _ := newCoordinator(t)
	wsURL, _, _ := startHub(t, coord, link)

	conn := dial(t, wsURL)
	msg := readMessage(t, conn)

	var m map[string]interface{}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["event"] != "snapshot" {
		t.Errorf("event: got %v, want snapshot", m["event"])
	}
	if m["state"] != "disconnected" {
		t.Errorf("state: got %v, want disconnected", m["state"])
	}
	data, ok := m["data"].(map[string]interface{})
	if !ok {
		t.Fatal("data: missing or wrong type")
	}
	if data["motor_yield"] == nil {
		t.Error("motor_yield: missing from snapshot data")
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	coord, link, ovr := newCoordinator(t)
	wsURL, _, _ := startHub(t, coord, link)

	conn := dial(t, wsURL)
	readMessage(t, conn) // consume immediate snapshot

	// Pin a field after connect; the next tick should carry it.
	if _, err := ovr.Set(override.FieldMotorYield, 7.5); err != nil {
		t.Fatalf("Set: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("tick broadcast never carried the override")
		}
		msg := readMessage(t, conn)
		var m map[string]interface{}
		json.Unmarshal(msg, &m) //nolint:errcheck
		data := m["data"].(map[string]interface{})
		if data["motor_yield"] == 7.5 {
			return
		}
	}
}

func TestHub_CountClients(t *testing.T) {
	coord, link, _ := newCoordinator(t)
	wsURL, hub, _ := startHub(t, coord, link)

	for i := 0; i < 3; i++ {
		conn := dial(t, wsURL)
		readMessage(t, conn) // consume initial message
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestHub_CountClients_DecreasesOnDisconnect(t *testing.T) {
	coord, link, _ := newCoordinator(t)
	wsURL, hub, _ := startHub(t, coord, link)

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	if n := hub.Count(); n != 1 {
		t.Errorf("Count before disconnect: got %d, want 1", n)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_AllClientsReceiveBroadcast(t *testing.T) {
	coord, link, _ := newCoordinator(t)
	wsURL, _, _ := startHub(t, coord, link)

	conns := make([]*websocket.Conn, 3)
	for i := 0; i < 3; i++ {
		conns[i] = dial(t, wsURL)
	}

	for i, conn := range conns {
		msg := readMessage(t, conn)
		var m map[string]interface{}
		if err := json.Unmarshal(msg, &m); err != nil {
			t.Errorf("client %d: unmarshal: %v", i, err)
			continue
		}
		if m["event"] != "snapshot" {
			t.Errorf("client %d: event: got %v, want snapshot", i, m["event"])
		}
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	coord, link, _ := newCoordinator(t)
	wsURL, hub, cancel := startHub(t, coord, link)

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel() // signal shutdown

	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	coord, link, _ := newCoordinator(t)
	hub := wsHub.New(coord, link, testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
