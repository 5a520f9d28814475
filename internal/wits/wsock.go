package wits

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wellsteer/wellsteer/internal/config"
)

// writeTimeout is the deadline for a single write to the socket.
const writeTimeout = 10 * time.Second

// Control frame types exchanged with a streaming-socket telemetry gateway.
const (
	framePing       = "ping"
	framePong       = "pong"
	frameDisconnect = "disconnect"
	frameConnect    = "connect"
	frameCommand    = "command"
)

// controlFrame is the JSON envelope for heartbeat and session control.
type controlFrame struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp,omitempty"`
	Host      string         `json:"host,omitempty"`
	Port      int            `json:"port,omitempty"`
	Command   string         `json:"command,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

// decodeControlFrame returns the frame and true when msg is a JSON control
// frame with a recognized type. WITS payloads never look like JSON objects,
// so misclassification is not a concern in practice.
func decodeControlFrame(msg []byte) (controlFrame, bool) {
	var f controlFrame
	if len(msg) == 0 || msg[0] != '{' {
		return f, false
	}
	if err := json.Unmarshal(msg, &f); err != nil {
		return f, false
	}
	switch f.Type {
	case framePing, framePong, frameDisconnect:
		return f, true
	default:
		return f, false
	}
}

// wsTransport carries WITS messages over a streaming websocket, optionally
// bridged by a gateway to a downstream TCP target (proxy mode).
type wsTransport struct {
	endpoint  string
	proxyMode bool
	tcpHost   string
	tcpPort   int

	// The websocket package allows at most one concurrent writer, but the
	// heartbeat timer, the read loop's ping replies, and command sends all
	// write from their own goroutines. writeMu serializes them.
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func newWSTransport(cfg config.ConnectionConfig) *wsTransport {
	u := url.URL{
		Scheme: "ws",
		Host:   fmt.Sprintf("%s:%d", cfg.IPAddress, cfg.Port),
		Path:   "/wits",
	}
	return &wsTransport{
		endpoint:  u.String(),
		proxyMode: cfg.ProxyMode,
		tcpHost:   cfg.TCPHost,
		tcpPort:   cfg.TCPPort,
	}
}

func (t *wsTransport) Open(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, t.endpoint, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("wits: dial %s: status %d: %w", t.endpoint, resp.StatusCode, err)
		}
		return fmt.Errorf("wits: dial %s: %w", t.endpoint, err)
	}
	t.conn = conn

	// In proxy mode the gateway opens the downstream TCP leg on request.
	if t.proxyMode {
		hello := controlFrame{Type: frameConnect, Host: t.tcpHost, Port: t.tcpPort}
		if err := t.writeJSON(hello); err != nil {
			conn.Close()
			return fmt.Errorf("wits: proxy hello: %w", err)
		}
	}
	return nil
}

// Read returns the next text message. Binary frames are opaque to this core:
// their size is logged and the frame skipped.
func (t *wsTransport) Read() ([]byte, error) {
	for {
		mt, msg, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.BinaryMessage {
			slog.Debug("wits: ignoring binary frame", "bytes", len(msg))
			continue
		}
		return msg, nil
	}
}

func (t *wsTransport) Write(msg []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, msg)
}

func (t *wsTransport) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.Write(data)
}

func (t *wsTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
