package wits

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"

	"github.com/wellsteer/wellsteer/internal/config"
)

// Transport is a bidirectional byte-message connection to the telemetry
// source. Implementations deliver whole messages, one per Read call, in
// arrival order.
type Transport interface {
	// Open dials the remote end. The context bounds the dial; Open must
	// return promptly once it is cancelled.
	Open(ctx context.Context) error

	// Read blocks until the next message arrives or the transport fails.
	Read() ([]byte, error)

	// Write sends one message. Fire-and-forget: no acknowledgement.
	Write([]byte) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// newTransport builds the Transport selected by cfg.Protocol.
func newTransport(cfg config.ConnectionConfig) (Transport, error) {
	switch cfg.Protocol {
	case "tcp", "udp":
		return &netTransport{
			network: cfg.Protocol,
			addr:    net.JoinHostPort(cfg.IPAddress, fmt.Sprint(cfg.Port)),
		}, nil
	case "serial":
		return &serialTransport{port: cfg.SerialPort, baud: cfg.BaudRate}, nil
	case "websocket":
		return newWSTransport(cfg), nil
	default:
		return nil, fmt.Errorf("wits: unsupported protocol %q", cfg.Protocol)
	}
}

// netTransport carries newline-delimited WITS messages over TCP or UDP.
type netTransport struct {
	network string
	addr    string

	conn net.Conn
	r    *bufio.Reader
}

func (t *netTransport) Open(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, t.network, t.addr)
	if err != nil {
		return fmt.Errorf("wits: dial %s %s: %w", t.network, t.addr, err)
	}
	t.conn = conn
	t.r = bufio.NewReader(conn)
	return nil
}

func (t *netTransport) Read() ([]byte, error) {
	if t.network == "udp" {
		// One datagram is one message.
		buf := make([]byte, 64*1024)
		n, err := t.conn.Read(buf)
		if err != nil {
			return nil, err
		}
		return bytes.TrimRight(buf[:n], "\r\n"), nil
	}

	line, err := t.r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

func (t *netTransport) Write(msg []byte) error {
	_, err := t.conn.Write(append(msg, '\n'))
	return err
}

func (t *netTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
