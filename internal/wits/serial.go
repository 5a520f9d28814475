package wits

import (
	"bufio"
	"bytes"
	"context"
	"fmt"

	"go.bug.st/serial"
)

// serialTransport carries newline-delimited WITS messages over an RS-232
// port — the classic rig-floor WITS hookup.
type serialTransport struct {
	port string
	baud int

	conn serial.Port
	r    *bufio.Reader
}

func (t *serialTransport) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := serial.Open(t.port, &serial.Mode{BaudRate: t.baud})
	if err != nil {
		return fmt.Errorf("wits: open serial %s: %w", t.port, err)
	}
	t.conn = conn
	t.r = bufio.NewReader(conn)
	return nil
}

func (t *serialTransport) Read() ([]byte, error) {
	line, err := t.r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

func (t *serialTransport) Write(msg []byte) error {
	_, err := t.conn.Write(append(msg, '\r', '\n'))
	return err
}

func (t *serialTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
