package wits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wellsteer/wellsteer/internal/config"
	"github.com/wellsteer/wellsteer/internal/metrics"
	"github.com/wellsteer/wellsteer/internal/timers"
)

// defaultPongWait is how long a heartbeat ping may go unanswered before it
// counts as missed.
const defaultPongWait = 10 * time.Second

// eventBufSize is the depth of the sample/state/error subscriber channels.
const eventBufSize = 64

// ErrNotConnected is returned by writes attempted without a live transport.
var ErrNotConnected = errors.New("wits: not connected")

// Link owns the telemetry connection: transport lifecycle, the
// auto-reconnect policy, heartbeat keepalive on streaming sockets, and
// parsing of raw messages into channel-keyed samples.
//
// State machine:
//
//	Disconnected -> Connecting -> Connected -> Receiving
//
// On transport loss from Connecting/Connected/Receiving the link enters
// Reconnecting when auto-reconnect is enabled, retrying every RetryInterval
// up to MaxReconnects consecutive attempts, after which it settles at
// Disconnected and waits for a manual Connect.
//
// Safe for concurrent use. Samples are delivered on the Samples channel in
// transport-arrival order within a connection lifetime.
type Link struct {
	parser *Parser

	// pongWait is the fixed pong-timeout policy; a field so tests can
	// shorten it.
	pongWait time.Duration

	// dial builds the transport for a config; a field so tests can inject
	// an in-memory transport.
	dial func(config.ConnectionConfig) (Transport, error)

	mu          sync.Mutex
	cfg         config.ConnectionConfig
	state       State
	transport   Transport
	gen         uint64 // connection generation; stale transport events are dropped
	attempts    int    // consecutive reconnect attempts since last success or manual connect
	missedPongs int

	// One timer per purpose; re-arming replaces, never stacks.
	heartbeat   timers.Single
	pongTimeout timers.Single
	retry       timers.Single

	samples chan Sample
	states  chan State
	errs    chan error
}

// NewLink returns a Link in the Disconnected state.
func NewLink(cfg config.ConnectionConfig, parser *Parser) *Link {
	return &Link{
		parser:   parser,
		pongWait: defaultPongWait,
		dial:     newTransport,
		cfg:      cfg,
		samples:  make(chan Sample, eventBufSize),
		states:   make(chan State, eventBufSize),
		errs:     make(chan error, eventBufSize),
	}
}

// Samples delivers parsed telemetry samples in arrival order.
func (l *Link) Samples() <-chan Sample { return l.samples }

// States delivers connection-state transitions.
func (l *Link) States() <-chan State { return l.states }

// Errors delivers non-fatal connection and transport errors.
func (l *Link) Errors() <-chan error { return l.errs }

// State returns the current connection state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Config returns a copy of the current connection config.
func (l *Link) Config() config.ConnectionConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// UpdateConfig replaces the connection config wholesale. The new config
// takes effect on the next Connect; the live connection is untouched.
func (l *Link) UpdateConfig(cfg config.ConnectionConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}

// Connect opens the transport using the current config. A no-op when the
// link is already connecting, connected or receiving. A manual connect
// resets the reconnect attempt budget.
func (l *Link) Connect() error {
	l.mu.Lock()
	switch l.state {
	case StateConnecting, StateConnected, StateReceiving:
		l.mu.Unlock()
		return nil
	}
	l.retry.Stop()
	l.attempts = 0
	cfg := l.cfg
	gen := l.gen
	l.setStateLocked(StateConnecting)
	l.mu.Unlock()

	return l.open(cfg, gen)
}

// Disconnect forces the link to Disconnected and cancels the heartbeat
// ticker, any pending pong timeout and any pending reconnect delay
// synchronously. On a streaming socket a disconnect control frame is sent
// best-effort before closing.
func (l *Link) Disconnect() {
	l.mu.Lock()
	l.gen++ // orphan the read loop of the current connection
	tr := l.transport
	l.transport = nil
	l.heartbeat.Stop()
	l.pongTimeout.Stop()
	l.retry.Stop()
	l.attempts = 0
	l.missedPongs = 0
	isWS := l.cfg.Protocol == "websocket"
	l.setStateLocked(StateDisconnected)
	l.mu.Unlock()

	if tr == nil {
		return
	}
	if isWS {
		if data, err := json.Marshal(controlFrame{Type: frameDisconnect}); err == nil {
			_ = tr.Write(data)
		}
	}
	tr.Close()
	slog.Info("wits: disconnected")
}

// TestConnection opens a throwaway connection with the current config and
// reports whether it succeeded. The live connection state is not touched.
func (l *Link) TestConnection() bool {
	l.mu.Lock()
	cfg := l.cfg
	l.mu.Unlock()

	tr, err := l.dial(cfg)
	if err != nil {
		return false
	}
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = config.DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := tr.Open(ctx); err != nil {
		return false
	}
	tr.Close()
	return true
}

// SendCommand writes a command to the transport, fire-and-forget. On a
// streaming socket the command travels as a JSON control frame; on raw
// transports as a plain text line.
func (l *Link) SendCommand(command string, params map[string]any) error {
	l.mu.Lock()
	tr := l.transport
	isWS := l.cfg.Protocol == "websocket"
	l.mu.Unlock()

	if tr == nil {
		return ErrNotConnected
	}
	if isWS {
		data, err := json.Marshal(controlFrame{Type: frameCommand, Command: command, Params: params})
		if err != nil {
			return fmt.Errorf("wits: encode command: %w", err)
		}
		return tr.Write(data)
	}
	return tr.Write([]byte(command))
}

// --- connection lifecycle ----------------------------------------------------

// open dials and attaches a new transport. fromGen is the generation that
// initiated the attempt; a Disconnect while the dial is in flight bumps
// l.gen, and the late transport is then discarded instead of attached. On
// failure the retry policy decides between Reconnecting and Disconnected.
func (l *Link) open(cfg config.ConnectionConfig, fromGen uint64) error {
	tr, err := l.dial(cfg)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Std())
		err = tr.Open(ctx)
		cancel()
	}
	if err != nil {
		slog.Warn("wits: connect failed", "protocol", cfg.Protocol, "err", err)
		l.publishErr(err)
		l.scheduleRetry(cfg, fromGen)
		return err
	}

	l.mu.Lock()
	if fromGen != l.gen {
		// A manual disconnect superseded this attempt while it dialed.
		l.mu.Unlock()
		tr.Close()
		slog.Debug("wits: discarding superseded connection", "protocol", cfg.Protocol)
		return nil
	}
	l.gen++
	gen := l.gen
	l.transport = tr
	l.missedPongs = 0
	l.attempts = 0
	l.setStateLocked(StateConnected)
	l.mu.Unlock()

	slog.Info("wits: connected", "protocol", cfg.Protocol)
	go l.readLoop(tr, gen)
	if cfg.Protocol == "websocket" {
		l.armHeartbeat(gen)
	}
	return nil
}

// readLoop pumps messages off the transport until it fails. One loop runs
// per connection; loops from dead connections are orphaned by generation.
func (l *Link) readLoop(tr Transport, gen uint64) {
	for {
		msg, err := tr.Read()
		if err != nil {
			l.transportClosed(gen, err)
			return
		}
		l.handleMessage(gen, msg)
	}
}

func (l *Link) handleMessage(gen uint64, msg []byte) {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	isWS := l.cfg.Protocol == "websocket"
	l.mu.Unlock()

	if isWS {
		if frame, ok := decodeControlFrame(msg); ok {
			l.handleControl(gen, frame)
			return
		}
	}

	sample := l.parser.Parse(msg, time.Now())
	if len(sample.Channels) == 0 {
		return
	}
	metrics.SamplesReceived.Inc()

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	if l.state == StateConnected {
		// First valid sample promotes the connection.
		l.setStateLocked(StateReceiving)
	}
	l.mu.Unlock()

	l.publishSample(sample)
}

func (l *Link) handleControl(gen uint64, frame controlFrame) {
	switch frame.Type {
	case framePing:
		l.mu.Lock()
		tr := l.transport
		l.mu.Unlock()
		if tr != nil {
			if data, err := json.Marshal(controlFrame{Type: framePong, Timestamp: time.Now().UnixMilli()}); err == nil {
				_ = tr.Write(data)
			}
		}

	case framePong:
		l.mu.Lock()
		live := gen == l.gen
		if live {
			l.missedPongs = 0
		}
		l.mu.Unlock()
		// A pong from an orphaned connection must not cancel the live
		// connection's pending timeout.
		if live {
			l.pongTimeout.Stop()
		}

	case frameDisconnect:
		slog.Info("wits: server requested disconnect")
		l.mu.Lock()
		tr := l.transport
		l.mu.Unlock()
		if tr != nil {
			// The read loop surfaces the close and drives the retry policy.
			tr.Close()
		}
	}
}

// transportClosed handles a non-manual connection loss.
func (l *Link) transportClosed(gen uint64, err error) {
	l.mu.Lock()
	if gen != l.gen {
		// Manual disconnect or a newer connection already superseded us.
		l.mu.Unlock()
		return
	}
	l.gen++
	nextGen := l.gen
	l.transport = nil
	l.heartbeat.Stop()
	l.pongTimeout.Stop()
	cfg := l.cfg
	l.mu.Unlock()

	slog.Warn("wits: connection lost", "err", err)
	l.publishErr(fmt.Errorf("wits: connection lost: %w", err))
	l.scheduleRetry(cfg, nextGen)
}

// scheduleRetry arms the single reconnect timer, or settles at Disconnected
// when auto-reconnect is off or the attempt budget is spent. fromGen guards
// against a manual disconnect racing the failed attempt.
func (l *Link) scheduleRetry(cfg config.ConnectionConfig, fromGen uint64) {
	l.mu.Lock()
	if fromGen != l.gen {
		l.mu.Unlock()
		return
	}
	if !cfg.AutoReconnect || l.attempts >= cfg.MaxReconnects {
		exhausted := cfg.AutoReconnect
		l.setStateLocked(StateDisconnected)
		l.mu.Unlock()
		if exhausted {
			slog.Error("wits: reconnect attempts exhausted — manual connect required",
				"attempts", cfg.MaxReconnects)
		}
		return
	}
	l.attempts++
	attempt := l.attempts
	l.setStateLocked(StateReconnecting)
	l.mu.Unlock()

	metrics.ReconnectAttempts.Inc()
	slog.Info("wits: reconnecting", "attempt", attempt, "in", cfg.RetryInterval.Std())

	l.retry.Reset(cfg.RetryInterval.Std(), func() {
		l.mu.Lock()
		if l.state != StateReconnecting || fromGen != l.gen {
			l.mu.Unlock()
			return
		}
		cfg := l.cfg
		l.setStateLocked(StateConnecting)
		l.mu.Unlock()
		l.open(cfg, fromGen) //nolint:errcheck // failure re-enters the retry policy
	})
}

// --- heartbeat ---------------------------------------------------------------

// armHeartbeat schedules the next ping. Re-arming replaces the previous
// schedule; there is never more than one pending tick.
func (l *Link) armHeartbeat(gen uint64) {
	l.mu.Lock()
	interval := l.cfg.HeartbeatInterval.Std()
	l.mu.Unlock()
	l.heartbeat.Reset(interval, func() { l.heartbeatTick(gen) })
}

func (l *Link) heartbeatTick(gen uint64) {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	tr := l.transport
	l.mu.Unlock()
	if tr == nil {
		return
	}

	if data, err := json.Marshal(controlFrame{Type: framePing, Timestamp: time.Now().UnixMilli()}); err == nil {
		if err := tr.Write(data); err != nil {
			slog.Warn("wits: heartbeat write failed", "err", err)
		}
	}

	l.pongTimeout.Reset(l.pongWait, func() { l.pongTimedOut(gen) })
	l.armHeartbeat(gen)
}

func (l *Link) pongTimedOut(gen uint64) {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	l.missedPongs++
	missed := l.missedPongs
	max := l.cfg.MaxMissedPongs
	tr := l.transport
	l.mu.Unlock()

	metrics.MissedPongs.Inc()
	slog.Warn("wits: heartbeat pong missed", "missed", missed, "max", max)

	if missed >= max && tr != nil {
		slog.Error("wits: heartbeat lost — forcing transport closed")
		// The read loop surfaces the close and drives the retry policy.
		tr.Close()
	}
}

// --- publishing --------------------------------------------------------------

// setStateLocked is the only place the connection state changes.
// Caller holds l.mu.
func (l *Link) setStateLocked(s State) {
	if l.state == s {
		return
	}
	l.state = s
	metrics.ConnectionState.Set(float64(s))
	select {
	case l.states <- s:
	default:
		slog.Debug("wits: state subscriber lagging — dropping transition", "state", s)
	}
}

func (l *Link) publishSample(s Sample) {
	select {
	case l.samples <- s:
	default:
		slog.Debug("wits: sample subscriber lagging — dropping sample")
	}
}

func (l *Link) publishErr(err error) {
	select {
	case l.errs <- err:
	default:
	}
}
