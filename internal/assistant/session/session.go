// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     session
// Description: Duplex session lifecycle, keepalive, and reconnection
// License:     MIT
// ============================================================================

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/auralink/aura/pkg/core/logging"
)

// State is the session lifecycle state
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateReconnecting
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// StateEvent is one observed transition. Epoch counts Open periods;
// it increments each time the transport is freshly established.
type StateEvent struct {
	From  State
	To    State
	Epoch uint64
}

// Conn is one established transport connection
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Transport establishes connections. The production transport dials a
// websocket; tests script one.
type Transport interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Defaults for keepalive and reconnection timing
const (
	DefaultPingInterval    = 30 * time.Second
	DefaultLivenessTimeout = 60 * time.Second
	DefaultReconnectDelay  = 5 * time.Second
)

// Config holds session manager configuration
type Config struct {
	Endpoint        string
	Transport       Transport
	PingInterval    time.Duration
	LivenessTimeout time.Duration
	ReconnectDelay  time.Duration
}

// Manager owns the connection lifecycle. Once opened it keeps the link
// alive with periodic pings and reconnects after a fixed delay for as
// long as the process intends to stay connected; only an explicit Close
// returns it to idle.
type Manager struct {
	mu     sync.Mutex
	logger *logging.Logger
	cfg    Config

	state State
	epoch uint64
	conn  Conn

	lastActivity time.Time

	// transitions are staged in evbuf and forwarded by a pump
	// goroutine so emitting never blocks the state machine and no
	// transition is lost under churn
	evmu   sync.Mutex
	evbuf  []StateEvent
	evsig  chan struct{}
	events chan StateEvent

	inbound chan any

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a session manager
func NewManager(cfg Config) *Manager {
	if cfg.Transport == nil {
		cfg.Transport = &WSTransport{}
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.LivenessTimeout <= 0 {
		cfg.LivenessTimeout = DefaultLivenessTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	m := &Manager{
		logger:  logging.New("session"),
		cfg:     cfg,
		state:   StateIdle,
		evsig:   make(chan struct{}, 1),
		events:  make(chan StateEvent, 16),
		inbound: make(chan any, 64),
	}
	go m.pumpEvents()
	return m
}

// pumpEvents forwards staged transitions to the events channel in order
func (m *Manager) pumpEvents() {
	for range m.evsig {
		for {
			m.evmu.Lock()
			if len(m.evbuf) == 0 {
				m.evmu.Unlock()
				break
			}
			ev := m.evbuf[0]
			m.evbuf = m.evbuf[1:]
			m.evmu.Unlock()
			m.events <- ev
		}
	}
}

// Events streams state transitions, exactly one per transition
func (m *Manager) Events() <-chan StateEvent {
	return m.events
}

// Inbound streams decoded server messages (*AIResponse, *ServerError)
func (m *Manager) Inbound() <-chan any {
	return m.inbound
}

// State returns the current session state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Epoch returns the number of Open periods established so far
func (m *Manager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// setState transitions and stages exactly one event. Callers hold m.mu.
func (m *Manager) setState(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to

	m.evmu.Lock()
	m.evbuf = append(m.evbuf, StateEvent{From: from, To: to, Epoch: m.epoch})
	m.evmu.Unlock()
	select {
	case m.evsig <- struct{}{}:
	default:
	}

	m.logger.Debug("session state", "from", from.String(), "to", to.String(), "epoch", m.epoch)
}

// Open starts the connection loop. It returns immediately; progress is
// observable on Events().
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return fmt.Errorf("session already open")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(runCtx)
	return nil
}

// Close shuts the session down and waits for the loop to exit
func (m *Manager) Close() error {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// run is the connection loop. It cycles Connecting, Open, Closing,
// Reconnecting until the context is cancelled.
func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	for {
		m.mu.Lock()
		m.setState(StateConnecting)
		m.mu.Unlock()

		conn, err := m.cfg.Transport.Dial(ctx, m.cfg.Endpoint)
		if err != nil {
			if ctx.Err() != nil {
				m.shutdown()
				return
			}
			m.logger.Warn("connect failed", "endpoint", m.cfg.Endpoint, "error", err)
			if !m.waitReconnect(ctx) {
				return
			}
			continue
		}

		m.mu.Lock()
		m.conn = conn
		m.epoch++
		m.lastActivity = time.Now()
		m.setState(StateOpen)
		m.mu.Unlock()
		m.logger.Info("session open", "endpoint", m.cfg.Endpoint, "epoch", m.Epoch())

		reason := m.serve(ctx, conn)

		m.mu.Lock()
		m.conn = nil
		m.setState(StateClosing)
		m.mu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			m.shutdown()
			return
		}
		m.logger.Warn("session lost", "reason", reason)
		if !m.waitReconnect(ctx) {
			return
		}
	}
}

// waitReconnect enters Reconnecting and waits the fixed delay. It
// returns false when the context ended during the wait.
func (m *Manager) waitReconnect(ctx context.Context) bool {
	m.mu.Lock()
	m.setState(StateReconnecting)
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		m.shutdown()
		return false
	case <-time.After(m.cfg.ReconnectDelay):
		return true
	}
}

// shutdown returns to idle. The inbound channel stays open since the
// read loop of a dying connection may still be flushing frames into it.
func (m *Manager) shutdown() {
	m.mu.Lock()
	m.setState(StateIdle)
	m.mu.Unlock()
}

// serve pumps one established connection. It returns when the read
// side fails, the liveness window expires, or the context ends.
func (m *Manager) serve(ctx context.Context, conn Conn) string {
	readErr := make(chan error, 1)
	go m.readLoop(conn, readErr)

	pings := time.NewTicker(m.cfg.PingInterval)
	defer pings.Stop()

	// liveness is polled more often than it can expire so a dead-but-
	// open transport is caught close to the deadline
	checkEvery := m.cfg.LivenessTimeout / 4
	if checkEvery <= 0 {
		checkEvery = time.Millisecond
	}
	liveness := time.NewTicker(checkEvery)
	defer liveness.Stop()

	for {
		select {
		case <-ctx.Done():
			return "shutdown"

		case err := <-readErr:
			return fmt.Sprintf("read failed: %v", err)

		case <-pings.C:
			data, _ := json.Marshal(pingMessage{Type: TypePing})
			if err := conn.WriteMessage(data); err != nil {
				return fmt.Sprintf("ping failed: %v", err)
			}

		case <-liveness.C:
			m.mu.Lock()
			idle := time.Since(m.lastActivity)
			m.mu.Unlock()
			if idle >= m.cfg.LivenessTimeout {
				return fmt.Sprintf("no liveness signal for %v", idle.Round(time.Millisecond))
			}
		}
	}
}

// readLoop decodes inbound frames until the connection fails. Every
// successfully read frame counts as a liveness signal, pong or not.
// Malformed frames are logged and dropped.
func (m *Manager) readLoop(conn Conn, readErr chan<- error) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}

		m.mu.Lock()
		m.lastActivity = time.Now()
		m.mu.Unlock()

		msg, err := DecodeInbound(data)
		if err != nil {
			m.logger.Warn("dropping inbound frame", "error", err)
			continue
		}
		if msg == nil {
			continue // pong
		}
		m.inbound <- msg
	}
}

// Send writes an encoded message when the link is Open. It returns
// false when the message is undeliverable now; the caller routes it to
// the offline queue rather than treating false as an error.
func (m *Manager) Send(data []byte) bool {
	m.mu.Lock()
	conn := m.conn
	open := m.state == StateOpen
	m.mu.Unlock()

	if !open || conn == nil {
		return false
	}
	if err := conn.WriteMessage(data); err != nil {
		m.logger.Warn("send failed", "error", err)
		return false
	}
	return true
}

// SendJSON marshals and sends a wire message
func (m *Manager) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("failed to encode outbound message", "error", err)
		return false
	}
	return m.Send(data)
}

// WSTransport dials websocket connections
type WSTransport struct {
	HandshakeTimeout time.Duration
}

// Dial establishes a websocket connection to the endpoint
func (t *WSTransport) Dial(ctx context.Context, endpoint string) (Conn, error) {
	timeout := t.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
