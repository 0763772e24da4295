// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     device
// Description: Peripheral discovery and connection lifecycle
// License:     MIT
// ============================================================================

package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/auralink/aura/pkg/core/logging"
)

var (
	// ErrDeviceNotFound is returned for connect attempts on unknown or
	// unreachable device ids
	ErrDeviceNotFound = errors.New("device not found")

	// ErrScanActive is returned when a scan is already running
	ErrScanActive = errors.New("scan already active")
)

// DefaultScanTimeout bounds a discovery scan
const DefaultScanTimeout = 10 * time.Second

// Device is a discoverable audio peripheral
type Device struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	SignalStrength int    `json:"signal_strength"`
}

// ConnState is the peripheral connection state
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateScanning
	StateConnecting
	StateConnected
	StateError
)

// String returns the string representation of the state
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// StateChange is one observed transition
type StateChange struct {
	From ConnState
	To   ConnState
	Err  error // set for transitions into StateError
}

// Radio is the external scan/connect capability. A BLE or similar radio
// implements it in production; tests script it.
type Radio interface {
	// Scan streams discovered devices until the context is cancelled
	Scan(ctx context.Context) (<-chan Device, error)

	// Connect establishes a link to the device with the given id
	Connect(ctx context.Context, id string) (Device, error)

	// Disconnect tears down the link to the given id
	Disconnect(id string) error
}

// Config holds manager configuration
type Config struct {
	Radio       Radio
	ScanTimeout time.Duration
	HistoryCap  int

	// Persist is called with the full history after each successful
	// connect (nil disables persistence)
	Persist func([]Device)
}

// Manager owns the peripheral connectivity state machine. Its state
// gates whether capture and playback have a usable audio route; it never
// blocks the network or audio state machines.
type Manager struct {
	mu     sync.Mutex
	logger *logging.Logger

	radio       Radio
	history     *History
	scanTimeout time.Duration
	persist     func([]Device)

	state      ConnState
	connected  *Device
	lastErr    error
	scanCancel context.CancelFunc
	events     chan StateChange
}

// NewManager creates a connection manager
func NewManager(cfg Config) *Manager {
	timeout := cfg.ScanTimeout
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	return &Manager{
		logger:      logging.New("device"),
		radio:       cfg.Radio,
		history:     NewHistory(cfg.HistoryCap),
		scanTimeout: timeout,
		persist:     cfg.Persist,
		state:       StateDisconnected,
		events:      make(chan StateChange, 64),
	}
}

// Events streams state transitions, one per transition
func (m *Manager) Events() <-chan StateChange {
	return m.events
}

// State returns the current connection state
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the error behind the current Error state, or nil
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Acknowledge clears an error state back to disconnected. Connect
// failures settle on their own; scan failures wait for the caller to
// acknowledge them.
func (m *Manager) Acknowledge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateError {
		m.setState(StateDisconnected, nil)
	}
}

// History returns the MRU device history
func (m *Manager) History() *History {
	return m.history
}

// Connected returns the currently connected device, or nil
func (m *Manager) Connected() *Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected == nil {
		return nil
	}
	d := *m.connected
	return &d
}

// setState transitions and emits exactly one event. Callers hold m.mu.
func (m *Manager) setState(to ConnState, err error) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.lastErr = err
	m.events <- StateChange{From: from, To: to, Err: err}
}

// Scan starts discovery. The returned channel yields devices until the
// scan stops; scanning auto-stops after the configured timeout even
// when never explicitly stopped.
func (m *Manager) Scan(ctx context.Context, timeout time.Duration) (<-chan Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateScanning {
		return nil, ErrScanActive
	}
	if timeout <= 0 {
		timeout = m.scanTimeout
	}

	scanCtx, cancel := context.WithTimeout(ctx, timeout)

	stream, err := m.radio.Scan(scanCtx)
	if err != nil {
		cancel()
		m.setState(StateError, err)
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	m.scanCancel = cancel
	m.setState(StateScanning, nil)

	out := make(chan Device, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-scanCtx.Done():
				m.finishScan()
				return
			case d, ok := <-stream:
				if !ok {
					m.finishScan()
					return
				}
				select {
				case out <- d:
				case <-scanCtx.Done():
					m.finishScan()
					return
				}
			}
		}
	}()

	return out, nil
}

// finishScan returns to Disconnected unless a connect superseded the scan
func (m *Manager) finishScan() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanCancel = nil
	if m.state == StateScanning {
		m.setState(StateDisconnected, nil)
	}
}

// StopScan cancels an active scan
func (m *Manager) StopScan() {
	m.mu.Lock()
	cancel := m.scanCancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Connect establishes a connection to the device with the given id. A
// scan in flight is stopped first to avoid radio contention. On success
// the device moves to the front of the history.
func (m *Manager) Connect(ctx context.Context, id string) (Device, error) {
	m.mu.Lock()
	if m.scanCancel != nil {
		m.scanCancel()
		m.scanCancel = nil
	}
	m.setState(StateConnecting, nil)
	m.mu.Unlock()

	dev, err := m.radio.Connect(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.setState(StateError, err)
		m.setState(StateDisconnected, nil)
		return Device{}, fmt.Errorf("connect to %s: %w", id, err)
	}

	m.connected = &dev
	m.setState(StateConnected, nil)
	m.history.Touch(dev)
	if m.persist != nil {
		m.persist(m.history.Devices())
	}

	m.logger.Info("peripheral connected", "id", dev.ID, "name", dev.DisplayName)
	return dev, nil
}

// Disconnect tears down the connection with the given id. Disconnecting
// an id that is not connected is a no-op, not an error.
func (m *Manager) Disconnect(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected == nil || m.connected.ID != id {
		return nil
	}

	if err := m.radio.Disconnect(id); err != nil {
		m.logger.Warn("disconnect failed", "id", id, "error", err)
	}
	m.connected = nil
	m.setState(StateDisconnected, nil)
	return nil
}

// ConnectionLost records an unsolicited link drop reported by the radio
func (m *Manager) ConnectionLost(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected == nil || m.connected.ID != id {
		return
	}
	m.logger.Warn("peripheral connection lost", "id", id)
	m.connected = nil
	m.setState(StateDisconnected, nil)
}

// AutoConnect attempts to reconnect the most recently used device. A
// failure is a best-effort inconvenience, logged and swallowed.
func (m *Manager) AutoConnect(ctx context.Context) {
	front, ok := m.history.Front()
	if !ok {
		return
	}
	if _, err := m.Connect(ctx, front.ID); err != nil {
		m.logger.Info("auto-connect failed", "id", front.ID, "error", err)
	}
}
