// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     assistant
// Description: Conversation coordinator wiring session, audio, and device
// License:     MIT
// ============================================================================

package assistant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/auralink/aura/internal/assistant/audio"
	"github.com/auralink/aura/internal/assistant/device"
	"github.com/auralink/aura/internal/assistant/session"
	"github.com/auralink/aura/internal/assistant/store"
	"github.com/auralink/aura/pkg/core/logging"
)

var (
	// ErrBusy is returned when a turn is already in flight
	ErrBusy = errors.New("conversation turn already in flight")

	// ErrNoDevice is returned when capture requires a connected
	// peripheral and none is connected
	ErrNoDevice = errors.New("no audio peripheral connected")
)

// Deps bundles the components the coordinator orchestrates. Each is
// constructed and owned outside; the coordinator only arbitrates
// between them.
type Deps struct {
	Config  Config
	Session *session.Manager
	Queue   *session.OfflineQueue
	Engine  *audio.Engine
	Devices *device.Manager
	Store   *store.Store // optional; nil disables persistence
}

// Coordinator arbitrates turn-taking between the network session, the
// capture engine, and the peripheral manager. It never records while
// speaking, never speaks while recording, and re-arms listening only
// from idle.
type Coordinator struct {
	mu     sync.Mutex
	logger *logging.Logger
	cfg    Config

	sm      *StateMachine
	sess    *session.Manager
	queue   *session.OfflineQueue
	engine  *audio.Engine
	devices *device.Manager
	db      *store.Store

	log        *ConversationLog
	autoListen bool

	runCtx context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator creates a coordinator and restores persisted
// conversation state
func NewCoordinator(deps Deps) *Coordinator {
	c := &Coordinator{
		logger:     logging.New("coordinator"),
		cfg:        deps.Config,
		sm:         NewStateMachine(),
		sess:       deps.Session,
		queue:      deps.Queue,
		engine:     deps.Engine,
		devices:    deps.Devices,
		db:         deps.Store,
		log:        NewConversationLog(DefaultLogCap),
		autoListen: deps.Config.AutoListen,
	}
	c.restore()
	return c
}

// restore loads history and pending messages from the store
func (c *Coordinator) restore() {
	if c.db == nil {
		return
	}

	// behavior toggles changed at runtime survive restarts; the config
	// file stays authoritative for everything wired at construction
	var saved Config
	if found, err := c.db.Get(store.KeySettings, &saved); err != nil {
		c.logger.Warn("failed to restore settings", "error", err)
	} else if found {
		c.autoListen = saved.AutoListen
		c.cfg.AutoListen = saved.AutoListen
	}

	var msgs []Message
	if found, err := c.db.Get(store.KeyConversationHistory, &msgs); err != nil {
		c.logger.Warn("failed to restore conversation history", "error", err)
	} else if found {
		c.log.Load(msgs)
	}

	var pending []session.PendingOutbound
	if found, err := c.db.Get(store.KeyPendingMessages, &pending); err != nil {
		c.logger.Warn("failed to restore pending messages", "error", err)
	} else if found {
		c.queue.Load(pending)
	}

	var history []device.Device
	if found, err := c.db.Get(store.KeyDeviceHistory, &history); err != nil {
		c.logger.Warn("failed to restore device history", "error", err)
	} else if found {
		c.devices.History().Load(history)
	}
}

// Start opens the session, optionally auto-connects the peripheral,
// and begins demultiplexing subsystem events
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.runCtx = runCtx
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	if err := c.sess.Open(runCtx); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	if c.cfg.AutoConnectDevice {
		go c.devices.AutoConnect(runCtx)
	}

	go c.eventLoop(runCtx)
	return nil
}

// Stop shuts the coordinator down and persists state
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	c.engine.Cancel()
	c.sess.Close()
	c.persistHistory()
	c.persistQueue()
	c.persistSettings()
	return nil
}

// eventLoop demultiplexes subsystem events by kind
func (c *Coordinator) eventLoop(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-c.sess.Events():
			if ev.To == session.StateOpen {
				c.drainQueue()
			}

		case msg := <-c.sess.Inbound():
			switch m := msg.(type) {
			case *session.AIResponse:
				c.handleResponse(ctx, m)
			case *session.ServerError:
				c.logger.Warn("server error", "message", m.Message)
				c.log.Append(NewMessage(SenderSystem, m.Message))
				c.persistHistory()
			}

		case ev := <-c.devices.Events():
			c.handleDeviceEvent(ev)
		}
	}
}

// handleDeviceEvent reacts to peripheral connectivity changes. Losing
// the required audio route mid-recording cancels the capture; it never
// touches the network session.
func (c *Coordinator) handleDeviceEvent(ev device.StateChange) {
	if ev.To != device.StateDisconnected {
		return
	}
	if c.cfg.RequireDevice && c.sm.Current() == StateRecording {
		c.logger.Warn("audio peripheral lost during recording, cancelling capture")
		c.CancelListening()
	}
}

// State returns the current conversation state
func (c *Coordinator) State() State {
	return c.sm.Current()
}

// Messages returns the conversation log in order
func (c *Coordinator) Messages() []Message {
	return c.log.Messages()
}

// SetAutoListen toggles automatic re-arming of capture from idle
func (c *Coordinator) SetAutoListen(enabled bool) {
	c.mu.Lock()
	c.autoListen = enabled
	c.cfg.AutoListen = enabled
	c.mu.Unlock()
	c.persistSettings()
}

// StartListening begins a capture turn. Only valid from idle; a turn
// in flight is never pre-empted.
func (c *Coordinator) StartListening() error {
	if c.cfg.RequireDevice && c.devices.Connected() == nil {
		return ErrNoDevice
	}
	if !c.sm.Transition(StateRecording) {
		return ErrBusy
	}

	err := c.engine.StartCapture(c.runCtx, audio.CaptureConfig{
		DetectSilence:    true,
		SilenceThreshold: c.cfg.SilenceThreshold,
		OnSilence: func() {
			go c.finishTurn()
		},
	})
	if err != nil {
		c.sm.Transition(StateIdle)
		return fmt.Errorf("failed to start capture: %w", err)
	}
	return nil
}

// StopListening manually finalizes the current capture turn
func (c *Coordinator) StopListening() {
	c.finishTurn()
}

// CancelListening abandons the current capture without sending anything
func (c *Coordinator) CancelListening() {
	if c.sm.Current() != StateRecording {
		return
	}
	c.engine.Cancel()
	c.sm.Transition(StateIdle)
}

// finishTurn finalizes capture and routes the result to the server or
// the offline queue. Safe against double invocation; the transition
// guard admits exactly one finalization per recording.
func (c *Coordinator) finishTurn() {
	if !c.sm.Transition(StateAwaitingResponse) {
		return
	}

	clip, transcript, err := c.engine.StopCapture()
	if err != nil {
		c.logger.Error("failed to finalize capture", "error", err)
		c.sm.Transition(StateIdle)
		return
	}

	msg := NewMessage(SenderUser, transcript)

	encoded, err := clip.Encode()
	if err != nil {
		c.logger.Error("failed to encode clip", "error", err)
		msg.DeliveryState = DeliveryFailed
		c.log.Append(msg)
		c.persistHistory()
		c.sm.Transition(StateIdle)
		return
	}

	wire := session.NewAudioMessage(
		msg.ID,
		base64.StdEncoding.EncodeToString(encoded),
		transcript,
		c.cfg.UserID, c.cfg.UserName, c.cfg.Voice,
	)
	payload, err := json.Marshal(wire)
	if err != nil {
		c.logger.Error("failed to encode outbound message", "error", err)
		msg.DeliveryState = DeliveryFailed
		c.log.Append(msg)
		c.persistHistory()
		c.sm.Transition(StateIdle)
		return
	}

	c.dispatch(msg, payload)
}

// SendText sends a typed message through the same delivery path as a
// voice turn
func (c *Coordinator) SendText(text string) Message {
	msg := NewMessage(SenderUser, text)

	wire := session.NewTextMessage(msg.ID, text, c.cfg.UserID, c.cfg.UserName, c.cfg.Voice)
	payload, err := json.Marshal(wire)
	if err != nil {
		c.logger.Error("failed to encode text message", "error", err)
		msg.DeliveryState = DeliveryFailed
		c.log.Append(msg)
		c.persistHistory()
		return msg
	}

	c.dispatch(msg, payload)
	return msg
}

// dispatch appends the outbound message, then sends it when the link
// is open or queues it otherwise. Transport down never blocks the
// turn; it only reroutes output.
func (c *Coordinator) dispatch(msg Message, payload []byte) {
	msg.DeliveryState = DeliverySent
	if c.sess.State() != session.StateOpen {
		msg.DeliveryState = DeliveryQueued
	}
	c.log.Append(msg)

	if msg.DeliveryState != DeliverySent || !c.sess.Send(payload) {
		c.log.SetDelivery(msg.ID, DeliveryQueued)
		c.queue.Enqueue(session.PendingOutbound{
			Payload:           payload,
			OriginalMessageID: msg.ID,
			EnqueuedAt:        msg.CreatedAt,
		})
		c.persistQueue()
		// nothing will answer a queued turn until it drains; settle
		// back to idle so the user can keep talking
		c.sm.Transition(StateIdle)
		defer c.maybeAutoListen()
	}
	c.persistHistory()
}

// handleResponse applies a server reply to the log and plays any audio
func (c *Coordinator) handleResponse(ctx context.Context, resp *session.AIResponse) {
	if resp.MessageID != "" {
		if resp.Transcription != "" {
			c.log.SetText(resp.MessageID, resp.Transcription)
		}
		c.log.SetDelivery(resp.MessageID, DeliveryDelivered)
	}
	if resp.Text != "" {
		c.log.Append(NewMessage(SenderAssistant, resp.Text))
	}
	c.persistHistory()

	if resp.AudioBase64 == "" {
		c.settle()
		return
	}

	raw, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		c.logger.Warn("dropping undecodable response audio", "error", err)
		c.settle()
		return
	}
	clip, err := audio.DecodeClip(raw)
	if err != nil {
		c.logger.Warn("dropping malformed response clip", "error", err)
		c.settle()
		return
	}

	if c.cfg.RequireDevice && c.devices.Connected() == nil {
		c.logger.Warn("no audio route for response playback")
		c.settle()
		return
	}
	if !c.sm.Transition(StateSpeaking) {
		c.logger.Warn("cannot speak in current state", "state", c.sm.Current().String())
		return
	}

	completion := c.engine.Play(ctx, clip)
	go func() {
		<-completion.Done()
		c.sm.Transition(StateIdle)
		c.maybeAutoListen()
	}()
}

// settle returns a waiting turn to idle and may re-arm listening
func (c *Coordinator) settle() {
	if c.sm.Current() == StateAwaitingResponse {
		c.sm.Transition(StateIdle)
	}
	c.maybeAutoListen()
}

// maybeAutoListen re-arms capture from idle only, never pre-empting a
// turn in flight
func (c *Coordinator) maybeAutoListen() {
	c.mu.Lock()
	enabled := c.autoListen
	c.mu.Unlock()

	if !enabled || c.sm.Current() != StateIdle {
		return
	}
	if err := c.StartListening(); err != nil && !errors.Is(err, ErrBusy) {
		c.logger.Warn("auto-listen failed", "error", err)
	}
}

// drainQueue pushes pending messages onto a freshly opened link, one
// at a time, oldest first. An entry that fails after dequeue is
// reported as a failed delivery and never re-enqueued.
func (c *Coordinator) drainQueue() {
	for c.sess.State() == session.StateOpen {
		entry, ok := c.queue.DrainOne()
		if !ok {
			break
		}
		if c.sess.Send(entry.Payload) {
			c.log.SetDelivery(entry.OriginalMessageID, DeliverySent)
		} else {
			c.logger.Warn("queued message failed to send", "id", entry.OriginalMessageID)
			c.log.SetDelivery(entry.OriginalMessageID, DeliveryFailed)
		}
	}
	c.persistQueue()
	c.persistHistory()
}

// ClearConversation atomically empties the log. Session, device, and
// queue state are untouched.
func (c *Coordinator) ClearConversation() {
	c.log.Clear()
	c.persistHistory()
}

func (c *Coordinator) persistHistory() {
	if c.db == nil {
		return
	}
	if err := c.db.Put(store.KeyConversationHistory, c.log.Messages()); err != nil {
		c.logger.Warn("failed to persist conversation history", "error", err)
	}
}

func (c *Coordinator) persistSettings() {
	if c.db == nil {
		return
	}
	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()
	if err := c.db.Put(store.KeySettings, cfg); err != nil {
		c.logger.Warn("failed to persist settings", "error", err)
	}
}

func (c *Coordinator) persistQueue() {
	if c.db == nil {
		return
	}
	if err := c.db.Put(store.KeyPendingMessages, c.queue.Snapshot()); err != nil {
		c.logger.Warn("failed to persist pending messages", "error", err)
	}
}
