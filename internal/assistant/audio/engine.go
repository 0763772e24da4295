// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     audio
// Description: Capture and playback engine with silence finalization
// License:     MIT
// ============================================================================

package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/auralink/aura/internal/assistant/stt"
	"github.com/auralink/aura/internal/assistant/vad"
	"github.com/auralink/aura/pkg/core/logging"
)

var (
	// ErrCaptureActive is returned when a capture is already running
	ErrCaptureActive = errors.New("capture already active")

	// ErrNotCapturing is returned by StopCapture with no active capture
	ErrNotCapturing = errors.New("no active capture")
)

// RecState is the recording session state
type RecState int

const (
	RecIdle RecState = iota
	RecRecording
	RecFinalizing
)

// String returns the string representation of the state
func (s RecState) String() string {
	switch s {
	case RecIdle:
		return "idle"
	case RecRecording:
		return "recording"
	case RecFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// CaptureConfig controls one capture session
type CaptureConfig struct {
	// DetectSilence enables automatic end-of-utterance finalization
	DetectSilence bool

	// SilenceThreshold overrides the detector's energy threshold when
	// positive (energy engine only)
	SilenceThreshold float64

	// OnSilence is invoked exactly once when the silence window elapses
	OnSilence func()
}

// Engine owns the record/finalize lifecycle and clip playback. At most
// one recording session and one playback are active at any instant;
// starting a second capture is refused and starting a second playback
// stops the first.
type Engine struct {
	mu     sync.Mutex
	logger *logging.Logger

	source     Source
	player     Player
	detector   vad.Detector
	tracker    *vad.SilenceTracker
	recognizer stt.Recognizer // nil = no live transcript

	buffer   *Buffer
	partials chan string

	state         RecState
	captureCancel context.CancelFunc
	pumpDone      chan struct{}
	recActive     bool
	lastPartial   string
	finalText     string

	playCancel     context.CancelFunc
	playCompletion *Completion
}

// EngineConfig wires the engine's collaborators
type EngineConfig struct {
	Source     Source
	Player     Player
	Detector   vad.Detector
	Tracker    *vad.SilenceTracker
	Recognizer stt.Recognizer
}

// NewEngine creates a capture/playback engine
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		logger:   logging.New("audio"),
		source:   cfg.Source,
		player:   cfg.Player,
		detector: cfg.Detector,
		tracker:  cfg.Tracker,
		recognizer: cfg.Recognizer,
		buffer:   NewBuffer(),
		partials: make(chan string, 16),
	}
}

// State returns the recording session state
func (e *Engine) State() RecState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Partials streams interim transcript hypotheses across capture sessions
func (e *Engine) Partials() <-chan string {
	return e.partials
}

// StartCapture begins a recording session. A second concurrent capture
// is refused outright rather than queued. Microphone failure is fatal;
// recognizer failure is not.
func (e *Engine) StartCapture(ctx context.Context, cfg CaptureConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != RecIdle {
		return ErrCaptureActive
	}

	e.buffer.Clear()
	e.tracker.Reset()
	e.lastPartial = ""
	e.finalText = ""

	if cfg.SilenceThreshold > 0 {
		if energy, ok := e.detector.(*vad.EnergyDetector); ok {
			energy.SetThreshold(cfg.SilenceThreshold)
		}
	}

	captureCtx, cancel := context.WithCancel(ctx)

	if err := e.source.Start(captureCtx); err != nil {
		cancel()
		return fmt.Errorf("microphone unavailable: %w", err)
	}

	e.recActive = false
	e.pumpDone = nil
	if e.recognizer != nil {
		if err := e.recognizer.Start(captureCtx, e.source.SampleRate()); err != nil {
			e.logger.Warn("recognizer unavailable, capturing without live transcript", "error", err)
		} else {
			e.recActive = true
			e.pumpDone = make(chan struct{})
			go e.pumpResults(e.pumpDone)
		}
	}

	e.captureCancel = cancel
	e.state = RecRecording

	go e.processFrames(captureCtx, cfg)
	return nil
}

// processFrames consumes capture frames until the session ends
func (e *Engine) processFrames(ctx context.Context, cfg CaptureConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-e.source.Frames():
			if !ok {
				return
			}

			e.buffer.Append(frame)

			e.mu.Lock()
			if e.recActive {
				e.recognizer.Feed(frame)
			}
			e.mu.Unlock()

			isSpeech, err := e.detector.Process(frame)
			if err != nil {
				e.logger.Warn("VAD error", "error", err)
				continue
			}

			if e.tracker.Update(isSpeech) && cfg.DetectSilence {
				e.mu.Lock()
				if e.state == RecRecording {
					e.state = RecFinalizing
				}
				e.mu.Unlock()

				e.logger.Debug("silence window elapsed, finalizing")
				if cfg.OnSilence != nil {
					cfg.OnSilence()
				}
				return
			}
		}
	}
}

// pumpResults forwards recognizer hypotheses to the partial stream
func (e *Engine) pumpResults(done chan struct{}) {
	defer close(done)
	for res := range e.recognizer.Results() {
		e.mu.Lock()
		if res.Final {
			e.finalText = res.Text
		} else {
			e.lastPartial = res.Text
		}
		e.mu.Unlock()

		select {
		case e.partials <- res.Text:
		default:
		}
	}
}

// StopCapture ends the session and assembles the transportable clip.
// The transcript is the recognizer's final hypothesis, falling back to
// the last partial, falling back to empty.
func (e *Engine) StopCapture() (Clip, string, error) {
	e.mu.Lock()
	if e.state == RecIdle {
		e.mu.Unlock()
		return Clip{}, "", ErrNotCapturing
	}
	cancel := e.captureCancel
	recActive := e.recActive
	pumpDone := e.pumpDone
	e.mu.Unlock()

	cancel()
	if err := e.source.Stop(); err != nil {
		e.logger.Warn("failed to stop capture source", "error", err)
	}

	if recActive {
		// Close flushes the final hypothesis through the pump
		if err := e.recognizer.Close(); err != nil {
			e.logger.Warn("recognizer close failed", "error", err)
		}
		<-pumpDone
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	samples := e.buffer.Snapshot()
	clip := Clip{
		SampleRate: e.source.SampleRate(),
		Channels:   1,
		Samples:    FloatsToPCM(samples),
	}

	transcript := e.finalText
	if transcript == "" {
		transcript = e.lastPartial
	}

	e.state = RecIdle
	e.captureCancel = nil
	e.recActive = false
	e.pumpDone = nil

	e.logger.Debug("capture finalized",
		"samples", len(clip.Samples),
		"duration", clip.Duration(),
		"transcript_len", len(transcript),
	)
	return clip, transcript, nil
}

// Cancel discards the active recording session, if any
func (e *Engine) Cancel() {
	e.mu.Lock()
	if e.state == RecIdle {
		e.mu.Unlock()
		return
	}
	cancel := e.captureCancel
	recActive := e.recActive
	pumpDone := e.pumpDone
	e.state = RecIdle
	e.captureCancel = nil
	e.recActive = false
	e.pumpDone = nil
	e.mu.Unlock()

	cancel()
	e.source.Stop()
	if recActive {
		e.recognizer.Close()
		<-pumpDone
	}
	e.buffer.Clear()
}

// Play renders a clip and returns its completion. A playback already in
// flight is stopped first so audio never overlaps; its completion
// resolves as stopped.
func (e *Engine) Play(ctx context.Context, clip Clip) *Completion {
	e.mu.Lock()
	if e.playCancel != nil {
		e.playCancel()
		e.playCompletion.Resolve(PlayStopped, nil)
	}

	completion := NewCompletion()
	playCtx, cancel := context.WithCancel(ctx)
	e.playCancel = cancel
	e.playCompletion = completion
	e.mu.Unlock()

	go func() {
		err := e.player.Play(playCtx, clip)

		e.mu.Lock()
		if e.playCompletion == completion {
			e.playCancel = nil
			e.playCompletion = nil
		}
		e.mu.Unlock()

		switch {
		case playCtx.Err() != nil:
			completion.Resolve(PlayStopped, nil)
		case err != nil:
			e.logger.Warn("playback failed", "error", err)
			completion.Resolve(PlayFailed, err)
		default:
			completion.Resolve(PlayFinished, nil)
		}
	}()

	return completion
}

// StopPlayback cancels the active playback, if any. Its completion
// resolves as stopped.
func (e *Engine) StopPlayback() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playCancel != nil {
		e.playCancel()
	}
}

// Close releases the engine's devices
func (e *Engine) Close() error {
	e.Cancel()
	e.StopPlayback()
	return e.source.Close()
}
