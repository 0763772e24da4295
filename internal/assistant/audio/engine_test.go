package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/auralink/aura/internal/assistant/stt"
	"github.com/auralink/aura/internal/assistant/vad"
)

// fakeSource scripts capture frames for the engine
type fakeSource struct {
	mu       sync.Mutex
	frames   chan []float32
	rate     int
	startErr error
	started  bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{frames: make(chan []float32, 100), rate: 16000}
}

func (f *fakeSource) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeSource) Frames() <-chan []float32 { return f.frames }
func (f *fakeSource) Stop() error              { return nil }
func (f *fakeSource) Close() error             { return nil }
func (f *fakeSource) SampleRate() int          { return f.rate }

func (f *fakeSource) push(frame []float32) {
	f.frames <- frame
}

// fakePlayer blocks until released or the context is cancelled
type fakePlayer struct {
	release chan error
	exited  chan struct{}
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{release: make(chan error, 1), exited: make(chan struct{}, 4)}
}

func (p *fakePlayer) Play(ctx context.Context, clip Clip) error {
	defer func() { p.exited <- struct{}{} }()
	select {
	case err := <-p.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fakeRecognizer emits scripted hypotheses
type fakeRecognizer struct {
	mu       sync.Mutex
	startErr error
	results  chan stt.Result
	fed      int
	closed   bool
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{results: make(chan stt.Result, 16)}
}

func (r *fakeRecognizer) Start(ctx context.Context, sampleRate int) error {
	return r.startErr
}

func (r *fakeRecognizer) Feed(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fed += len(samples)
}

func (r *fakeRecognizer) Results() <-chan stt.Result { return r.results }

func (r *fakeRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.results)
	}
	return nil
}

func newTestEngine(src Source, rec stt.Recognizer, silence time.Duration) *Engine {
	cfg := vad.DefaultConfig()
	cfg.SilenceDuration = silence
	detector, _ := vad.NewEnergyDetector(cfg)
	return NewEngine(EngineConfig{
		Source:     src,
		Player:     newFakePlayer(),
		Detector:   detector,
		Tracker:    vad.NewSilenceTracker(cfg),
		Recognizer: rec,
	})
}

func loudFrame() []float32 {
	frame := make([]float32, 320)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = 0.5
		} else {
			frame[i] = -0.5
		}
	}
	return frame
}

func TestEngine_SecondCaptureRefused(t *testing.T) {
	src := newFakeSource()
	e := newTestEngine(src, nil, time.Second)

	if err := e.StartCapture(context.Background(), CaptureConfig{}); err != nil {
		t.Fatal(err)
	}
	defer e.Cancel()

	if err := e.StartCapture(context.Background(), CaptureConfig{}); !errors.Is(err, ErrCaptureActive) {
		t.Errorf("second StartCapture = %v, want ErrCaptureActive", err)
	}
}

func TestEngine_MicFailureIsFatal(t *testing.T) {
	src := newFakeSource()
	src.startErr = errors.New("no input device")
	e := newTestEngine(src, nil, time.Second)

	err := e.StartCapture(context.Background(), CaptureConfig{})
	if err == nil {
		t.Fatal("expected error when the microphone is unavailable")
	}
	if e.State() != RecIdle {
		t.Errorf("state = %v, want idle after failed start", e.State())
	}
}

func TestEngine_SilenceFiresOnce(t *testing.T) {
	src := newFakeSource()
	e := newTestEngine(src, nil, 50*time.Millisecond)

	var fired atomic.Int32
	err := e.StartCapture(context.Background(), CaptureConfig{
		DetectSilence: true,
		OnSilence:     func() { fired.Add(1) },
	})
	if err != nil {
		t.Fatal(err)
	}

	// Speech, then sustained quiet past the window
	src.push(loudFrame())
	deadline := time.Now().Add(time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		src.push(make([]float32, 320))
		time.Sleep(10 * time.Millisecond)
	}

	if got := fired.Load(); got != 1 {
		t.Fatalf("OnSilence fired %d times, want 1", got)
	}
	if e.State() != RecFinalizing {
		t.Errorf("state = %v, want finalizing", e.State())
	}

	if _, _, err := e.StopCapture(); err != nil {
		t.Fatal(err)
	}
	if e.State() != RecIdle {
		t.Errorf("state = %v, want idle after stop", e.State())
	}
}

func TestEngine_StopCaptureAssemblesClip(t *testing.T) {
	src := newFakeSource()
	e := newTestEngine(src, nil, time.Second)

	if err := e.StartCapture(context.Background(), CaptureConfig{}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		src.push(loudFrame())
	}
	// Let the process loop drain the frames
	deadline := time.Now().Add(time.Second)
	for e.buffer.Len() < 5*320 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	clip, transcript, err := e.StopCapture()
	if err != nil {
		t.Fatal(err)
	}
	if clip.SampleRate != 16000 {
		t.Errorf("clip rate = %d, want 16000", clip.SampleRate)
	}
	if len(clip.Samples) != 5*320 {
		t.Errorf("clip samples = %d, want %d", len(clip.Samples), 5*320)
	}
	if transcript != "" {
		t.Errorf("transcript = %q, want empty without a recognizer", transcript)
	}
}

func TestEngine_CaptureRoundTripFidelity(t *testing.T) {
	src := newFakeSource()
	e := newTestEngine(src, nil, time.Second)

	if err := e.StartCapture(context.Background(), CaptureConfig{}); err != nil {
		t.Fatal(err)
	}
	src.push(loudFrame())
	deadline := time.Now().Add(time.Second)
	for e.buffer.Len() < 320 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	clip, _, err := e.StopCapture()
	if err != nil {
		t.Fatal(err)
	}

	data, err := clip.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeClip(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Samples) != len(clip.Samples) {
		t.Errorf("round-trip sample count = %d, want %d", len(decoded.Samples), len(clip.Samples))
	}
	if decoded.SampleRate != clip.SampleRate {
		t.Errorf("round-trip rate = %d, want %d", decoded.SampleRate, clip.SampleRate)
	}
}

func TestEngine_TranscriptFallsBackToLastPartial(t *testing.T) {
	src := newFakeSource()
	rec := newFakeRecognizer()
	e := newTestEngine(src, rec, time.Second)

	if err := e.StartCapture(context.Background(), CaptureConfig{}); err != nil {
		t.Fatal(err)
	}

	rec.results <- stt.Result{Text: "turn on"}
	rec.results <- stt.Result{Text: "turn on lights"}

	// Wait for the pump to record the partials
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		got := e.lastPartial
		e.mu.Unlock()
		if got == "turn on lights" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, transcript, err := e.StopCapture()
	if err != nil {
		t.Fatal(err)
	}
	if transcript != "turn on lights" {
		t.Errorf("transcript = %q, want last partial", transcript)
	}
}

func TestEngine_RecognizerUnavailableIsNonFatal(t *testing.T) {
	src := newFakeSource()
	rec := newFakeRecognizer()
	rec.startErr = errors.New("recognizer down")
	e := newTestEngine(src, rec, time.Second)

	if err := e.StartCapture(context.Background(), CaptureConfig{}); err != nil {
		t.Fatalf("capture should proceed without recognizer: %v", err)
	}

	_, transcript, err := e.StopCapture()
	if err != nil {
		t.Fatal(err)
	}
	if transcript != "" {
		t.Errorf("transcript = %q, want empty", transcript)
	}
}

func TestEngine_NewPlaybackStopsPrior(t *testing.T) {
	src := newFakeSource()
	e := newTestEngine(src, nil, time.Second)

	clip := Clip{SampleRate: 16000, Channels: 1, Samples: make([]int16, 160)}

	first := e.Play(context.Background(), clip)
	second := e.Play(context.Background(), clip)

	select {
	case res := <-first.Done():
		if res.Outcome != PlayStopped {
			t.Errorf("first outcome = %v, want stopped", res.Outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("first playback never resolved")
	}

	// Wait for the cancelled playback to leave the player before
	// releasing, so the release is consumed by the second playback
	player := e.player.(*fakePlayer)
	select {
	case <-player.exited:
	case <-time.After(time.Second):
		t.Fatal("first playback never left the player")
	}
	player.release <- nil
	select {
	case res := <-second.Done():
		if res.Outcome != PlayFinished {
			t.Errorf("second outcome = %v, want finished", res.Outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("second playback never resolved")
	}
}

func TestEngine_PlaybackFailureResolvesOnce(t *testing.T) {
	src := newFakeSource()
	e := newTestEngine(src, nil, time.Second)
	player := e.player.(*fakePlayer)

	clip := Clip{SampleRate: 16000, Channels: 1, Samples: make([]int16, 160)}
	completion := e.Play(context.Background(), clip)

	player.release <- errors.New("device gone")

	select {
	case res := <-completion.Done():
		if res.Outcome != PlayFailed {
			t.Errorf("outcome = %v, want failed", res.Outcome)
		}
		if res.Err == nil {
			t.Error("failed result should carry the error")
		}
	case <-time.After(time.Second):
		t.Fatal("playback never resolved")
	}

	// Channel closes after the single result
	if _, ok := <-completion.Done(); ok {
		t.Error("completion should resolve exactly once")
	}
}

func TestCompletion_ResolveTwiceIsIgnored(t *testing.T) {
	c := NewCompletion()
	c.Resolve(PlayFinished, nil)
	c.Resolve(PlayFailed, errors.New("late"))

	res := <-c.Done()
	if res.Outcome != PlayFinished {
		t.Errorf("outcome = %v, want the first resolution", res.Outcome)
	}
}

func TestBuffer_AppendSnapshotClear(t *testing.T) {
	b := NewBuffer()
	b.Append([]float32{1, 2})
	b.Append([]float32{3})

	snap := b.Snapshot()
	if len(snap) != 3 || snap[2] != 3 {
		t.Errorf("snapshot = %v", snap)
	}
	if b.DurationSeconds(3) != 1.0 {
		t.Errorf("duration = %f, want 1.0", b.DurationSeconds(3))
	}

	b.Clear()
	if b.Len() != 0 {
		t.Errorf("len after clear = %d", b.Len())
	}
	// Snapshot taken before Clear is unaffected
	if snap[0] != 1 {
		t.Error("snapshot should be a copy")
	}
}
