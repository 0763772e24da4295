// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     stt
// Description: HTTP recognizer client (whisper-server style)
// License:     MIT
// ============================================================================

package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HTTPRecognizer streams interim transcriptions by periodically posting
// the accumulated capture buffer to a whisper-style HTTP server. Each
// post re-transcribes the whole utterance, so later hypotheses supersede
// earlier ones. Network failures are logged by the caller via the absence
// of results, never surfaced as capture errors.
type HTTPRecognizer struct {
	mu         sync.Mutex
	baseURL    string
	language   string
	interval   time.Duration
	timeout    time.Duration
	client     *http.Client
	sampleRate int

	samples []float32
	results chan Result
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewHTTPRecognizer creates a recognizer client for the given endpoint
func NewHTTPRecognizer(cfg Config) *HTTPRecognizer {
	if cfg.IntervalMs <= 0 {
		cfg.IntervalMs = 2000
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 10
	}
	return &HTTPRecognizer{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		language: cfg.Language,
		interval: time.Duration(cfg.IntervalMs) * time.Millisecond,
		timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// Start begins a recognition session
func (r *HTTPRecognizer) Start(ctx context.Context, sampleRate int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("recognizer session already active")
	}

	// Probe the server so an unreachable recognizer is reported up front
	// and the engine can fall back to transcript-less capture
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("recognizer unreachable: %w", err)
	}
	resp.Body.Close()

	sessionCtx, sessionCancel := context.WithCancel(ctx)
	r.sampleRate = sampleRate
	r.samples = r.samples[:0]
	r.results = make(chan Result, 16)
	r.cancel = sessionCancel
	r.done = make(chan struct{})
	r.started = true

	go r.loop(sessionCtx)
	return nil
}

// Feed submits captured samples
func (r *HTTPRecognizer) Feed(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	r.samples = append(r.samples, samples...)
}

// Results streams partial and final hypotheses
func (r *HTTPRecognizer) Results() <-chan Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results
}

// Close ends the session. A last transcription of the full buffer is
// attempted and emitted as the final hypothesis.
func (r *HTTPRecognizer) Close() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	done := r.done
	r.started = false
	r.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (r *HTTPRecognizer) loop(ctx context.Context) {
	defer close(r.done)
	defer close(r.results)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final pass over whatever was captured
			if text, err := r.transcribe(context.Background()); err == nil && text != "" {
				r.emit(Result{Text: text, Final: true})
			}
			return
		case <-ticker.C:
			text, err := r.transcribe(ctx)
			if err != nil || text == "" {
				continue
			}
			r.emit(Result{Text: text})
		}
	}
}

func (r *HTTPRecognizer) emit(res Result) {
	select {
	case r.results <- res:
	default:
		// Drop when the consumer lags; a newer hypothesis follows anyway
	}
}

func (r *HTTPRecognizer) transcribe(ctx context.Context) (string, error) {
	r.mu.Lock()
	samples := make([]float32, len(r.samples))
	copy(samples, r.samples)
	rate := r.sampleRate
	r.mu.Unlock()

	// Below ~0.5s there is nothing useful to transcribe
	if len(samples) < rate/2 {
		return "", nil
	}

	wav := pcmToWAV(samples, rate)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wav); err != nil {
		return "", err
	}
	if r.language != "" {
		writer.WriteField("language", r.language)
	}
	writer.WriteField("response_format", "json")
	writer.Close()

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.baseURL+"/inference", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("recognizer returned %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return strings.TrimSpace(result.Text), nil
}

// pcmToWAV wraps float32 samples in a minimal 16-bit PCM WAV container
func pcmToWAV(samples []float32, sampleRate int) []byte {
	dataSize := uint32(len(samples) * 2)

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		binary.Write(buf, binary.LittleEndian, int16(s*32767))
	}

	return buf.Bytes()
}
