// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     audio
// Description: Microphone capture source backed by PortAudio
// License:     MIT
// ============================================================================

package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	// DefaultSampleRate is the default capture sample rate
	DefaultSampleRate = 16000

	// DefaultFramesPerBuffer is the default frame size per read
	DefaultFramesPerBuffer = 512
)

// Source supplies capture frames. The portaudio implementation is the
// production source; tests use a scripted fake.
type Source interface {
	// Start begins producing frames until the context is cancelled or
	// Stop is called
	Start(ctx context.Context) error

	// Frames returns the channel frames are delivered on
	Frames() <-chan []float32

	// Stop halts frame production
	Stop() error

	// Close releases the underlying device
	Close() error

	// SampleRate returns the source sample rate
	SampleRate() int
}

// MicSource captures microphone audio via PortAudio
type MicSource struct {
	mu          sync.RWMutex
	stream      *portaudio.Stream
	sampleRate  int
	bufferSize  int
	deviceName  string
	running     bool
	frames      chan []float32
	initialized bool
}

// MicConfig holds microphone capture configuration
type MicConfig struct {
	SampleRate int
	BufferSize int
	DeviceName string // empty = system default input
}

// NewMicSource creates a microphone source. PortAudio initialization
// failure here is the "microphone unavailable" capability error.
func NewMicSource(cfg MicConfig) (*MicSource, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultFramesPerBuffer
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &MicSource{
		sampleRate:  cfg.SampleRate,
		bufferSize:  cfg.BufferSize,
		deviceName:  cfg.DeviceName,
		frames:      make(chan []float32, 100),
		initialized: true,
	}, nil
}

// Start begins audio capture
func (m *MicSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("capture already running")
	}

	buffer := make([]float32, m.bufferSize)

	var stream *portaudio.Stream
	var err error

	if m.deviceName != "" && m.deviceName != "default" {
		device, findErr := findInputDevice(m.deviceName)
		if findErr != nil {
			// Fall back to the default input when the named device is gone
			stream, err = portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.bufferSize, buffer)
		} else {
			params := portaudio.StreamParameters{
				Input: portaudio.StreamDeviceParameters{
					Device:   device,
					Channels: 1,
					Latency:  device.DefaultLowInputLatency,
				},
				SampleRate:      float64(m.sampleRate),
				FramesPerBuffer: m.bufferSize,
			}
			stream, err = portaudio.OpenStream(params, buffer)
		}
	} else {
		stream, err = portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.bufferSize, buffer)
	}

	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	m.stream = stream
	m.running = true

	go m.captureLoop(ctx, buffer)
	return nil
}

func (m *MicSource) captureLoop(ctx context.Context, buffer []float32) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.mu.RLock()
		stream, running := m.stream, m.running
		m.mu.RUnlock()
		if !running || stream == nil {
			return
		}

		if err := stream.Read(); err != nil {
			m.mu.RLock()
			stillRunning := m.running
			m.mu.RUnlock()
			if !stillRunning {
				return
			}
			continue
		}

		samples := make([]float32, len(buffer))
		copy(samples, buffer)

		select {
		case m.frames <- samples:
		default:
			// Consumer is behind; drop the frame rather than block the device
		}
	}
}

// Frames returns the capture frame channel
func (m *MicSource) Frames() <-chan []float32 {
	return m.frames
}

// Stop halts capture and closes the stream
func (m *MicSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	if m.stream != nil {
		m.stream.Stop()
		if err := m.stream.Close(); err != nil {
			return fmt.Errorf("failed to close audio stream: %w", err)
		}
		m.stream = nil
	}
	return nil
}

// Close releases the device
func (m *MicSource) Close() error {
	if err := m.Stop(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		if err := portaudio.Terminate(); err != nil {
			return fmt.Errorf("failed to terminate PortAudio: %w", err)
		}
		m.initialized = false
	}
	return nil
}

// SampleRate returns the capture sample rate
func (m *MicSource) SampleRate() int {
	return m.sampleRate
}

// SetDeviceName selects the input device for future captures
func (m *MicSource) SetDeviceName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceName = name
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("input device not found: %s", name)
}

// InputDeviceInfo describes an available input device
type InputDeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// ListInputDevices returns the available audio input devices
func ListInputDevices() ([]InputDeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	defaultInput, _ := portaudio.DefaultInputDevice()
	var defaultName string
	if defaultInput != nil {
		defaultName = defaultInput.Name
	}

	var out []InputDeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			out = append(out, InputDeviceInfo{
				Name:              dev.Name,
				MaxInputChannels:  dev.MaxInputChannels,
				DefaultSampleRate: dev.DefaultSampleRate,
				IsDefault:         dev.Name == defaultName,
			})
		}
	}
	return out, nil
}
