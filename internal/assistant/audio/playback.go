// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     audio
// Description: Speaker playback backed by PortAudio
// License:     MIT
// ============================================================================

package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Player renders a clip to the audio output. The portaudio
// implementation is the production player; tests use a scripted fake.
type Player interface {
	// Play renders the clip, returning when playback finishes, fails, or
	// the context is cancelled
	Play(ctx context.Context, clip Clip) error
}

// SpeakerPlayer plays clips through the default output via PortAudio
type SpeakerPlayer struct {
	mu      sync.Mutex
	playing bool
}

// NewSpeakerPlayer creates a speaker player
func NewSpeakerPlayer() *SpeakerPlayer {
	return &SpeakerPlayer{}
}

// Play renders the clip through the default output device
func (p *SpeakerPlayer) Play(ctx context.Context, clip Clip) error {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return fmt.Errorf("already playing")
	}
	p.playing = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	samples := PCMToFloats(clip.Samples)
	channels := clip.Channels
	if channels <= 0 {
		channels = 1
	}

	const bufferSize = 1024
	buffer := make([]float32, bufferSize)

	stream, err := portaudio.OpenDefaultStream(0, channels, float64(clip.SampleRate), bufferSize, &buffer)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer stream.Stop()

	for position := 0; position < len(samples); position += bufferSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for i := 0; i < bufferSize; i++ {
			if position+i < len(samples) {
				buffer[i] = samples[position+i]
			} else {
				buffer[i] = 0
			}
		}

		if err := stream.Write(); err != nil {
			return fmt.Errorf("failed to write to stream: %w", err)
		}
	}

	return nil
}

// IsPlaying reports whether a clip is currently being rendered
func (p *SpeakerPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
