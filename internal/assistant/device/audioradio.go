// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     device
// Description: Radio backed by the host audio device list
// License:     MIT
// ============================================================================

package device

import (
	"context"
	"fmt"

	"github.com/auralink/aura/internal/assistant/audio"
)

// Routable receives the name of the audio device to capture from. The
// microphone source implements it.
type Routable interface {
	SetDeviceName(name string)
}

// AudioRadio discovers host audio input devices and routes the capture
// source to the connected one. It stands in for a wireless radio on
// hosts where the peripheral is paired at the OS level and shows up as
// a sound device.
type AudioRadio struct {
	route Routable
}

// NewAudioRadio creates an audio-device radio. route may be nil when
// discovery alone is wanted.
func NewAudioRadio(route Routable) *AudioRadio {
	return &AudioRadio{route: route}
}

// Scan streams the host's input devices. The list is a point-in-time
// enumeration, so the stream closes as soon as it is exhausted.
func (r *AudioRadio) Scan(ctx context.Context) (<-chan Device, error) {
	infos, err := audio.ListInputDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate input devices: %w", err)
	}

	out := make(chan Device, len(infos))
	go func() {
		defer close(out)
		for _, info := range infos {
			d := Device{
				ID:          info.Name,
				DisplayName: info.Name,
			}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Connect routes capture to the named device
func (r *AudioRadio) Connect(ctx context.Context, id string) (Device, error) {
	infos, err := audio.ListInputDevices()
	if err != nil {
		return Device{}, fmt.Errorf("failed to enumerate input devices: %w", err)
	}
	for _, info := range infos {
		if info.Name == id {
			if r.route != nil {
				r.route.SetDeviceName(id)
			}
			return Device{ID: id, DisplayName: id}, nil
		}
	}
	return Device{}, ErrDeviceNotFound
}

// Disconnect routes capture back to the default device
func (r *AudioRadio) Disconnect(id string) error {
	if r.route != nil {
		r.route.SetDeviceName("")
	}
	return nil
}
