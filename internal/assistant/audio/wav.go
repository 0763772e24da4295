// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     audio
// Description: Transportable clip container (16-bit PCM WAV)
// License:     MIT
// ============================================================================

package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Clip is the self-describing audio unit exchanged between capture,
// playback, and the remote assistant. On the wire it is a standard
// 16-bit PCM WAV container.
type Clip struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// wavHeader is the canonical 44-byte RIFF/WAVE header for PCM data
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // payload bytes
}

// Duration returns the clip length
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(float64(frames) / float64(c.SampleRate) * float64(time.Second))
}

// Encode serializes the clip into WAV bytes
func (c Clip) Encode() ([]byte, error) {
	if len(c.Samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty clip")
	}
	if c.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	channels := c.Channels
	if channels <= 0 {
		channels = 1
	}

	const bitsPerSample = 16
	dataSize := uint32(len(c.Samples) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(c.SampleRate),
		ByteRate:      uint32(c.SampleRate) * uint32(channels) * bitsPerSample / 8,
		BlockAlign:    uint16(channels) * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(c.Samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, c.Samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeClip parses WAV bytes back into a clip
func DecodeClip(data []byte) (Clip, error) {
	if len(data) < 44 {
		return Clip{}, fmt.Errorf("WAV data too short: need at least 44 bytes, got %d", len(data))
	}

	var header wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return Clip{}, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" {
		return Clip{}, fmt.Errorf("invalid WAV: missing RIFF header")
	}
	if string(header.Format[:]) != "WAVE" {
		return Clip{}, fmt.Errorf("invalid WAV: missing WAVE format")
	}
	if string(header.Subchunk1ID[:]) != "fmt " {
		return Clip{}, fmt.Errorf("invalid WAV: missing fmt chunk")
	}
	if string(header.Subchunk2ID[:]) != "data" {
		return Clip{}, fmt.Errorf("invalid WAV: missing data chunk")
	}
	if header.AudioFormat != 1 {
		return Clip{}, fmt.Errorf("unsupported audio format %d (only PCM)", header.AudioFormat)
	}
	if header.BitsPerSample != 16 {
		return Clip{}, fmt.Errorf("unsupported bit depth %d (only 16-bit)", header.BitsPerSample)
	}

	numSamples := int(header.Subchunk2Size) / 2
	if numSamples <= 0 {
		return Clip{}, fmt.Errorf("no audio data found")
	}
	if 44+numSamples*2 > len(data) {
		return Clip{}, fmt.Errorf("truncated WAV: header claims %d bytes of data", header.Subchunk2Size)
	}

	samples := make([]int16, numSamples)
	if err := binary.Read(bytes.NewReader(data[44:]), binary.LittleEndian, samples); err != nil {
		return Clip{}, fmt.Errorf("failed to read audio samples: %w", err)
	}

	return Clip{
		SampleRate: int(header.SampleRate),
		Channels:   int(header.NumChannels),
		Samples:    samples,
	}, nil
}

// FloatsToPCM converts normalized float32 samples to 16-bit PCM, clamping
// out-of-range values
func FloatsToPCM(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// PCMToFloats converts 16-bit PCM samples to normalized float32
func PCMToFloats(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
