// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     assistant
// Description: Client configuration
// License:     MIT
// ============================================================================

package assistant

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the client configuration
type Config struct {
	// General
	LogLevel string `yaml:"log_level"`
	DataDir  string `yaml:"data_dir"`

	// Identity
	UserID   string `yaml:"user_id"`
	UserName string `yaml:"user_name"`
	Voice    string `yaml:"voice"`
	Language string `yaml:"language"`

	// Server
	ServerURL      string `yaml:"server_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	// Activation
	Shortcut   string `yaml:"shortcut"`
	AutoListen bool   `yaml:"auto_listen"`

	// Audio
	InputDevice  string `yaml:"input_device"`
	OutputDevice string `yaml:"output_device"`
	SampleRate   int    `yaml:"sample_rate"`
	BufferSize   int    `yaml:"buffer_size"`

	// Silence detection
	VADEngine         string  `yaml:"vad_engine"` // "energy", "webrtc"
	SilenceThreshold  float64 `yaml:"silence_threshold"`
	SilenceDurationMs int     `yaml:"silence_duration_ms"`

	// Speech recognition
	STTURL string `yaml:"stt_url"`

	// Peripheral
	RequireDevice     bool `yaml:"require_device"`
	AutoConnectDevice bool `yaml:"auto_connect_device"`
	ScanTimeoutSec    int  `yaml:"scan_timeout_sec"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()

	return Config{
		LogLevel: "info",
		DataDir:  filepath.Join(homeDir, ".aura"),

		UserID:   "",
		UserName: "user",
		Voice:    "nova",
		Language: "en",

		ServerURL:      "ws://localhost:8900/chat",
		TimeoutSeconds: 30,

		Shortcut:   "ctrl+shift+space",
		AutoListen: true,

		InputDevice:  "default",
		OutputDevice: "default",
		SampleRate:   16000,
		BufferSize:   512,

		VADEngine:         "energy",
		SilenceThreshold:  0.015,
		SilenceDurationMs: 2000,

		STTURL: "http://localhost:8000",

		RequireDevice:     false,
		AutoConnectDevice: true,
		ScanTimeoutSec:    10,
	}
}

// LoadConfig reads a YAML config file, layering it over the defaults.
// A missing file is not an error; the defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration as YAML
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
