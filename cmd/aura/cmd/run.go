// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     cmd
// Description: Wires and runs the voice client
// License:     MIT
// ============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.design/x/hotkey"
	"golang.design/x/hotkey/mainthread"

	"github.com/auralink/aura/internal/assistant"
	"github.com/auralink/aura/internal/assistant/audio"
	"github.com/auralink/aura/internal/assistant/device"
	"github.com/auralink/aura/internal/assistant/session"
	"github.com/auralink/aura/internal/assistant/store"
	"github.com/auralink/aura/internal/assistant/stt"
	"github.com/auralink/aura/internal/assistant/vad"
	"github.com/auralink/aura/pkg/core/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the voice client",
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		mainthread.Init(func() {
			err = runClient()
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runClient() error {
	cfg, err := assistant.LoadConfig(configPath())
	if err != nil {
		printError("failed to load config", err)
		return err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	logger := logging.New("aura")

	db, err := store.Open(store.Config{Path: filepath.Join(cfg.DataDir, "aura.db")})
	if err != nil {
		printError("failed to open store", err)
		return err
	}
	defer db.Close()

	// audio pipeline
	source, err := audio.NewMicSource(audio.MicConfig{
		SampleRate: cfg.SampleRate,
		BufferSize: cfg.BufferSize,
		DeviceName: cfg.InputDevice,
	})
	if err != nil {
		printError("failed to open microphone", err)
		return err
	}
	defer source.Close()
	player := audio.NewSpeakerPlayer()

	vadCfg := vad.Config{
		SampleRate:      cfg.SampleRate,
		EnergyThreshold: cfg.SilenceThreshold,
		SilenceDuration: time.Duration(cfg.SilenceDurationMs) * time.Millisecond,
	}
	var detector vad.Detector
	if cfg.VADEngine == "webrtc" {
		detector, err = vad.NewWebRTCVAD(vadCfg)
	} else {
		detector, err = vad.NewEnergyDetector(vadCfg)
	}
	if err != nil {
		printError("failed to create voice activity detector", err)
		return err
	}
	tracker := vad.NewSilenceTracker(vadCfg)

	recognizer := stt.NewHTTPRecognizer(stt.Config{
		BaseURL:        cfg.STTURL,
		Language:       cfg.Language,
		TimeoutSeconds: cfg.TimeoutSeconds,
	})

	engine := audio.NewEngine(audio.EngineConfig{
		Source:     source,
		Player:     player,
		Detector:   detector,
		Tracker:    tracker,
		Recognizer: recognizer,
	})
	defer engine.Close()

	// network session
	sess := session.NewManager(session.Config{Endpoint: cfg.ServerURL})
	queue := session.NewOfflineQueue()

	// peripheral
	devices := device.NewManager(device.Config{
		Radio:       device.NewAudioRadio(source),
		ScanTimeout: time.Duration(cfg.ScanTimeoutSec) * time.Second,
		Persist: func(history []device.Device) {
			if err := db.Put(store.KeyDeviceHistory, history); err != nil {
				logger.Warn("failed to persist device history", "error", err)
			}
		},
	})

	coord := assistant.NewCoordinator(assistant.Deps{
		Config:  cfg,
		Session: sess,
		Queue:   queue,
		Engine:  engine,
		Devices: devices,
		Store:   db,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.Start(ctx); err != nil {
		printError("failed to start", err)
		return err
	}

	if err := registerHotkey(coord, logger); err != nil {
		logger.Warn("failed to register hotkey", "error", err)
	}

	fmt.Printf("aura connected to %s\n", cfg.ServerURL)
	fmt.Printf("press %s to talk, Ctrl+C to quit\n", cfg.Shortcut)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	return coord.Stop()
}

// registerHotkey binds the push-to-talk shortcut. The hotkey library
// is known to crash on macOS, so activation there is left to the CLI.
func registerHotkey(coord *assistant.Coordinator, logger *logging.Logger) error {
	if runtime.GOOS == "darwin" {
		logger.Info("global hotkey disabled on macOS")
		return nil
	}

	hk := hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeySpace)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey: %w", err)
	}

	go func() {
		for range hk.Keydown() {
			toggleListening(coord, logger)
		}
	}()

	logger.Info("hotkey registered", "shortcut", "ctrl+shift+space")
	return nil
}

// toggleListening starts a turn from idle and finalizes one that is
// recording; any other state ignores the press
func toggleListening(coord *assistant.Coordinator, logger *logging.Logger) {
	switch coord.State() {
	case assistant.StateIdle:
		if err := coord.StartListening(); err != nil {
			logger.Warn("failed to start listening", "error", err)
		}
	case assistant.StateRecording:
		coord.StopListening()
	default:
		logger.Debug("activation ignored", "state", coord.State().String())
	}
}
