// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     cmd
// Description: Configuration management
// License:     MIT
// ============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/auralink/aura/internal/assistant"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}
		if err := assistant.SaveConfig(path, assistant.DefaultConfig()); err != nil {
			printError("failed to write config", err)
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := assistant.LoadConfig(configPath())
		if err != nil {
			printError("failed to load config", err)
			return err
		}
		fmt.Printf("server:    %s\n", cfg.ServerURL)
		fmt.Printf("stt:       %s\n", cfg.STTURL)
		fmt.Printf("input:     %s @ %d Hz\n", cfg.InputDevice, cfg.SampleRate)
		fmt.Printf("vad:       %s (threshold %.3f, silence %d ms)\n", cfg.VADEngine, cfg.SilenceThreshold, cfg.SilenceDurationMs)
		fmt.Printf("listen:    auto=%v shortcut=%s\n", cfg.AutoListen, cfg.Shortcut)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
