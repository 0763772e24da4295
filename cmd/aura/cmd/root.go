// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     cmd
// Description: CLI entry points
// License:     MIT
// ============================================================================

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "aura",
	Short: "aura - hands-free conversational voice client",
	Long: `aura is a hands-free voice client for a remote conversational
assistant. It records speech, detects when you stop talking, ships the
clip over a persistent connection, and plays the reply back.

Commands:
  run      - start the client
  devices  - list audio input devices
  version  - print version information`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.aura/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configPath resolves the config file location
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".aura", "config.yaml")
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
}
