package main

import (
	"os"

	"github.com/auralink/aura/cmd/aura/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
