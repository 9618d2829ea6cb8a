package main

import (
	"log/slog"
	"os"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("passgen", "error", err)
		os.Exit(1)
	}
}
