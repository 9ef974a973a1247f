package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattjoyce/vestabridge/internal/tui"
)

func runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	apiURL := fs.String("api", "http://127.0.0.1:8000", "Base URL of the bridge API")
	apiKey := fs.String("api-key", os.Getenv("VESTABRIDGE_API_KEY"), "Bearer token with timers:ro")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if err := tui.Run(*apiURL, *apiKey); err != nil {
		fmt.Fprintf(os.Stderr, "Monitor error: %v\n", err)
		return 1
	}
	return 0
}
