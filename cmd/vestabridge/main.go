package main

import (
	"fmt"
	"os"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	// --- NOUNS ---
	case "system":
		os.Exit(runSystemNoun(args))
	case "config":
		os.Exit(runConfigNoun(args))

	// --- ROOT COMMANDS ---
	case "start":
		os.Exit(runStart(args))
	case "monitor":
		os.Exit(runMonitor(args))
	case "version":
		fmt.Printf("vestabridge version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`vestabridge - rate-limited Vestaboard dispatcher with timed restores

Usage:
  vestabridge <noun> <action> [flags]

System Commands:
  system start      Run the bridge in the foreground

Config Commands:
  config check      Validate configuration and integrity
  config lock       Authorize the current config file (update integrity hash)
  config show       Print the resolved configuration (secrets redacted)

General:
  monitor           Live terminal view of a running bridge
  version           Show version information
  help              Show this help message

Use 'vestabridge <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printSystemStartHelp()
			return 0
		}
		return runStart(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: vestabridge system <action>")
	fmt.Fprintln(w, "Actions: start")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: vestabridge config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock, show")
}

func printSystemStartHelp() {
	fmt.Println("Usage: vestabridge system start [--config PATH] [--env]")
	fmt.Println("Run the bridge in the foreground. --env applies environment overrides;")
	fmt.Println("with --env and no --config the bridge runs from the environment alone.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: vestabridge config lock [--config PATH] [-v|--verbose] [--dry-run]")
	fmt.Println("Authorize the current config file by regenerating its integrity hash.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: vestabridge config check [--config PATH] [--env] [--json]")
	fmt.Println("Validate configuration syntax, policy and integrity.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: vestabridge config show [--config PATH] [--env] [--json]")
	fmt.Println("Show the resolved configuration with secrets redacted.")
}
