package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/vestabridge/internal/config"
)

const redactedValue = "********"

// checkResult is the --json output of "config check".
type checkResult struct {
	Valid  bool   `json:"valid"`
	Source string `json:"source,omitempty"`
	Error  string `json:"error,omitempty"`
}

func runConfigCheck(args []string) int {
	var configPath string
	var useEnv, jsonOut bool

	fs := flag.NewFlagSet("check", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&useEnv, "env", false, "Apply environment variable overrides")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(configPath, useEnv)
	result := checkResult{Valid: err == nil}
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Source = cfg.SourcePath
	}

	if jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else if result.Valid {
		source := result.Source
		if source == "" {
			source = "environment"
		}
		fmt.Printf("Configuration OK (%s)\n", source)
	} else {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %s\n", result.Error)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runConfigLock(args []string) int {
	var configPath string
	var verbose, verboseShort, dryRun bool

	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&verboseShort, "v", false, "Verbose output")
	fs.BoolVar(&dryRun, "dry-run", false, "Dry run")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		configPath = discovered
	}

	report, err := config.Lock(configPath, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}

	if verbose || verboseShort {
		fmt.Printf("Processing directory: %s\n", report.ConfigDir)
		for _, file := range report.Files {
			fmt.Printf("  HASH %s: %s\n", file.Filename, file.Hash)
		}
	}
	if dryRun {
		fmt.Printf("Dry run: %s not written\n", report.ChecksumPath)
	} else {
		fmt.Printf("Successfully locked configuration: %s\n", report.ChecksumPath)
	}
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	useEnv := fs.Bool("env", false, "Apply environment variable overrides")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath, *useEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	shown := redact(cfg)

	if *jsonOut {
		data, _ := json.MarshalIndent(shown, "", "  ")
		fmt.Println(string(data))
	} else {
		data, _ := yaml.Marshal(shown)
		fmt.Print(string(data))
	}
	return 0
}

// redact returns a copy of cfg with every credential masked.
func redact(cfg *config.Config) *config.Config {
	out := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redactedValue
	}

	out.Device.APIKey = mask(cfg.Device.APIKey)
	out.Device.LocalAPIKey = mask(cfg.Device.LocalAPIKey)
	out.MQTT.Password = mask(cfg.MQTT.Password)
	out.API.Auth.APIKey = mask(cfg.API.Auth.APIKey)
	out.API.Auth.Tokens = make([]config.APIToken, len(cfg.API.Auth.Tokens))
	for i, t := range cfg.API.Auth.Tokens {
		out.API.Auth.Tokens[i] = config.APIToken{Token: mask(t.Token), Scopes: t.Scopes}
	}
	return &out
}
