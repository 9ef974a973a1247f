package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"github.com/mattjoyce/vestabridge/internal/api"
	"github.com/mattjoyce/vestabridge/internal/bridge"
	"github.com/mattjoyce/vestabridge/internal/clock"
	"github.com/mattjoyce/vestabridge/internal/config"
	"github.com/mattjoyce/vestabridge/internal/device"
	"github.com/mattjoyce/vestabridge/internal/dispatch"
	"github.com/mattjoyce/vestabridge/internal/events"
	"github.com/mattjoyce/vestabridge/internal/lock"
	"github.com/mattjoyce/vestabridge/internal/log"
	"github.com/mattjoyce/vestabridge/internal/mqtt"
	"github.com/mattjoyce/vestabridge/internal/queue"
	"github.com/mattjoyce/vestabridge/internal/scheduler"
	"github.com/mattjoyce/vestabridge/internal/service"
	"github.com/mattjoyce/vestabridge/internal/state"
	"github.com/mattjoyce/vestabridge/internal/storage"
)

// loadConfig resolves the config the way every command does: with --env the
// file is optional and the environment is applied on top; without it a file
// is required and is discovered when no path is given.
func loadConfig(configPath string, useEnv bool) (*config.Config, error) {
	if useEnv {
		return config.LoadWithEnv(configPath)
	}
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", configPath)
	}
	return config.Load(configPath)
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	useEnv := fs.Bool("env", false, "Apply environment variable overrides")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath, *useEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("vestabridge starting", "version", version, "config", cfg.SourcePath)

	dev, err := device.New(deviceConfig(cfg))
	if err != nil {
		logger.Error("failed to configure board transport", "error", err)
		return 1
	}

	pidLockPath := pidLockPath(cfg, dev)
	pidLock, err := lock.AcquirePIDLock(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.State.Path)

	clk := clock.Real()
	hub := events.NewHub(0, clk)
	svc := service.New(serviceConfig(cfg), dev, state.NewStore(db, clk), clk, hub)
	logger.Info("board ready", "board", svc.String())

	var bus *mqtt.Client
	if cfg.MQTT.Enabled {
		bus, err = mqtt.New(mqttConfig(cfg))
		if err != nil {
			logger.Error("failed to configure MQTT client", "error", err)
			return 1
		}
		br := bridge.New(cfg.MQTT.TopicPrefix, bus, svc, clk)
		if err := br.Start(ctx); err != nil {
			logger.Error("failed to subscribe bridge topics", "error", err)
			return 1
		}
		// Subscriptions are recorded before connecting; the client replays
		// them on every (re)connect.
		if err := bus.Connect(ctx); err != nil {
			logger.Error("failed to connect to MQTT broker", "host", cfg.MQTT.Host, "port", cfg.MQTT.Port, "error", err)
			return 1
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)

	if cfg.API.Enabled {
		var ready api.Readiness
		if bus != nil {
			ready = bus
		}
		apiServer := api.New(apiConfig(cfg), svc, ready, hub, clk, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("vestabridge running (press Ctrl+C to stop)")

	code := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		code = 1
	}

	// Timers are dropped without restoring, then the queue is drained,
	// then the bus goes away.
	cancel()
	svc.Shutdown()
	if bus != nil {
		bus.Disconnect()
	}

	logger.Info("vestabridge stopped")
	return code
}

func deviceConfig(cfg *config.Config) device.Config {
	return device.Config{
		APIKey:      cfg.Device.APIKey,
		LocalAPIKey: cfg.Device.LocalAPIKey,
		UseLocalAPI: cfg.Device.UseLocalAPI,
		LocalHost:   cfg.Device.LocalHost,
		LocalPort:   cfg.Device.LocalPort,
		BoardType:   cfg.Device.BoardType,
		Timeout:     cfg.Device.WriteTimeout,
	}
}

func serviceConfig(cfg *config.Config) service.Config {
	return service.Config{
		Dispatch: dispatch.Config{
			Queue: queue.Config{
				Capacity:     cfg.Device.MaxQueueSize,
				ProcessDelay: cfg.Device.QueueProcessingDelay,
			},
			WriteTimeout: cfg.Device.WriteTimeout,
		},
		Scheduler: scheduler.Config{
			RestoreMargin: cfg.Device.RestoreMargin,
		},
	}
}

func mqttConfig(cfg *config.Config) mqtt.Config {
	m := cfg.MQTT
	clientID := m.ClientID
	if clientID == "" {
		clientID = "vestabridge-" + uuid.NewString()[:8]
	}
	out := mqtt.Config{
		Host:         m.Host,
		Port:         m.Port,
		Username:     m.Username,
		Password:     m.Password,
		ClientID:     clientID,
		CleanSession: m.CleanSession,
		KeepAlive:    m.KeepAlive,
		QoS:          byte(m.QoS),
		TLS: mqtt.TLSConfig{
			Enabled:  m.TLS.Enabled,
			CACerts:  m.TLS.CACerts,
			CertFile: m.TLS.CertFile,
			KeyFile:  m.TLS.KeyFile,
			Insecure: m.TLS.Insecure,
		},
	}
	if m.LWT != nil {
		out.LWT = &mqtt.LWTConfig{
			Topic:   m.LWT.Topic,
			Payload: m.LWT.Payload,
			QoS:     byte(m.LWT.QoS),
			Retain:  m.LWT.Retain,
		}
	}
	return out
}

func apiConfig(cfg *config.Config) api.Config {
	return api.Config{
		Listen: cfg.API.Listen,
		APIKey: cfg.API.Auth.APIKey,
		Tokens: cfg.API.Auth.AuthTokens(),
	}
}

// pidLockPath keys the lock on the board so two bridges never drive the
// same device. service.pid_file overrides it.
func pidLockPath(cfg *config.Config, dev device.Client) string {
	if cfg.Service.PIDFile != "" {
		return cfg.Service.PIDFile
	}
	key := dev.Name()
	if key == "local" {
		key = net.JoinHostPort(cfg.Device.LocalHost, strconv.Itoa(cfg.Device.LocalPort))
	}
	return lock.PathFor(filepath.Dir(cfg.State.Path), key)
}
