package config

import "time"

// Config represents the complete vestabridge configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Device  DeviceConfig  `yaml:"device"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	State   StateConfig   `yaml:"state"`
	API     APIConfig     `yaml:"api,omitempty"`

	// SourcePath is the file the config was read from. Empty when built
	// from the environment alone.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// PIDFile guards against two bridges driving the same board.
	PIDFile string `yaml:"pid_file"`
}

// DeviceConfig selects the board transport and tunes the dispatcher.
type DeviceConfig struct {
	APIKey               string        `yaml:"api_key"`
	LocalAPIKey          string        `yaml:"local_api_key"`
	UseLocalAPI          bool          `yaml:"use_local_api"`
	LocalHost            string        `yaml:"local_host"`
	LocalPort            int           `yaml:"local_port"`
	BoardType            string        `yaml:"board_type"`
	MaxQueueSize         int           `yaml:"max_queue_size"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	QueueProcessingDelay time.Duration `yaml:"queue_processing_delay"`
	RestoreMargin        time.Duration `yaml:"restore_margin"`
}

// MQTTConfig defines the broker connection and topic layout.
type MQTTConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	TopicPrefix  string        `yaml:"topic_prefix"`
	ClientID     string        `yaml:"client_id"`
	CleanSession bool          `yaml:"clean_session"`
	KeepAlive    time.Duration `yaml:"keepalive"`
	QoS          int           `yaml:"qos"`
	TLS          TLSConfig     `yaml:"tls,omitempty"`
	LWT          *LWTConfig    `yaml:"lwt,omitempty"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CACerts  string `yaml:"ca_certs"`
	CertFile string `yaml:"certfile"`
	KeyFile  string `yaml:"keyfile"`
	// Insecure skips broker certificate verification.
	Insecure bool `yaml:"insecure"`
}

// LWTConfig is the broker-published last will.
type LWTConfig struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
	QoS     int    `yaml:"qos"`
	Retain  bool   `yaml:"retain"`
}

// StateConfig defines slot storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the single admin bearer token. Prefer Tokens for scoped
	// access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// ChecksumManifest is the .checksums file written by "config lock".
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns a Config with the defaults of a single-board install.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "vestabridge",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Device: DeviceConfig{
			LocalHost:            "vestaboard.local",
			LocalPort:            7000,
			BoardType:            "standard",
			MaxQueueSize:         10,
			WriteTimeout:         10 * time.Second,
			QueueProcessingDelay: 100 * time.Millisecond,
			RestoreMargin:        500 * time.Millisecond,
		},
		MQTT: MQTTConfig{
			Enabled:      true,
			Host:         "localhost",
			Port:         1883,
			TopicPrefix:  "vestaboard",
			CleanSession: true,
			KeepAlive:    60 * time.Second,
		},
		State: StateConfig{
			Path: "./data/slots.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8000",
		},
	}
}
