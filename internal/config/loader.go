package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/vestabridge/internal/auth"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ConfigFileName is looked up inside a directory passed as the config path.
const ConfigFileName = "config.yaml"

// Load reads, verifies and validates a config file. A directory is taken to
// contain config.yaml.
func Load(configPath string) (*Config, error) {
	cfg, err := loadFile(configPath)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadWithEnv is Load followed by the environment overrides. With an empty
// path the config is built from Defaults and the environment alone.
func LoadWithEnv(configPath string) (*Config, error) {
	cfg := Defaults()
	if configPath != "" {
		var err error
		if cfg, err = loadFile(configPath); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg = applyConfigDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ResolvePath turns a file or directory argument into the absolute path of
// the config file.
func ResolvePath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, ConfigFileName)
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but %s not found: %s", ConfigFileName, absPath)
		}
	}
	return absPath, nil
}

func loadFile(configPath string) (*Config, error) {
	absPath, err := ResolvePath(configPath)
	if err != nil {
		return nil, err
	}
	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Unmarshal over the defaults so absent keys keep them, booleans included.
	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.SourcePath = absPath
	return cfg, nil
}

// verifyConfigHash checks path against the .checksums manifest beside it.
// A directory without a manifest is not verified.
func verifyConfigHash(path string) error {
	dir := filepath.Dir(path)
	checksums, err := LoadChecksums(dir)
	if err != nil {
		if errors.Is(err, ErrNoChecksums) {
			return nil
		}
		return err
	}

	basename := filepath.Base(path)
	expectedHash, ok := checksums.Hashes[basename]
	if !ok {
		return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
			"Run: vestabridge config lock --config %s", basename, dir, path)
	}
	if err := VerifyFileHash(path, expectedHash); err != nil {
		return fmt.Errorf("config verification failed for %s: %w\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: vestabridge config lock --config %s", path, err, path)
	}
	return nil
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $VESTABRIDGE_CONFIG, ~/.config/vestabridge/config.yaml,
// /etc/vestabridge/config.yaml, ./config.yaml
func DiscoverConfigPath() (string, error) {
	var candidates []string
	if p := os.Getenv("VESTABRIDGE_CONFIG"); p != "" {
		candidates = append(candidates, p)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "vestabridge", ConfigFileName))
	}
	candidates = append(candidates,
		filepath.Join("/etc", "vestabridge", ConfigFileName),
		ConfigFileName,
	)

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config found (checked: $VESTABRIDGE_CONFIG, ~/.config/vestabridge, /etc/vestabridge, ./config.yaml)")
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg from the environment variables a container
// deployment sets. Unset variables leave the field alone.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("VESTABOARD_API_KEY", &cfg.Device.APIKey)
	e.str("VESTABOARD_LOCAL_API_KEY", &cfg.Device.LocalAPIKey)
	e.boolean("USE_LOCAL_API", &cfg.Device.UseLocalAPI)
	e.str("VESTABOARD_LOCAL_HOST", &cfg.Device.LocalHost)
	e.integer("VESTABOARD_LOCAL_PORT", &cfg.Device.LocalPort)
	e.str("VESTABOARD_BOARD_TYPE", &cfg.Device.BoardType)
	e.integer("MAX_QUEUE_SIZE", &cfg.Device.MaxQueueSize)

	e.str("MQTT_BROKER_HOST", &cfg.MQTT.Host)
	e.integer("MQTT_BROKER_PORT", &cfg.MQTT.Port)
	e.str("MQTT_USERNAME", &cfg.MQTT.Username)
	e.str("MQTT_PASSWORD", &cfg.MQTT.Password)
	e.str("MQTT_TOPIC_PREFIX", &cfg.MQTT.TopicPrefix)
	e.str("MQTT_CLIENT_ID", &cfg.MQTT.ClientID)
	e.boolean("MQTT_CLEAN_SESSION", &cfg.MQTT.CleanSession)
	e.seconds("MQTT_KEEPALIVE", &cfg.MQTT.KeepAlive)
	e.integer("MQTT_QOS", &cfg.MQTT.QoS)

	e.boolean("MQTT_TLS_ENABLED", &cfg.MQTT.TLS.Enabled)
	e.str("MQTT_TLS_CA_CERTS", &cfg.MQTT.TLS.CACerts)
	e.str("MQTT_TLS_CERTFILE", &cfg.MQTT.TLS.CertFile)
	e.str("MQTT_TLS_KEYFILE", &cfg.MQTT.TLS.KeyFile)
	e.boolean("MQTT_TLS_INSECURE", &cfg.MQTT.TLS.Insecure)

	if topic, ok := lookup("MQTT_LWT_TOPIC"); ok && topic != "" {
		if cfg.MQTT.LWT == nil {
			cfg.MQTT.LWT = &LWTConfig{Payload: "offline", Retain: true}
		}
		cfg.MQTT.LWT.Topic = topic
	}
	if cfg.MQTT.LWT != nil {
		e.str("MQTT_LWT_PAYLOAD", &cfg.MQTT.LWT.Payload)
		e.integer("MQTT_LWT_QOS", &cfg.MQTT.LWT.QoS)
		e.boolean("MQTT_LWT_RETAIN", &cfg.MQTT.LWT.Retain)
	}

	if port, ok := lookup("HTTP_PORT"); ok && port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			e.fail("HTTP_PORT", port, err)
		} else {
			cfg.API.Enabled = true
			cfg.API.Listen = net.JoinHostPort("0.0.0.0", strconv.Itoa(n))
		}
	}
	e.str("VESTABRIDGE_API_KEY", &cfg.API.Auth.APIKey)
	if level, ok := lookup("LOG_LEVEL"); ok && level != "" {
		cfg.Service.LogLevel = normalizeLogLevel(level)
	}

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok && v != "" {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) seconds(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = time.Duration(n) * time.Second
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.lookup(key); ok && v != "" {
		*dst = ParseBool(v)
	}
}

// ParseBool treats true, 1, yes and on (any case) as true and everything
// else as false.
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// normalizeLogLevel maps the conventional upper-case level names onto the
// four levels the logger knows.
func normalizeLogLevel(level string) string {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "warning":
		return "warn"
	case "critical", "fatal":
		return "error"
	default:
		return l
	}
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	cfg.Service.LogLevel = normalizeLogLevel(cfg.Service.LogLevel)
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}

	if cfg.Device.BoardType == "" {
		cfg.Device.BoardType = defaults.Device.BoardType
	}
	cfg.Device.BoardType = strings.ToLower(cfg.Device.BoardType)
	if cfg.Device.LocalHost == "" {
		cfg.Device.LocalHost = defaults.Device.LocalHost
	}
	if cfg.Device.LocalPort == 0 {
		cfg.Device.LocalPort = defaults.Device.LocalPort
	}
	if cfg.Device.WriteTimeout == 0 {
		cfg.Device.WriteTimeout = defaults.Device.WriteTimeout
	}

	if cfg.MQTT.Host == "" {
		cfg.MQTT.Host = defaults.MQTT.Host
	}
	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = defaults.MQTT.Port
	}
	cfg.MQTT.TopicPrefix = strings.TrimRight(cfg.MQTT.TopicPrefix, "/")
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = defaults.MQTT.TopicPrefix
	}
	if cfg.MQTT.KeepAlive == 0 {
		cfg.MQTT.KeepAlive = defaults.MQTT.KeepAlive
	}
	if cfg.MQTT.LWT != nil && cfg.MQTT.LWT.Payload == "" {
		cfg.MQTT.LWT.Payload = "offline"
	}

	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	return cfg
}

func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place; validate reports it if the field matters.
		return match
	})
}

// unresolved returns an error naming the ${VAR} left in value, if any.
func unresolved(field, value string) error {
	if m := envVarPattern.FindStringSubmatch(value); len(m) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, m[1])
	}
	return nil
}

func validPort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535 (got %d)", field, port)
	}
	return nil
}

func validQoS(field string, qos int) error {
	if qos < 0 || qos > 2 {
		return fmt.Errorf("%s must be 0, 1 or 2 (got %d)", field, qos)
	}
	return nil
}

func validate(cfg *Config) error {
	// Service validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if err := validateDevice(&cfg.Device); err != nil {
		return err
	}
	if cfg.MQTT.Enabled {
		if err := validateMQTT(&cfg.MQTT); err != nil {
			return err
		}
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	if cfg.API.Enabled {
		if err := validateAPI(&cfg.API); err != nil {
			return err
		}
	}
	return nil
}

func validateDevice(d *DeviceConfig) error {
	if d.APIKey == "" && d.LocalAPIKey == "" {
		return fmt.Errorf("device: at least one of api_key or local_api_key must be set")
	}
	if err := unresolved("device.api_key", d.APIKey); err != nil {
		return err
	}
	if err := unresolved("device.local_api_key", d.LocalAPIKey); err != nil {
		return err
	}
	if d.UseLocalAPI && d.LocalAPIKey == "" {
		return fmt.Errorf("device.use_local_api requires device.local_api_key")
	}
	if !d.UseLocalAPI && d.APIKey == "" {
		return fmt.Errorf("device.api_key is required unless device.use_local_api is set")
	}
	if d.BoardType != "standard" && d.BoardType != "note" {
		return fmt.Errorf("device.board_type must be standard or note (got %q)", d.BoardType)
	}
	if err := validPort("device.local_port", d.LocalPort); err != nil {
		return err
	}
	if d.MaxQueueSize < 1 {
		return fmt.Errorf("device.max_queue_size must be at least 1 (got %d)", d.MaxQueueSize)
	}
	if d.WriteTimeout <= 0 {
		return fmt.Errorf("device.write_timeout must be positive")
	}
	if d.QueueProcessingDelay < 0 || d.RestoreMargin < 0 {
		return fmt.Errorf("device.queue_processing_delay and device.restore_margin must not be negative")
	}
	return nil
}

func validateMQTT(m *MQTTConfig) error {
	if strings.TrimSpace(m.Host) == "" {
		return fmt.Errorf("mqtt.host is required")
	}
	if err := validPort("mqtt.port", m.Port); err != nil {
		return err
	}
	if err := validQoS("mqtt.qos", m.QoS); err != nil {
		return err
	}
	if m.KeepAlive < time.Second {
		return fmt.Errorf("mqtt.keepalive must be at least 1s")
	}
	if strings.ContainsAny(m.TopicPrefix, "+#") {
		return fmt.Errorf("mqtt.topic_prefix must not contain wildcards (got %q)", m.TopicPrefix)
	}
	if err := unresolved("mqtt.password", m.Password); err != nil {
		return err
	}

	if m.TLS.Enabled {
		if m.TLS.CACerts == "" {
			return fmt.Errorf("mqtt.tls.ca_certs is required when TLS is enabled")
		}
		if (m.TLS.CertFile == "") != (m.TLS.KeyFile == "") {
			return fmt.Errorf("mqtt.tls.certfile and mqtt.tls.keyfile must be set together")
		}
		for field, path := range map[string]string{
			"mqtt.tls.ca_certs": m.TLS.CACerts,
			"mqtt.tls.certfile": m.TLS.CertFile,
			"mqtt.tls.keyfile":  m.TLS.KeyFile,
		} {
			if path == "" {
				continue
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("%s: file not found: %s", field, path)
			}
		}
	}

	if m.LWT != nil {
		if m.LWT.Topic == "" {
			return fmt.Errorf("mqtt.lwt.topic is required when lwt is set")
		}
		if err := validQoS("mqtt.lwt.qos", m.LWT.QoS); err != nil {
			return err
		}
	}
	return nil
}

func validateAPI(a *APIConfig) error {
	if a.Listen == "" {
		return fmt.Errorf("api.listen is required")
	}
	if a.Auth.APIKey == "" && len(a.Auth.Tokens) == 0 {
		return fmt.Errorf("api.auth: api_key or tokens required when the API is enabled")
	}
	if err := unresolved("api.auth.api_key", a.Auth.APIKey); err != nil {
		return err
	}
	for i, tok := range a.Auth.Tokens {
		field := fmt.Sprintf("api.auth.tokens[%d]", i)
		if tok.Token == "" {
			return fmt.Errorf("%s.token is required", field)
		}
		if err := unresolved(field+".token", tok.Token); err != nil {
			return err
		}
		if len(tok.Scopes) == 0 {
			return fmt.Errorf("%s.scopes must be non-empty", field)
		}
		for _, scope := range tok.Scopes {
			if !knownScope(scope) {
				return fmt.Errorf("%s: unknown scope %q", field, scope)
			}
		}
	}
	return nil
}

func knownScope(scope string) bool {
	if scope == "*" {
		return true
	}
	for _, res := range auth.Resources {
		if scope == auth.Read(res) || scope == auth.Write(res) {
			return true
		}
	}
	return false
}

// AuthTokens converts the configured tokens for the auth package.
func (a APIAuthConfig) AuthTokens() []auth.TokenConfig {
	out := make([]auth.TokenConfig, 0, len(a.Tokens))
	for _, t := range a.Tokens {
		out = append(out, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
	}
	return out
}
