// Package mqtt wraps the paho client with the connection settings the
// bridge needs and keeps subscriptions alive across reconnects.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/mattjoyce/vestabridge/internal/log"
)

const (
	DefaultPort       = 1883
	DefaultKeepAlive  = 60 * time.Second
	connectTimeout    = 30 * time.Second
	disconnectQuiesce = 250 // ms
)

type TLSConfig struct {
	Enabled  bool
	CACerts  string
	CertFile string
	KeyFile  string
	Insecure bool
}

// LWTConfig is the last will published by the broker if the bridge drops
// off without disconnecting.
type LWTConfig struct {
	Topic   string
	Payload string
	QoS     byte
	Retain  bool
}

type Config struct {
	Host         string
	Port         int
	Username     string
	Password     string
	ClientID     string
	CleanSession bool
	KeepAlive    time.Duration
	QoS          byte
	TLS          TLSConfig
	LWT          *LWTConfig
}

// Handler receives one message. Handlers run on paho's delivery goroutine.
type Handler func(topic string, payload []byte)

type Client struct {
	cfg    Config
	client paho.Client
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]Handler
}

// New builds a client without connecting.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("mqtt host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", cfg.QoS)
	}

	c := &Client{
		cfg:    cfg,
		logger: log.WithComponent("mqtt"),
		subs:   make(map[string]Handler),
	}

	scheme := "tcp"
	opts := paho.NewClientOptions()
	if cfg.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		if cfg.TLS.Insecure {
			c.logger.Warn("TLS certificate verification disabled")
		}
		opts.SetTLSConfig(tlsCfg)
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(cfg.CleanSession)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOrderMatters(false)
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.LWT != nil && cfg.LWT.Topic != "" {
		opts.SetWill(cfg.LWT.Topic, cfg.LWT.Payload, cfg.LWT.QoS, cfg.LWT.Retain)
	}
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.logger.Warn("connection to broker lost", "error", err)
	})
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		c.logger.Info("reconnecting to broker")
	})

	c.client = paho.NewClient(opts)
	return c, nil
}

func buildTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.Insecure, //nolint:gosec // operator opt-in
	}

	if cfg.CACerts != "" {
		pem, err := os.ReadFile(cfg.CACerts)
		if err != nil {
			return nil, fmt.Errorf("read CA certs: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CACerts)
		}
		tlsCfg.RootCAs = pool
	}

	switch {
	case cfg.CertFile != "" && cfg.KeyFile != "":
		pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{pair}
	case cfg.CertFile != "" || cfg.KeyFile != "":
		return nil, errors.New("client certificate and key must be set together")
	}
	return tlsCfg, nil
}

// Connect dials the broker and waits for the first connection.
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("connecting to broker", "host", c.cfg.Host, "port", c.cfg.Port, "tls", c.cfg.TLS.Enabled)

	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(connectTimeout):
		return fmt.Errorf("connect to %s:%d: timed out", c.cfg.Host, c.cfg.Port)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s:%d: %w", c.cfg.Host, c.cfg.Port, err)
	}
	return nil
}

// onConnect (re)subscribes everything registered so far.
func (c *Client) onConnect(pc paho.Client) {
	c.logger.Info("connected to broker")

	c.mu.Lock()
	subs := make(map[string]Handler, len(c.subs))
	for topic, h := range c.subs {
		subs[topic] = h
	}
	c.mu.Unlock()

	for topic, h := range subs {
		c.subscribe(pc, topic, h)
	}
}

func (c *Client) subscribe(pc paho.Client, topic string, h Handler) {
	token := pc.Subscribe(topic, c.cfg.QoS, func(_ paho.Client, m paho.Message) {
		c.deliver(h, m.Topic(), m.Payload())
	})
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.logger.Error("subscribe failed", "topic", topic, "error", err)
			return
		}
		c.logger.Debug("subscribed", "topic", topic, "qos", c.cfg.QoS)
	}()
}

func (c *Client) deliver(h Handler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("message handler panicked", "topic", topic, "panic", r)
		}
	}()
	h(topic, payload)
}

// Subscribe registers h for topic. The subscription is made now if
// connected and again after every reconnect.
func (c *Client) Subscribe(topic string, h Handler) error {
	if topic == "" || h == nil {
		return errors.New("subscribe needs a topic and a handler")
	}
	c.mu.Lock()
	c.subs[topic] = h
	c.mu.Unlock()

	if c.client.IsConnectionOpen() {
		c.subscribe(c.client, topic, h)
	}
	return nil
}

// Publish sends payload at the configured QoS without retain.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, c.cfg.QoS, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	return token.Error()
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

func (c *Client) Disconnect() {
	c.client.Disconnect(disconnectQuiesce)
	c.logger.Info("disconnected from broker")
}
