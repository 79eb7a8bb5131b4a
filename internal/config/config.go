// Package config loads the relay daemon configuration from a YAML file and
// validates it. Flags in main override individual fields.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// ListenAddr is the HTTP listen address serving the websocket endpoint,
	// /healthz and /metrics.
	ListenAddr string `yaml:"listen_addr"`

	// StoreCapacity bounds the in-memory event store; the oldest event is
	// evicted at capacity.
	StoreCapacity int `yaml:"store_capacity"`

	// QueueSize bounds each session's outbound queue. A session whose queue
	// overflows is disconnected as a slow consumer.
	QueueSize int `yaml:"queue_size"`

	// MaxFrameBytes caps inbound websocket frame length.
	MaxFrameBytes int64 `yaml:"max_frame_bytes"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type MetricsConfig struct {
	Enable bool `yaml:"enable"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr:    ":7447",
		StoreCapacity: 65536,
		QueueSize:     256,
		MaxFrameBytes: 512 << 10,
		Log:           LogConfig{Level: "info", Format: "text"},
		Metrics:       MetricsConfig{Enable: true},
	}
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.StoreCapacity <= 0 {
		return fmt.Errorf("store_capacity must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive")
	}
	if c.MaxFrameBytes <= 0 {
		return fmt.Errorf("max_frame_bytes must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}
	return nil
}
