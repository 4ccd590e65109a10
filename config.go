package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server  ServerConfig    `toml:"server"`
	Streams StreamsConfig   `toml:"streams"`
	Preload []PreloadStream `toml:"preload"`
}

type ServerConfig struct {
	Address         string   `toml:"address"`
	APIKey          string   `toml:"api_key"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

type StreamsConfig struct {
	DefaultCapacity     int      `toml:"default_capacity"`
	SubscriberQueueSize int      `toml:"subscriber_queue_size"`
	HeartbeatInterval   duration `toml:"heartbeat_interval"`
}

type PreloadStream struct {
	Name     string `toml:"name"`
	Capacity int    `toml:"capacity"`
}

// duration lets the config file say "20s" instead of nanoseconds.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			ShutdownTimeout: duration{5 * time.Second},
		},
		Streams: StreamsConfig{
			DefaultCapacity:     100,
			SubscriberQueueSize: 100,
			HeartbeatInterval:   duration{20 * time.Second},
		},
	}
}

// loadConfig reads path over the defaults. A missing file is not an error;
// environment overrides are applied last.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	cfg.Server.Address = getEnv("ADDR", cfg.Server.Address)
	cfg.Server.APIKey = getEnv("API_KEY", cfg.Server.APIKey)
	if v := getEnv("SUBSCRIBER_QUEUE_SIZE", ""); v != "" {
		if n, _ := strconv.Atoi(v); n > 0 {
			cfg.Streams.SubscriberQueueSize = n
		}
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Streams.DefaultCapacity < 1 {
		return fmt.Errorf("streams.default_capacity must be positive, got %d", c.Streams.DefaultCapacity)
	}
	if c.Streams.SubscriberQueueSize < 1 {
		return fmt.Errorf("streams.subscriber_queue_size must be positive, got %d", c.Streams.SubscriberQueueSize)
	}
	if c.Streams.HeartbeatInterval.Duration <= 0 {
		return fmt.Errorf("streams.heartbeat_interval must be positive")
	}
	seen := make(map[string]bool, len(c.Preload))
	for _, p := range c.Preload {
		if p.Name == "" {
			return errors.New("preload entry without a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("preload stream %q listed twice", p.Name)
		}
		if p.Capacity < 0 {
			return fmt.Errorf("preload stream %q: negative capacity", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}
