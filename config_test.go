package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
[server]
address = ":9090"
shutdown_timeout = "2s"

[streams]
default_capacity = 50
heartbeat_interval = "5s"

[[preload]]
name = "sensors"
capacity = 200

[[preload]]
name = "alerts"
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9090" || cfg.Server.ShutdownTimeout.Duration != 2*time.Second {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Streams.DefaultCapacity != 50 || cfg.Streams.HeartbeatInterval.Duration != 5*time.Second {
		t.Fatalf("streams = %+v", cfg.Streams)
	}
	if cfg.Streams.SubscriberQueueSize != 100 {
		t.Fatalf("queue size should keep its default, got %d", cfg.Streams.SubscriberQueueSize)
	}
	if len(cfg.Preload) != 2 || cfg.Preload[0].Name != "sensors" || cfg.Preload[1].Capacity != 0 {
		t.Fatalf("preload = %+v", cfg.Preload)
	}

	sm, err := newManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	sensors, _ := sm.GetStream("sensors")
	alerts, _ := sm.GetStream("alerts")
	if sensors.stream.Cap() != 200 || alerts.stream.Cap() != 50 {
		t.Fatalf("capacities = %d, %d", sensors.stream.Cap(), alerts.stream.Cap())
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":8080" || cfg.Streams.DefaultCapacity != 100 {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("ADDR", ":7000")
	t.Setenv("API_KEY", "k")
	t.Setenv("SUBSCRIBER_QUEUE_SIZE", "7")
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":7000" || cfg.Server.APIKey != "k" || cfg.Streams.SubscriberQueueSize != 7 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad duration", "[streams]\nheartbeat_interval = \"soon\"\n", "load config"},
		{"zero capacity", "[streams]\ndefault_capacity = 0\n", "default_capacity"},
		{"duplicate preload", "[[preload]]\nname = \"a\"\n[[preload]]\nname = \"a\"\n", "listed twice"},
		{"nameless preload", "[[preload]]\ncapacity = 3\n", "without a name"},
		{"negative preload", "[[preload]]\nname = \"a\"\ncapacity = -2\n", "negative capacity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
