package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Simulator.MaxDatagram != 2048 {
		t.Errorf("expected max_datagram 2048, got %d", cfg.Simulator.MaxDatagram)
	}
	if cfg.Simulator.RecvTimeout <= 0 {
		t.Errorf("expected positive recv_timeout, got %v", cfg.Simulator.RecvTimeout)
	}
	if cfg.Swarm.Robots != 3 || cfg.Swarm.Backbone != 2 || cfg.Swarm.HopsK != 1 {
		t.Errorf("unexpected swarm defaults: %+v", cfg.Swarm)
	}
	if cfg.NATS.Port != 4222 {
		t.Errorf("expected nats port 4222, got %d", cfg.NATS.Port)
	}
	if cfg.Store.Path != "data/swarmlink.db" {
		t.Errorf("expected store path data/swarmlink.db, got %s", cfg.Store.Path)
	}
	if !cfg.Web.Enabled {
		t.Error("expected web enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SWARMLINK_CONFIG", "/nonexistent/config.yaml")
	t.Setenv("SWARMLINK_SIM_HOST", "10.0.0.7")
	t.Setenv("SWARMLINK_SIM_PORT", "9999")
	t.Setenv("SWARMLINK_ROBOTS", "8")
	t.Setenv("SWARMLINK_BACKBONE", "5")
	t.Setenv("SWARMLINK_HOPS_K", "2")
	t.Setenv("SWARMLINK_WEB_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Simulator.Host != "10.0.0.7" {
		t.Errorf("expected host 10.0.0.7, got %s", cfg.Simulator.Host)
	}
	if cfg.Simulator.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Simulator.Port)
	}
	if cfg.Swarm.Robots != 8 || cfg.Swarm.Backbone != 5 || cfg.Swarm.HopsK != 2 {
		t.Errorf("unexpected swarm config: %+v", cfg.Swarm)
	}
	if cfg.Web.Auth != "secret" {
		t.Errorf("expected web auth secret, got %s", cfg.Web.Auth)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
simulator:
  host: "sim.local"
  port: 7000
  recv_timeout: 250ms
swarm:
  robots: 6
  backbone: 4
  hops_k: 2
  frequency: 4
web:
  enabled: false
trace:
  enabled: true
  dir: "${TRACE_ROOT}/trace"
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SWARMLINK_CONFIG", cfgPath)
	t.Setenv("TRACE_ROOT", "/var/lib/swarmlink")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Simulator.Host != "sim.local" || cfg.Simulator.Port != 7000 {
		t.Errorf("unexpected simulator config: %+v", cfg.Simulator)
	}
	if cfg.Simulator.RecvTimeout != 250*time.Millisecond {
		t.Errorf("expected recv_timeout 250ms, got %v", cfg.Simulator.RecvTimeout)
	}
	if cfg.Simulator.MaxDatagram != 2048 {
		t.Errorf("expected default max_datagram to survive, got %d", cfg.Simulator.MaxDatagram)
	}
	if cfg.Swarm.Interval() != 250*time.Millisecond {
		t.Errorf("expected 4Hz to give 250ms, got %v", cfg.Swarm.Interval())
	}
	if cfg.Web.Enabled {
		t.Error("expected web disabled")
	}
	if cfg.Trace.Dir != "/var/lib/swarmlink/trace" {
		t.Errorf("expected expanded trace dir, got %s", cfg.Trace.Dir)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("SWARMLINK_CONFIG", "/nonexistent/config.yaml")
	t.Setenv("SWARMLINK_ROBOTS", "2")
	t.Setenv("SWARMLINK_BACKBONE", "3")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when backbone exceeds robots")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero robots":       func(c *Config) { c.Swarm.Robots = 0 },
		"negative k":        func(c *Config) { c.Swarm.HopsK = -1 },
		"no timeout":        func(c *Config) { c.Simulator.RecvTimeout = 0 },
		"no datagram":       func(c *Config) { c.Simulator.MaxDatagram = 0 },
		"bad port":          func(c *Config) { c.Simulator.Port = 70000 },
		"no interval":       func(c *Config) { c.Swarm.PollInterval = 0 },
		"negative backbone": func(c *Config) { c.Swarm.Backbone = -1 },
	}
	for name, mutate := range cases {
		cfg := defaults()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	cfg := defaults()
	cfg.Swarm.Backbone = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero backbone should be allowed, got %v", err)
	}
}

func TestSlogLevel(t *testing.T) {
	if got := (LogConfig{Level: "debug"}).SlogLevel(); got != slog.LevelDebug {
		t.Errorf("expected debug, got %v", got)
	}
	if got := (LogConfig{Level: "WARN"}).SlogLevel(); got != slog.LevelWarn {
		t.Errorf("expected warn, got %v", got)
	}
	if got := (LogConfig{Level: "bogus"}).SlogLevel(); got != slog.LevelInfo {
		t.Errorf("expected info fallback, got %v", got)
	}
}
