package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Simulator SimulatorConfig `yaml:"simulator"`
	Swarm     SwarmConfig     `yaml:"swarm"`
	NATS      NATSConfig      `yaml:"nats"`
	Store     StoreConfig     `yaml:"store"`
	Web       WebConfig       `yaml:"web"`
	Retention RetentionConfig `yaml:"retention"`
	Trace     TraceConfig     `yaml:"trace"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Log       LogConfig       `yaml:"log"`
}

// SimulatorConfig addresses the network simulator's UDP endpoint.
type SimulatorConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	RecvTimeout time.Duration `yaml:"recv_timeout"`
	MaxDatagram int           `yaml:"max_datagram"`
}

// SwarmConfig describes the managed agents and the hop threshold used to
// derive the adjacency matrix.
type SwarmConfig struct {
	Robots       int           `yaml:"robots"`
	Backbone     int           `yaml:"backbone"`
	HopsK        int           `yaml:"hops_k"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Frequency    float64       `yaml:"frequency"` // Hz, overrides poll_interval when set
}

type NATSConfig struct {
	URL     string `yaml:"url"` // external server; embedded server when empty
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type RetentionConfig struct {
	Schedule string        `yaml:"schedule"`
	Keep     time.Duration `yaml:"keep"`
}

type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type TelegramConfig struct {
	Token            string `yaml:"token"`
	ChatID           int64  `yaml:"chat_id"`
	FailureThreshold int    `yaml:"failure_threshold"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Interval returns the cycle period, derived from Frequency when it is set.
func (c SwarmConfig) Interval() time.Duration {
	if c.Frequency > 0 {
		return time.Duration(float64(time.Second) / c.Frequency)
	}
	return c.PollInterval
}

func defaults() Config {
	return Config{
		Simulator: SimulatorConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			RecvTimeout: 400 * time.Millisecond,
			MaxDatagram: 2048,
		},
		Swarm: SwarmConfig{
			Robots:       3,
			Backbone:     2,
			HopsK:        1,
			PollInterval: 500 * time.Millisecond,
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/swarmlink.db",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8090,
		},
		Retention: RetentionConfig{
			Schedule: "@hourly",
			Keep:     24 * time.Hour,
		},
		Trace: TraceConfig{
			Dir: "data/trace",
		},
		Telegram: TelegramConfig{
			FailureThreshold: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("SWARMLINK_CONFIG")
	if path == "" {
		path = "config/swarmlink.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values the cycle depends on. They are fixed for the
// lifetime of the process.
func (c *Config) Validate() error {
	switch {
	case c.Simulator.Port <= 0 || c.Simulator.Port > 65535:
		return fmt.Errorf("simulator.port out of range: %d", c.Simulator.Port)
	case c.Simulator.RecvTimeout <= 0:
		return fmt.Errorf("simulator.recv_timeout must be positive")
	case c.Simulator.MaxDatagram <= 0:
		return fmt.Errorf("simulator.max_datagram must be positive")
	case c.Swarm.Robots <= 0:
		return fmt.Errorf("swarm.robots must be positive")
	case c.Swarm.Backbone < 0 || c.Swarm.Backbone > c.Swarm.Robots:
		return fmt.Errorf("swarm.backbone must be within [0, %d], got %d", c.Swarm.Robots, c.Swarm.Backbone)
	case c.Swarm.HopsK < 0:
		return fmt.Errorf("swarm.hops_k must not be negative")
	case c.Swarm.Frequency < 0:
		return fmt.Errorf("swarm.frequency must not be negative")
	case c.Swarm.Interval() <= 0:
		return fmt.Errorf("swarm.poll_interval must be positive")
	case c.Telegram.FailureThreshold < 0:
		return fmt.Errorf("telegram.failure_threshold must not be negative")
	}
	return nil
}

// SlogLevel maps the configured level name to a slog level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SWARMLINK_SIM_HOST"); v != "" {
		cfg.Simulator.Host = v
	}
	if v := os.Getenv("SWARMLINK_SIM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Simulator.Port = port
		}
	}
	if v := os.Getenv("SWARMLINK_ROBOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Swarm.Robots = n
		}
	}
	if v := os.Getenv("SWARMLINK_BACKBONE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Swarm.Backbone = n
		}
	}
	if v := os.Getenv("SWARMLINK_HOPS_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Swarm.HopsK = n
		}
	}
	if v := os.Getenv("SWARMLINK_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("SWARMLINK_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("SWARMLINK_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SWARMLINK_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("SWARMLINK_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("SWARMLINK_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("SWARMLINK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
