// Package config handles configuration loading for the fractal client.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the client configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tiles     TilesConfig     `yaml:"tiles"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Render    RenderConfig    `yaml:"render"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains render server connection settings.
type ServerConfig struct {
	URL                string `yaml:"url"`
	HandshakeTimeoutMS int    `yaml:"handshake_timeout_ms"`
	WriteTimeoutMS     int    `yaml:"write_timeout_ms"`
	ReconnectInitialMS int    `yaml:"reconnect_initial_ms"`
	ReconnectMaxMS     int    `yaml:"reconnect_max_ms"`
}

// TilesConfig contains tile addressing and cache settings.
type TilesConfig struct {
	Size          int `yaml:"size"`
	CacheCapacity int `yaml:"cache_capacity"`
}

// SchedulerConfig contains request pacing settings.
type SchedulerConfig struct {
	CoarseLOD     int `yaml:"coarse_lod"`
	FastSettleMS  int `yaml:"fast_settle_ms"`
	SlowSettleMS  int `yaml:"slow_settle_ms"`
	RefineDelayMS int `yaml:"refine_delay_ms"`
	RequestTTLMS  int `yaml:"request_ttl_ms"`
}

// RenderConfig contains compositor and frame loop settings.
type RenderConfig struct {
	FrameIntervalMS int  `yaml:"frame_interval_ms"`
	ShowTileGrid    bool `yaml:"show_tile_grid"`
	ShowCoordinates bool `yaml:"show_coordinates"`
}

// TelemetryConfig contains opt-in usage analytics settings.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:                "ws://localhost:8090/ws",
			HandshakeTimeoutMS: 5000,
			WriteTimeoutMS:     5000,
			ReconnectInitialMS: 250,
			ReconnectMaxMS:     10000,
		},
		Tiles: TilesConfig{
			Size:          128,
			CacheCapacity: 4096,
		},
		Scheduler: SchedulerConfig{
			CoarseLOD:     4,
			FastSettleMS:  30,
			SlowSettleMS:  500,
			RefineDelayMS: 200,
			RequestTTLMS:  10000,
		},
		Render: RenderConfig{
			FrameIntervalMS: 16,
			ShowTileGrid:    false,
			ShowCoordinates: false,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
		},
	}
}

// Save writes the configuration back to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Duration converts a millisecond config value to a time.Duration.
func Duration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.URL == "" {
		cfg.Server.URL = defaults.Server.URL
	}
	if cfg.Server.HandshakeTimeoutMS == 0 {
		cfg.Server.HandshakeTimeoutMS = defaults.Server.HandshakeTimeoutMS
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = defaults.Server.WriteTimeoutMS
	}
	if cfg.Server.ReconnectInitialMS == 0 {
		cfg.Server.ReconnectInitialMS = defaults.Server.ReconnectInitialMS
	}
	if cfg.Server.ReconnectMaxMS == 0 {
		cfg.Server.ReconnectMaxMS = defaults.Server.ReconnectMaxMS
	}
	if cfg.Tiles.Size == 0 {
		cfg.Tiles.Size = defaults.Tiles.Size
	}
	if cfg.Tiles.CacheCapacity == 0 {
		cfg.Tiles.CacheCapacity = defaults.Tiles.CacheCapacity
	}
	if cfg.Scheduler.CoarseLOD == 0 {
		cfg.Scheduler.CoarseLOD = defaults.Scheduler.CoarseLOD
	}
	if cfg.Scheduler.FastSettleMS == 0 {
		cfg.Scheduler.FastSettleMS = defaults.Scheduler.FastSettleMS
	}
	if cfg.Scheduler.SlowSettleMS == 0 {
		cfg.Scheduler.SlowSettleMS = defaults.Scheduler.SlowSettleMS
	}
	if cfg.Scheduler.RefineDelayMS == 0 {
		cfg.Scheduler.RefineDelayMS = defaults.Scheduler.RefineDelayMS
	}
	if cfg.Scheduler.RequestTTLMS == 0 {
		cfg.Scheduler.RequestTTLMS = defaults.Scheduler.RequestTTLMS
	}
	if cfg.Render.FrameIntervalMS == 0 {
		cfg.Render.FrameIntervalMS = defaults.Render.FrameIntervalMS
	}
}
