package main

import (
	"fmt"
	"os"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml"
)

const configName = "drmkit/kmscursor.toml"

type Config struct {
	// DRM node to drive
	Device   string `toml:"device"`
	LogLevel string `toml:"log_level"`
	// Allocate the cursor through GBM instead of a dumb buffer
	UseGBM bool `toml:"use_gbm"`

	// Background color as 0xXXRRGGBB
	Background uint32  `toml:"background"`
	Banner     string  `toml:"banner"`
	FontSize   float64 `toml:"font_size"`

	// Stop after that many frames, 0 runs until interrupted
	Frames     int `toml:"frames"`
	IntervalMS int `toml:"interval_ms"`
	// Pointer speed in pixels per frame
	Speed int `toml:"speed"`
}

func defaultConfig() *Config {
	return &Config{
		Device:     "/dev/dri/card0",
		LogLevel:   "info",
		Background: 0x00203040,
		Banner:     "drmkit",
		FontSize:   48,
		IntervalMS: 16,
		Speed:      4,
	}
}

// loadConfig reads path, or the first kmscursor.toml in the XDG config
// directories when path is empty. Keys missing from the file keep their
// default value.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		found, err := xdg.SearchConfigFile(configName)
		if err != nil {
			return cfg, nil
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Device == "" {
		return fmt.Errorf("device must be set")
	}
	if c.IntervalMS <= 0 {
		return fmt.Errorf("interval_ms must be positive, got %d", c.IntervalMS)
	}
	if c.Frames < 0 {
		return fmt.Errorf("frames must not be negative, got %d", c.Frames)
	}
	if c.FontSize <= 0 {
		return fmt.Errorf("font_size must be positive, got %g", c.FontSize)
	}
	return nil
}
