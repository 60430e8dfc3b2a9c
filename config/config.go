// Package config loads the mdreveal YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"pkt.systems/mdreveal"
	"pkt.systems/mdreveal/internal/logging"
	"pkt.systems/mdreveal/styler"
)

// FileName is the config file name looked up under the user config directory.
const FileName = "config.yaml"

// OSC8 modes.
const (
	OSC8Auto = "auto"
	OSC8On   = "on"
	OSC8Off  = "off"
)

// Config is the file configuration. Settings missing from a file keep their
// defaults.
type Config struct {
	Interval   time.Duration `yaml:"interval"`
	ChunkSize  int           `yaml:"chunk_size"`
	FadeWidth  int           `yaml:"fade_width"`
	EndMessage string        `yaml:"end_message"`
	Theme      string        `yaml:"theme"`
	Width      int           `yaml:"width,omitempty"`
	OSC8       string        `yaml:"osc8"`
	LogLevel   string        `yaml:"log_level"`
	StateDB    string        `yaml:"state_db,omitempty"`
	Simulate   Simulate      `yaml:"simulate"`
}

// Simulate configures the slow-input simulation used for demos.
type Simulate struct {
	ChunkSize int           `yaml:"chunk_size"`
	Delay     time.Duration `yaml:"delay"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Interval:   mdreveal.DefaultInterval,
		ChunkSize:  mdreveal.DefaultChunkSize,
		FadeWidth:  mdreveal.DefaultFadeWidth,
		EndMessage: mdreveal.DefaultEndMessage,
		Theme:      styler.DefaultTheme().Name(),
		OSC8:       OSC8Auto,
		LogLevel:   "info",
		Simulate: Simulate{
			ChunkSize: 3,
			Delay:     20 * time.Millisecond,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/mdreveal/config.yaml (or the
// platform equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locate config dir: %w", err)
	}
	return filepath.Join(dir, "mdreveal", FileName), nil
}

// Load reads the file at path over the defaults. An empty path loads
// DefaultPath when that file exists and the defaults otherwise.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := FromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// FromYAML parses data over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.FadeWidth < 0 {
		errs = append(errs, fmt.Errorf("fade_width must not be negative, got %d", c.FadeWidth))
	}
	if c.Width < 0 {
		errs = append(errs, fmt.Errorf("width must not be negative, got %d", c.Width))
	}
	if _, ok := styler.ThemeByName(c.Theme); !ok {
		errs = append(errs, fmt.Errorf("unknown theme %q (available: %s)", c.Theme, strings.Join(styler.AvailableThemes(), ", ")))
	}
	switch strings.ToLower(c.OSC8) {
	case OSC8Auto, OSC8On, OSC8Off:
	default:
		errs = append(errs, fmt.Errorf("osc8 must be auto, on or off, got %q", c.OSC8))
	}
	if !logging.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if c.Simulate.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("simulate.chunk_size must be positive, got %d", c.Simulate.ChunkSize))
	}
	if c.Simulate.Delay < 0 {
		errs = append(errs, fmt.Errorf("simulate.delay must not be negative, got %s", c.Simulate.Delay))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

// ToYAML serializes the configuration.
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// ControllerOptions returns the controller options the configuration sets.
func (c *Config) ControllerOptions() []mdreveal.Option {
	return []mdreveal.Option{
		mdreveal.WithInterval(c.Interval),
		mdreveal.WithChunkSize(c.ChunkSize),
		mdreveal.WithFadeWidth(c.FadeWidth),
		mdreveal.WithEndMessage(c.EndMessage),
	}
}
