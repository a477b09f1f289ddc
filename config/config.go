// Package config loads the YAML configuration of the fractalx command.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/comalice/fractalx"
)

// Config is the root of the configuration file.
type Config struct {
	Module      ModuleConfig      `yaml:"module"`
	Board       BoardConfig       `yaml:"board"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Web         WebConfig         `yaml:"web"`
	Realtime    RealtimeConfig    `yaml:"realtime"`
	HotSwap     HotSwapConfig     `yaml:"hotswap"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ModuleConfig configures the running module.
type ModuleConfig struct {
	// ID names the module for persisters and publishers. Empty generates one.
	ID        string `yaml:"id"`
	QueueSize int    `yaml:"queue_size" validate:"gte=1"`
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// BoardConfig describes the counter board.
type BoardConfig struct {
	Title    string          `yaml:"title" validate:"required"`
	Counters []CounterConfig `yaml:"counters" validate:"required,min=1,max=9,unique=Name,dive"`
}

// CounterConfig describes one counter of the board.
type CounterConfig struct {
	Name  string `yaml:"name" validate:"required,componentname"`
	Label string `yaml:"label"`
	Start int    `yaml:"start"`
	Step  int    `yaml:"step" validate:"gte=1"`
}

// PersistenceConfig selects where snapshots are stored.
type PersistenceConfig struct {
	Driver string `yaml:"driver" validate:"oneof=none json yaml badger"`
	Dir    string `yaml:"dir" validate:"required_unless=Driver none"`
}

// WebConfig configures the HTTP interface handler.
type WebConfig struct {
	Addr    string  `yaml:"addr" validate:"required"`
	WSRate  float64 `yaml:"ws_rate" validate:"gt=0"`
	WSBurst int     `yaml:"ws_burst" validate:"gte=1"`
}

// RealtimeConfig configures the tick runtime.
type RealtimeConfig struct {
	TickRate         time.Duration `yaml:"tick_rate" validate:"gte=1ms"`
	MaxEventsPerTick int           `yaml:"max_events_per_tick" validate:"gte=1"`
	// TickEvery dispatches the board "tick" input every n ticks; 0 disables it.
	TickEvery int `yaml:"tick_every" validate:"gte=0"`
}

// HotSwapConfig configures reloading the board when the file changes.
type HotSwapConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// TelemetryConfig selects the OpenTelemetry exporters. Prometheus metrics are
// served by the web handler at /metrics.
type TelemetryConfig struct {
	Metrics string `yaml:"metrics" validate:"oneof=none prometheus stdout"`
	Traces  string `yaml:"traces" validate:"oneof=none stdout"`
	// Interval is the export period of stdout metrics.
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

// Default returns the configuration used for every field the file omits.
func Default() Config {
	return Config{
		Module: ModuleConfig{QueueSize: 1000, LogLevel: "info"},
		Board: BoardConfig{
			Title: "Counter board",
			Counters: []CounterConfig{
				{Name: "first", Label: "First", Step: 1},
				{Name: "second", Label: "Second", Step: 2},
			},
		},
		Persistence: PersistenceConfig{Driver: "none"},
		Web:         WebConfig{Addr: ":8080", WSRate: 20, WSBurst: 10},
		Realtime:    RealtimeConfig{TickRate: 100 * time.Millisecond, MaxEventsPerTick: 1000, TickEvery: 10},
		HotSwap:     HotSwapConfig{Enabled: true, Debounce: 100 * time.Millisecond},
		Telemetry:   TelemetryConfig{Metrics: "prometheus", Traces: "none", Interval: 10 * time.Second},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("componentname", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return name != "" && !strings.Contains(name, fractalx.Separator)
	})
	return v
}

// Validate checks every field constraint.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config: %w", err)
	}
	for i := range cfg.Board.Counters {
		c := &cfg.Board.Counters[i]
		if c.Step == 0 {
			c.Step = 1
		}
		if c.Label == "" {
			c.Label = c.Name
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	return Parse(data)
}

// WriteDefault writes the default configuration to path, creating its directory.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Level returns the slog level of LogLevel.
func (m ModuleConfig) Level() slog.Level {
	switch m.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
