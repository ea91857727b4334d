// Package config loads the YAML configuration file and owns the engine
// defaults, presets, override merging and range clamping.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/logging"
)

// Configuration errors
var (
	ErrInvalidModel    = errors.New("invalid model")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrInvalidSymbols  = errors.New("invalid symbols")
	ErrInvalidOverride = errors.New("invalid override")
	ErrUnknownKey      = errors.New("unknown config key")
	ErrUnknownPreset   = errors.New("unknown preset")
)

// StorageConfig selects the persistence backends.
type StorageConfig struct {
	Driver        string `yaml:"driver"` // memory or postgres
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"` // optional bar store
}

// MarketDataConfig configures the exchange REST and stream endpoints.
type MarketDataConfig struct {
	BaseURL    string `yaml:"base_url"`
	StreamURL  string `yaml:"stream_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MaxRetries int    `yaml:"max_retries"`
	StreamOn   bool   `yaml:"stream_on"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	Mode   string `yaml:"mode"` // gin mode: debug, release, test
}

// LiveConfig configures the live loop side channels.
type LiveConfig struct {
	AuditFlushSec  int `yaml:"audit_flush_sec"`
	AuditBatchSize int `yaml:"audit_batch_size"`
	AuditBufferCap int `yaml:"audit_buffer_cap"`
	SlowTickMs     int `yaml:"slow_tick_ms"`
}

// File is the full configuration file.
type File struct {
	Preset     string           `yaml:"preset"`
	Engine     domain.Config    `yaml:"engine"`
	Log        logging.Config   `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Server     ServerConfig     `yaml:"server"`
	Live       LiveConfig       `yaml:"live"`
}

// DefaultFile returns the configuration used when no file is given.
func DefaultFile() File {
	return File{
		Preset: PresetNone,
		Engine: Default(),
		Log:    logging.DefaultConfig(),
		Storage: StorageConfig{
			Driver: "memory",
		},
		MarketData: MarketDataConfig{
			BaseURL:    "https://api.binance.com",
			StreamURL:  "wss://stream.binance.com:9443/ws",
			TimeoutSec: 10,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Listen: ":8080",
			Mode:   "release",
		},
		Live: LiveConfig{
			AuditFlushSec:  8,
			AuditBatchSize: 100,
			AuditBufferCap: 2000,
			SlowTickMs:     5000,
		},
	}
}

// Load reads path over the defaults, clamps the engine section and applies
// the selected preset. Keys absent from the file keep their default.
func Load(path string) (*File, error) {
	f := DefaultFile()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal config yaml: %w", err)
	}
	if err := f.Finalize(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadOrDefault loads path, or finalizes the defaults when path is empty.
func LoadOrDefault(path string) (*File, error) {
	if path == "" {
		f := DefaultFile()
		if err := f.Finalize(); err != nil {
			return nil, err
		}
		return &f, nil
	}
	return Load(path)
}

// Finalize normalizes the engine section, applies the preset and validates.
func (f *File) Finalize() error {
	f.Engine = Normalize(f.Engine)
	engine, err := ApplyPreset(f.Engine, f.Preset)
	if err != nil {
		return err
	}
	f.Engine = engine
	return Validate(&f.Engine)
}

var intervalPattern = regexp.MustCompile(`^[0-9]+[mhdwM]$`)

// Validate reports configuration faults that clamping cannot repair.
func Validate(cfg *domain.Config) error {
	switch cfg.Model {
	case domain.ModelScore, domain.ModelMomentum, domain.ModelProbability:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidModel, cfg.Model)
	}
	if !intervalPattern.MatchString(cfg.Interval) {
		return fmt.Errorf("%w: %q", ErrInvalidInterval, cfg.Interval)
	}
	if cfg.MTFConfirmOn && cfg.MTFInterval != "" && !intervalPattern.MatchString(cfg.MTFInterval) {
		return fmt.Errorf("%w: mtf %q", ErrInvalidInterval, cfg.MTFInterval)
	}
	if cfg.UniverseMode == domain.UniverseFixed && len(cfg.Symbols) == 0 {
		return fmt.Errorf("%w: fixed universe without symbols", ErrInvalidSymbols)
	}
	return nil
}
