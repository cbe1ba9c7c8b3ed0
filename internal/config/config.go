package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"filekv/internal/logs"
	"filekv/internal/persist"
	"filekv/internal/ttl"
)

// Environment variables consulted by FromEnv.
const (
	EnvConfig   = "FILEKV_CONFIG"
	EnvListen   = "FILEKV_LISTEN"
	EnvBackend  = "FILEKV_BACKEND"
	EnvDataFile = "FILEKV_DATA_FILE"
	EnvLogLevel = "FILEKV_LOG_LEVEL"
)

// DefaultConfigPath is read when FILEKV_CONFIG is unset. It may not exist.
const DefaultConfigPath = "filekv.yaml"

type LogConfig struct {
	Level  string `yaml:"level"`
	Buffer int    `yaml:"buffer"` // entries kept in memory for /health
}

// Config holds everything the binaries need to wire a store.
type Config struct {
	Listen        string        `yaml:"listen"`
	Backend       string        `yaml:"backend"`
	DataFile      string        `yaml:"data_file"` // empty selects the backend's default file
	MaxFileSize   int64         `yaml:"max_file_size"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Log           LogConfig     `yaml:"log"`
}

func Default() Config {
	return Config{
		Listen:        ":8080",
		Backend:       persist.BackendJSON,
		MaxFileSize:   persist.DefaultMaxFileSize,
		SweepInterval: ttl.DefaultInterval,
		Log: LogConfig{
			Level:  string(logs.INFO),
			Buffer: 1000,
		},
	}
}

// Load reads the YAML file at path on top of Default. A missing file is not
// an error when allowMissing is set.
func Load(path string, allowMissing bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && allowMissing:
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv loads the file named by FILEKV_CONFIG (or DefaultConfigPath if
// that is unset and present), applies the remaining env overrides and
// validates the result.
func FromEnv() (Config, error) {
	path := os.Getenv(EnvConfig)
	cfg, err := Load(defaultString(path, DefaultConfigPath), path == "")
	if err != nil {
		return cfg, err
	}

	cfg.Listen = defaultString(os.Getenv(EnvListen), cfg.Listen)
	cfg.Backend = defaultString(os.Getenv(EnvBackend), cfg.Backend)
	cfg.DataFile = defaultString(os.Getenv(EnvDataFile), cfg.DataFile)
	cfg.Log.Level = defaultString(os.Getenv(EnvLogLevel), cfg.Log.Level)

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Backend {
	case persist.BackendJSON, persist.BackendBolt, persist.BackendMemory:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("config: max_file_size must be positive, got %d", c.MaxFileSize)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep_interval must be positive, got %s", c.SweepInterval)
	}
	if c.Log.Buffer <= 0 {
		return fmt.Errorf("config: log.buffer must be positive, got %d", c.Log.Buffer)
	}
	if _, err := logs.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NewLogger builds the logger described by c.Log. Call after Validate.
func (c Config) NewLogger() *logs.Logger {
	level, err := logs.ParseLevel(c.Log.Level)
	if err != nil {
		level = logs.INFO
	}
	return logs.NewLogger(c.Log.Buffer, level)
}

// DataPath returns DataFile, or the default file of the configured backend
// when DataFile is empty.
func (c Config) DataPath() string {
	return defaultString(c.DataFile, persist.DefaultPathFor(c.Backend))
}

// PersistOptions maps c onto persist.Open options.
func (c Config) PersistOptions() persist.Options {
	return persist.Options{
		Backend:     c.Backend,
		Path:        c.DataPath(),
		MaxFileSize: c.MaxFileSize,
		Retry:       persist.DefaultRetryPolicy(),
	}
}

func defaultString(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
