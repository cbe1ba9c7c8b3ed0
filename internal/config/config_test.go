package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"filekv/internal/logs"
	"filekv/internal/persist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filekv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "", cfg.DataFile)
	assert.Equal(t, "dataStore.json", cfg.DataPath())
	assert.Equal(t, int64(1<<30), cfg.MaxFileSize)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, persist.BackendJSON, cfg.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: "127.0.0.1:9090"
backend: bolt
data_file: /var/lib/filekv/data.bolt
sweep_interval: 30s
log:
  level: debug
`)

	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Listen)
	assert.Equal(t, persist.BackendBolt, cfg.Backend)
	assert.Equal(t, "/var/lib/filekv/data.bolt", cfg.DataFile)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 1000, cfg.Log.Buffer, "unset fields keep their default")
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := Load(missing, true)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(missing, false)
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "listen: [unclosed")

	_, err := Load(path, false)
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	path := writeConfig(t, "backend: bolt\n")

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvListen, ":7000")
	t.Setenv(EnvDataFile, "other.bolt")
	t.Setenv(EnvLogLevel, "WARN")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, persist.BackendBolt, cfg.Backend)
	assert.Equal(t, "other.bolt", cfg.DataFile)
	assert.Equal(t, "WARN", cfg.Log.Level)
}

func TestFromEnv_InvalidBackend(t *testing.T) {
	t.Setenv(EnvConfig, writeConfig(t, "log:\n  level: info\n"))
	t.Setenv(EnvBackend, "redis")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "unknown backend")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"bad level":       func(c *Config) { c.Log.Level = "loud" },
		"zero interval":   func(c *Config) { c.SweepInterval = 0 },
		"negative size":   func(c *Config) { c.MaxFileSize = -1 },
		"zero log buffer": func(c *Config) { c.Log.Buffer = 0 },
		"unknown backend": func(c *Config) { c.Backend = "s3" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("file backends default their path", func(t *testing.T) {
		cfg := Default()
		cfg.Backend = persist.BackendBolt
		cfg.DataFile = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("memory needs no file", func(t *testing.T) {
		cfg := Default()
		cfg.Backend = persist.BackendMemory
		cfg.DataFile = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestNewLoggerAndPersistOptions(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "error"

	logger := cfg.NewLogger()
	logger.Warn("dropped")
	logger.Error("kept")
	assert.Len(t, logger.GetLast(10), 1)
	assert.Equal(t, logs.ERROR, logger.GetLast(1)[0].Level)

	opts := cfg.PersistOptions()
	assert.Equal(t, "dataStore.json", opts.Path)
	assert.Equal(t, cfg.MaxFileSize, opts.MaxFileSize)
	assert.Equal(t, 3, opts.Retry.MaxRetries)
}

func TestDataPath(t *testing.T) {
	cases := map[string]struct {
		backend  string
		dataFile string
		want     string
	}{
		"json default":  {backend: persist.BackendJSON, want: "dataStore.json"},
		"bolt default":  {backend: persist.BackendBolt, want: "dataStore.db"},
		"memory":        {backend: persist.BackendMemory, want: ""},
		"explicit wins": {backend: persist.BackendBolt, dataFile: "/data/kv.bolt", want: "/data/kv.bolt"},
		"explicit json": {backend: persist.BackendJSON, dataFile: "kv.json", want: "kv.json"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Backend = tc.backend
			cfg.DataFile = tc.dataFile

			assert.Equal(t, tc.want, cfg.DataPath())
			assert.Equal(t, tc.want, cfg.PersistOptions().Path)
		})
	}
}

func TestFromEnv_BoltWithoutDataFile(t *testing.T) {
	t.Setenv(EnvConfig, writeConfig(t, "backend: bolt\n"))

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "dataStore.db", cfg.PersistOptions().Path, "bolt never writes to the json file name")
}
