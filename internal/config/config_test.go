package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"flashcore/blockdev"
	"flashcore/flash"
)

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	require.NoError(t, Validate(cfg))
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "file", cfg.Flash.Backend)
	assert.Equal(t, DefaultFlashPath, cfg.Flash.Path)
	assert.Equal(t, "raw", cfg.BlockDev.EraseMode)
	assert.Equal(t, blockdev.DefaultConfig().BlockOffset, cfg.BlockDev.BlockOffset)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
logging:
  level: debug
flash:
  backend: mem
  page_size: 1024
  size: 524288
  access_policy: assume-erased
blockdev:
  block_offset: 0
  erase_mode: zero
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "mem", cfg.Flash.Backend)
	assert.Equal(t, uint32(1024), cfg.Flash.PageSize)
	assert.Equal(t, uint32(512*1024), cfg.Flash.Size)
	assert.Equal(t, uint32(0), cfg.BlockDev.BlockOffset)

	policy, err := cfg.Flash.Policy()
	require.NoError(t, err)
	assert.Equal(t, flash.AssumeErased, policy)

	bd, err := cfg.BlockDev.Device()
	require.NoError(t, err)
	assert.Equal(t, blockdev.EraseZeroFill, bd.EraseMode)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flash:\n  path: from-file.flash\n"), 0644))
	t.Setenv("FLASHCORE_FLASH_PATH", "from-env.flash")
	t.Setenv("FLASHCORE_METRICS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.flash", cfg.Flash.Path)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flash: [unterminated\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "LOUD" }, "oneof"},
		{"bad backend", func(c *Config) { c.Flash.Backend = "nand" }, "oneof"},
		{"file backend without path", func(c *Config) { c.Flash.Path = "" }, "required_if"},
		{"bad policy", func(c *Config) { c.Flash.AccessPolicy = "guess" }, "oneof"},
		{"bad erase mode", func(c *Config) { c.BlockDev.EraseMode = "trim" }, "oneof"},
		{"bad listen", func(c *Config) { c.Metrics.Listen = "no-port" }, "hostname_port"},
		{"size not whole pages", func(c *Config) { c.Flash.Size = 1000 }, "multiple of page size"},
		{"blocks past end", func(c *Config) { c.BlockDev.BlockCount = 1024 }, "flash is"},
		{"block smaller than page", func(c *Config) {
			c.BlockDev.BlockSize = 256
			c.BlockDev.CacheSize = 256
		}, "not a multiple of page size"},
		{"lookahead not multiple of 8", func(c *Config) { c.BlockDev.LookaheadSize = 12 }, "lookahead"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := GetDefaultConfig()
	cfg.Flash.Backend = "mem"
	cfg.Metrics.Enabled = true

	require.NoError(t, SaveConfig(cfg, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "blockdev")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestInitConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig("", false)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfigPath(), path)
	assert.FileExists(t, path)

	_, err = InitConfig("", false)
	assert.ErrorIs(t, err, ErrConfigExists)

	_, err = InitConfig("", true)
	assert.NoError(t, err)
}
