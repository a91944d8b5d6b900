// Package config loads the host tools' configuration.
//
// Sources, highest precedence first:
//  1. CLI flags
//  2. Environment variables (FLASHCORE_*)
//  3. Configuration file (YAML)
//  4. Default values
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FLASHCORE_FLASH_PATH.
const EnvPrefix = "FLASHCORE"

// ErrConfigExists is returned by InitConfig when a file is already present.
var ErrConfigExists = errors.New("config file already exists")

// Config is the complete host-side configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Flash    FlashConfig    `mapstructure:"flash" yaml:"flash"`
	BlockDev BlockDevConfig `mapstructure:"blockdev" yaml:"blockdev"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (normalized to uppercase).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// FlashConfig selects and shapes the flash array the tools operate on.
type FlashConfig struct {
	// Backend is "file" for a persistent memory-mapped image or "mem" for a
	// throwaway in-memory array.
	Backend string `mapstructure:"backend" validate:"required,oneof=mem file" yaml:"backend"`

	// Path is the image file for the file backend. A "<path>.state" file
	// next to it records which pages are erased.
	Path string `mapstructure:"path" validate:"required_if=Backend file" yaml:"path"`

	// PageSize is the program/erase unit in bytes.
	PageSize uint32 `mapstructure:"page_size" validate:"required" yaml:"page_size"`

	// Size is the array size for new images. Existing images keep theirs.
	Size uint32 `mapstructure:"size" validate:"required" yaml:"size"`

	// AccessPolicy decides what the accessibility check answers when the
	// controller cannot tell: assume-accessible or assume-erased.
	AccessPolicy string `mapstructure:"access_policy" validate:"required,oneof=assume-accessible assume-erased" yaml:"access_policy"`
}

// BlockDevConfig is the filesystem block geometry over the flash.
type BlockDevConfig struct {
	BlockSize     uint32 `mapstructure:"block_size" validate:"required" yaml:"block_size"`
	BlockCount    uint32 `mapstructure:"block_count" validate:"required" yaml:"block_count"`
	BlockOffset   uint32 `mapstructure:"block_offset" yaml:"block_offset"`
	ReadSize      uint32 `mapstructure:"read_size" validate:"required" yaml:"read_size"`
	ProgSize      uint32 `mapstructure:"prog_size" validate:"required" yaml:"prog_size"`
	CacheSize     uint32 `mapstructure:"cache_size" validate:"required" yaml:"cache_size"`
	LookaheadSize uint32 `mapstructure:"lookahead_size" validate:"required" yaml:"lookahead_size"`
	BlockCycles   int32  `mapstructure:"block_cycles" yaml:"block_cycles"`

	// EraseMode is "raw" (leave pages erased) or "zero" (zero-fill so the
	// block stays readable). The filesystem commands always use zero.
	EraseMode string `mapstructure:"erase_mode" validate:"required,oneof=raw zero" yaml:"erase_mode"`
}

// MetricsConfig configures the Prometheus endpoint of long-running commands.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the host:port the /metrics handler binds to.
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port" yaml:"listen"`
}

// Load reads configuration from configPath (or the default location when
// empty), overlays FLASHCORE_* environment variables, fills defaults and
// validates the result. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes cfg as YAML, creating the parent directory.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// InitConfig writes the default configuration to path, or to the default
// location when path is empty, and returns where it was written.
func InitConfig(path string, force bool) (string, error) {
	if path == "" {
		path = GetDefaultConfigPath()
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	if err := SaveConfig(GetDefaultConfig(), path); err != nil {
		return path, err
	}
	return path, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// FLASHCORE_FLASH_PAGE_SIZE=1024 overrides flash.page_size.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about.
	registerDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func registerDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("flash.backend", d.Flash.Backend)
	v.SetDefault("flash.path", d.Flash.Path)
	v.SetDefault("flash.page_size", d.Flash.PageSize)
	v.SetDefault("flash.size", d.Flash.Size)
	v.SetDefault("flash.access_policy", d.Flash.AccessPolicy)

	v.SetDefault("blockdev.block_size", d.BlockDev.BlockSize)
	v.SetDefault("blockdev.block_count", d.BlockDev.BlockCount)
	v.SetDefault("blockdev.block_offset", d.BlockDev.BlockOffset)
	v.SetDefault("blockdev.read_size", d.BlockDev.ReadSize)
	v.SetDefault("blockdev.prog_size", d.BlockDev.ProgSize)
	v.SetDefault("blockdev.cache_size", d.BlockDev.CacheSize)
	v.SetDefault("blockdev.lookahead_size", d.BlockDev.LookaheadSize)
	v.SetDefault("blockdev.block_cycles", d.BlockDev.BlockCycles)
	v.SetDefault("blockdev.erase_mode", d.BlockDev.EraseMode)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
}

// readConfigFile reports whether a config file was read.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// getConfigDir uses XDG_CONFIG_HOME if set, otherwise ~/.config, or the
// current directory when no home directory is known.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "flashcore")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "flashcore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
