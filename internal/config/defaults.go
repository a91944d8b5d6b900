package config

import (
	"strings"

	"flashcore/blockdev"
	"flashcore/flash"
)

const (
	DefaultFlashPath     = "flashcore.flash"
	DefaultFlashSize     = 256 * 1024
	DefaultFlashPageSize = 512
	DefaultMetricsListen = "localhost:9464"
)

// ApplyDefaults fills zero-valued fields. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyFlashDefaults(&cfg.Flash)
	applyBlockDevDefaults(&cfg.BlockDev)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyFlashDefaults(cfg *FlashConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "file"
	}
	if cfg.Path == "" && cfg.Backend == "file" {
		cfg.Path = DefaultFlashPath
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultFlashPageSize
	}
	if cfg.Size == 0 {
		cfg.Size = DefaultFlashSize
	}
	if cfg.AccessPolicy == "" {
		cfg.AccessPolicy = flash.AssumeAccessible.String()
	}
}

func applyBlockDevDefaults(cfg *BlockDevConfig) {
	d := blockdev.DefaultConfig()

	if cfg.BlockSize == 0 {
		cfg.BlockSize = d.BlockSize
	}
	if cfg.BlockCount == 0 {
		cfg.BlockCount = d.BlockCount
	}
	// BlockOffset 0 is a valid layout and is left alone.
	if cfg.ReadSize == 0 {
		cfg.ReadSize = d.ReadSize
	}
	if cfg.ProgSize == 0 {
		cfg.ProgSize = d.ProgSize
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = d.CacheSize
	}
	if cfg.LookaheadSize == 0 {
		cfg.LookaheadSize = d.LookaheadSize
	}
	if cfg.BlockCycles == 0 {
		cfg.BlockCycles = d.BlockCycles
	}
	if cfg.EraseMode == "" {
		cfg.EraseMode = d.EraseMode.String()
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = DefaultMetricsListen
	}
}

// GetDefaultConfig returns a complete configuration with every default set.
func GetDefaultConfig() *Config {
	d := blockdev.DefaultConfig()
	cfg := &Config{
		BlockDev: BlockDevConfig{BlockOffset: d.BlockOffset},
	}
	ApplyDefaults(cfg)
	return cfg
}
