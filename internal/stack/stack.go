// Package stack assembles the flash stack the host tools operate on from
// a loaded configuration.
package stack

import (
	"fmt"
	"io"
	"time"

	"flashcore/blockdev"
	"flashcore/flash"
	"flashcore/fs/littlefs"
	"flashcore/hal"
	"flashcore/internal/config"
	"flashcore/internal/logger"
)

// Stack is an initialized flash driver over the configured backend.
type Stack struct {
	cfg *config.Config

	// Sim is the simulated array behind the driver. Both host backends
	// are simulations, so it is always set; it exposes wear counters.
	Sim    *hal.SimFlash
	Driver *flash.Driver

	closer io.Closer
}

// Open opens the configured backend and initializes the driver on it.
func Open(cfg *config.Config, m flash.Metrics) (*Stack, error) {
	policy, err := cfg.Flash.Policy()
	if err != nil {
		return nil, err
	}

	s := &Stack{cfg: cfg}
	switch cfg.Flash.Backend {
	case "file":
		ff, err := hal.OpenFileFlash(cfg.Flash.Path, cfg.Flash.Size, cfg.Flash.PageSize)
		if err != nil {
			return nil, err
		}
		s.Sim, s.closer = ff.SimFlash, ff
	case "mem":
		sim, err := hal.NewSimFlash(cfg.Flash.Size, cfg.Flash.PageSize)
		if err != nil {
			return nil, err
		}
		s.Sim = sim
	default:
		return nil, fmt.Errorf("unknown flash backend %q", cfg.Flash.Backend)
	}

	start := time.Now()
	s.Driver = flash.New(s.Sim, flash.Options{Policy: policy, Metrics: m})
	if err := s.Driver.Init(); err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Debug("flash ready",
		logger.KeyPath, cfg.Flash.Path,
		"backend", cfg.Flash.Backend,
		"size", s.Driver.Size(),
		"page_size", s.Driver.PageSize(),
		"policy", policy.String(),
		logger.KeyDurationMs, logger.Duration(start))
	return s, nil
}

// BlockDevice builds the configured block device. When mode is non-nil it
// replaces the configured erase mode.
func (s *Stack) BlockDevice(mode *blockdev.EraseMode) (*blockdev.Device, error) {
	bc, err := s.cfg.BlockDev.Device()
	if err != nil {
		return nil, err
	}
	if mode != nil {
		bc.EraseMode = *mode
	}
	dev, err := blockdev.New(s.Driver, bc)
	if err != nil {
		return nil, err
	}
	if err := dev.Init(); err != nil {
		return nil, err
	}
	return dev, nil
}

// FS returns an unmounted LittleFS over a zero-fill block device.
func (s *Stack) FS() (*littlefs.FS, error) {
	zero := blockdev.EraseZeroFill
	dev, err := s.BlockDevice(&zero)
	if err != nil {
		return nil, err
	}
	bc := dev.Config()
	return littlefs.New(dev, littlefs.Options{
		CacheSize:     bc.CacheSize,
		LookaheadSize: bc.LookaheadSize,
		BlockCycles:   bc.BlockCycles,
	})
}

// Close persists a file backend. It is safe to call more than once.
func (s *Stack) Close() error {
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	if err := c.Close(); err != nil {
		return fmt.Errorf("close flash image: %w", err)
	}
	return nil
}
