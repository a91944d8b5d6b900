// Package app brings the flash stack up on a HAL: driver, block device and
// LittleFS volume, in that order.
package app

import (
	"fmt"
	"strconv"

	"flashcore/blockdev"
	"flashcore/flash"
	"flashcore/fs/littlefs"
	"flashcore/hal"
)

// BootLog is appended with one line per successful boot.
const BootLog = "/boot.log"

type Config struct {
	Policy flash.AccessPolicy
	// BlockDev is the filesystem geometry. Its EraseMode is forced to
	// EraseZeroFill because LittleFS reads blocks right after erasing them.
	BlockDev blockdev.Config
	Metrics  flash.Metrics
	// OpenFS builds the filesystem over the block device. Nil means
	// littlefs.New.
	OpenFS func(dev *blockdev.Device, opts littlefs.Options) (*littlefs.FS, error)
}

func DefaultConfig() Config {
	return Config{BlockDev: blockdev.DefaultConfig()}
}

// System is a booted flash stack.
type System struct {
	HAL       hal.HAL
	Flash     *flash.Driver
	Dev       *blockdev.Device
	FS        *littlefs.FS
	Formatted bool
	Boots     int
}

// Boot initializes the flash driver, mounts the filesystem (formatting it
// when no valid volume is found) and records the boot in BootLog.
//
// A driver that fails to initialize is fatal: Boot lights the LED and
// returns the *flash.InitError.
func Boot(h hal.HAL, cfg Config) (*System, error) {
	l := h.Logger()

	drv := flash.New(h.Flash(), flash.Options{Policy: cfg.Policy, Metrics: cfg.Metrics})
	if err := drv.Init(); err != nil {
		if led := h.LED(); led != nil {
			led.High()
		}
		logLine(l, "flash: init failed: "+err.Error())
		return nil, err
	}
	logLine(l, fmt.Sprintf("flash: %d bytes, %d byte pages, policy %s", drv.Size(), drv.PageSize(), drv.Policy()))

	bc := cfg.BlockDev
	bc.EraseMode = blockdev.EraseZeroFill
	dev, err := blockdev.New(drv, bc)
	if err != nil {
		return nil, err
	}
	if err := dev.Init(); err != nil {
		return nil, err
	}

	open := cfg.OpenFS
	if open == nil {
		open = func(dev *blockdev.Device, opts littlefs.Options) (*littlefs.FS, error) {
			return littlefs.New(dev, opts)
		}
	}
	fsys, err := open(dev, littlefs.Options{
		CacheSize:     bc.CacheSize,
		LookaheadSize: bc.LookaheadSize,
		BlockCycles:   bc.BlockCycles,
	})
	if err != nil {
		return nil, fmt.Errorf("littlefs: %w", err)
	}
	formatted, err := fsys.MountOrFormat()
	if err != nil {
		return nil, fmt.Errorf("littlefs mount: %w", err)
	}
	if formatted {
		logLine(l, "littlefs: no volume found, formatted")
	}

	sys := &System{HAL: h, Flash: drv, Dev: dev, FS: fsys, Formatted: formatted}
	if err := sys.recordBoot(); err != nil {
		_ = fsys.Unmount()
		return nil, err
	}
	logLine(l, "littlefs: mounted, boot "+strconv.Itoa(sys.Boots))
	return sys, nil
}

func (s *System) recordBoot() error {
	// A missing log is the first boot on this volume.
	if _, err := s.FS.Stat(BootLog); err == nil {
		lines, err := s.FS.ReadLines(BootLog)
		if err != nil {
			return fmt.Errorf("read %s: %w", BootLog, err)
		}
		s.Boots = len(lines)
	}
	s.Boots++
	if err := s.FS.AppendLine(BootLog, "boot "+strconv.Itoa(s.Boots)); err != nil {
		return fmt.Errorf("append %s: %w", BootLog, err)
	}
	return nil
}

// Shutdown unmounts the filesystem and releases the driver.
func (s *System) Shutdown() error {
	err := s.FS.Unmount()
	if derr := s.Dev.Deinit(); err == nil {
		err = derr
	}
	return err
}

func logLine(l hal.Logger, s string) {
	if l != nil {
		l.WriteLineString(s)
	}
}
