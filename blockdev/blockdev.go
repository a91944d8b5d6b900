// Package blockdev exposes a flash.Driver as a fixed-geometry block device
// for a log-structured filesystem.
package blockdev

import (
	"errors"
	"fmt"

	"flashcore/flash"
)

// Status is a filesystem block-device return code.
type Status int

const (
	StatusOK    Status = 0
	StatusIO    Status = -5
	StatusInval Status = -22
)

var (
	ErrIO    = errors.New("blockdev: i/o error")
	ErrInval = errors.New("blockdev: invalid argument")
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusIO:
		return "IO"
	case StatusInval:
		return "INVAL"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Err returns nil, ErrIO or ErrInval.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusInval:
		return ErrInval
	default:
		return ErrIO
	}
}

// StatusOf maps a driver error to a filesystem status.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInval):
		return StatusInval
	default:
		return StatusIO
	}
}

// Device translates block/offset requests into driver calls. It holds no
// cache, so Sync has nothing to do.
type Device struct {
	drv *flash.Driver
	cfg Config
}

// New validates cfg. The fit against the flash is checked by Init, once the
// driver knows its geometry.
func New(drv *flash.Driver, cfg Config) (*Device, error) {
	if drv == nil {
		return nil, fmt.Errorf("%w: nil driver", ErrConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Device{drv: drv, cfg: cfg}, nil
}

// Init initializes the driver. A driver failure is returned as
// *flash.InitError and is fatal; a geometry mismatch wraps ErrConfig.
func (d *Device) Init() error {
	if err := d.drv.Init(); err != nil {
		return err
	}
	return d.cfg.Fit(d.drv.PageSize(), d.drv.Size())
}

// Deinit leaves the driver initialized; it has no teardown.
func (d *Device) Deinit() error {
	return d.drv.Deinit()
}

func (d *Device) Config() Config { return d.cfg }

func (d *Device) Driver() *flash.Driver { return d.drv }

// Addr returns the physical address of byte off in filesystem block.
func (d *Device) Addr(block, off uint32) uint32 {
	return (block+d.cfg.BlockOffset)*d.cfg.BlockSize + off
}

func (d *Device) ReadBlock(block, off uint32, buf []byte) Status {
	return StatusOf(d.readBlock(block, off, buf))
}

func (d *Device) ProgramBlock(block, off uint32, buf []byte) Status {
	return StatusOf(d.programBlock(block, off, buf))
}

func (d *Device) EraseBlock(block uint32) Status {
	return StatusOf(d.eraseBlock(block))
}

func (d *Device) Sync() Status {
	return StatusOK
}

func (d *Device) readBlock(block, off uint32, buf []byte) error {
	if err := d.check(block, off, len(buf)); err != nil {
		return err
	}
	if err := d.drv.Read(d.Addr(block, off), buf); err != nil {
		return fmt.Errorf("%w: read block=%d off=%d: %w", ErrIO, block, off, err)
	}
	return nil
}

func (d *Device) programBlock(block, off uint32, buf []byte) error {
	if err := d.check(block, off, len(buf)); err != nil {
		return err
	}
	if err := d.drv.Program(d.Addr(block, off), buf); err != nil {
		return fmt.Errorf("%w: prog block=%d off=%d: %w", ErrIO, block, off, err)
	}
	return nil
}

func (d *Device) eraseBlock(block uint32) error {
	if err := d.check(block, 0, 0); err != nil {
		return err
	}
	addr := d.Addr(block, 0)
	var err error
	if d.cfg.EraseMode == EraseZeroFill {
		err = d.drv.Erase(addr, d.cfg.BlockSize)
	} else {
		err = d.drv.InitErase(addr, d.cfg.BlockSize)
	}
	if err != nil {
		return fmt.Errorf("%w: erase block=%d: %w", ErrIO, block, err)
	}
	return nil
}

func (d *Device) check(block, off uint32, n int) error {
	if block >= d.cfg.BlockCount || uint64(off)+uint64(n) > uint64(d.cfg.BlockSize) {
		return fmt.Errorf("%w: block=%d off=%d len=%d", ErrInval, block, off, n)
	}
	return nil
}
