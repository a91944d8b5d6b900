// Package flash is the byte-addressable layer over a page-granular flash
// controller. It gates every read on erase verification, merges unaligned
// writes into whole-page erase/program/verify cycles and provides the raw
// and zero-fill bulk erases.
//
// A Driver is safe for concurrent use; one mutex serializes every entry
// point. Nothing is retried: a failed erase or program is reported and the
// pages it touched are left indeterminate.
package flash

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"flashcore/hal"
)

// Op names an entry point for metrics.
type Op string

const (
	OpRead        Op = "read"
	OpProgramPage Op = "program_page"
	OpProgram     Op = "program"
	OpInitErase   Op = "init_erase"
	OpErase       Op = "erase"
)

// Metrics receives one observation per completed entry point. A nil Metrics
// in Options disables collection.
type Metrics interface {
	ObserveOp(op Op, res Result, bytes int, elapsed time.Duration)
	ObservePageErase()
}

type Options struct {
	Policy  AccessPolicy
	Metrics Metrics
}

// Driver owns one flash controller.
type Driver struct {
	mu   sync.Mutex
	hw   hal.Flash
	opts Options

	ready   bool
	page    uint32
	size    uint32
	scratch []byte
	zero    []byte
}

func New(hw hal.Flash, opts Options) *Driver {
	return &Driver{hw: hw, opts: opts}
}

// Init brings up the controller and sizes the page buffers from its
// geometry. Any failure is returned as *InitError. Calling Init again after
// success does nothing.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ready {
		return nil
	}
	if d.hw == nil {
		return &InitError{Err: errors.New("no flash controller")}
	}
	if err := d.hw.Init(); err != nil {
		return &InitError{Err: err}
	}
	page, size := d.hw.PageBytes(), d.hw.SizeBytes()
	if page == 0 || size == 0 || size%page != 0 {
		return &InitError{Err: fmt.Errorf("bad geometry: size %d, page %d", size, page)}
	}
	d.page = page
	d.size = size
	d.scratch = make([]byte, page)
	d.zero = make([]byte, page)
	d.ready = true
	return nil
}

// Deinit exists for symmetry with Init. The controller has no teardown.
func (d *Driver) Deinit() error {
	return nil
}

// PageSize is zero before Init.
func (d *Driver) PageSize() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page
}

func (d *Driver) Size() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// Policy returns the configured AccessPolicy.
func (d *Driver) Policy() AccessPolicy {
	return d.opts.Policy
}

// Read copies [addr, addr+len(buf)) into buf. If the region is erased, buf
// is filled with hal.ErasedByte and the error matches ErrFault; erased
// memory is never read.
func (d *Driver) Read(addr uint32, buf []byte) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe(OpRead, len(buf), time.Now(), &err)

	if err := d.checkLocked(addr, uint32(len(buf))); err != nil {
		return err
	}
	return d.readLocked(addr, buf)
}

// ProgramPage erases, verifies, programs and verifies one page. addr must be
// page aligned and len(data) must equal the page size.
func (d *Driver) ProgramPage(addr uint32, data []byte) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe(OpProgramPage, len(data), time.Now(), &err)

	if !d.ready {
		return ErrNotInitialized
	}
	return d.programPageLocked(addr, data)
}

func (d *Driver) readLocked(addr uint32, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	n := uint32(len(buf))
	erased, verr := d.erasedLocked(addr, n)
	if erased {
		fill(buf)
		return &FaultError{Addr: addr, Length: n, Assumed: verr != nil, Err: verr}
	}
	if err := d.hw.Read(addr, buf); err != nil {
		// Part of the range is erased even though the whole is not.
		if errors.Is(err, hal.ErrAccessFault) {
			fill(buf)
			return &FaultError{Addr: addr, Length: n, Err: err}
		}
		return &HardwareError{Op: "read", Addr: addr, Err: err}
	}
	return nil
}

func (d *Driver) programPageLocked(addr uint32, data []byte) error {
	if addr%d.page != 0 || uint32(len(data)) != d.page {
		return fmt.Errorf("program page off=%d len=%d (page %d): %w", addr, len(data), d.page, ErrParam)
	}
	if err := d.checkLocked(addr, d.page); err != nil {
		return err
	}
	if err := d.erasePageLocked(addr); err != nil {
		return err
	}
	if err := d.hw.VerifyErase(addr, d.page); err != nil {
		return &HardwareError{Op: "verify erase", Addr: addr, Err: err}
	}
	if err := d.hw.Program(addr, data); err != nil {
		return &HardwareError{Op: "program", Addr: addr, Err: err}
	}
	if err := d.hw.VerifyProgram(addr, data); err != nil {
		return &HardwareError{Op: "verify program", Addr: addr, Err: err}
	}
	return nil
}

func (d *Driver) erasePageLocked(addr uint32) error {
	if err := d.hw.Erase(addr, d.page); err != nil {
		return &HardwareError{Op: "erase", Addr: addr, Err: err}
	}
	if d.opts.Metrics != nil {
		d.opts.Metrics.ObservePageErase()
	}
	return nil
}

// checkLocked rejects requests before Init and ranges past the device end.
func (d *Driver) checkLocked(addr, length uint32) error {
	if !d.ready {
		return ErrNotInitialized
	}
	if uint64(addr)+uint64(length) > uint64(d.size) {
		return fmt.Errorf("flash range off=%d len=%d (size %d): %w", addr, length, d.size, ErrParam)
	}
	return nil
}

func (d *Driver) observe(op Op, n int, start time.Time, errp *error) {
	if d.opts.Metrics == nil {
		return
	}
	d.opts.Metrics.ObserveOp(op, ResultOf(*errp), n, time.Since(start))
}

func fill(buf []byte) {
	for i := range buf {
		buf[i] = hal.ErasedByte
	}
}
