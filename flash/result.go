package flash

import (
	"errors"
	"fmt"
)

// Result is the coarse outcome callers of this package switch on.
type Result uint8

const (
	ResultOK Result = iota
	// ResultFailed covers rejected requests and hardware failures.
	ResultFailed
	// ResultFault means a read touched erased memory; the buffer holds the
	// erased fill pattern.
	ResultFault
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultFailed:
		return "FAILED"
	case ResultFault:
		return "FAULT"
	default:
		return fmt.Sprintf("Result(%d)", uint8(r))
	}
}

var (
	// ErrParam reports a misaligned address or a wrongly sized request. No
	// hardware call was made.
	ErrParam = errors.New("flash: invalid parameter")
	// ErrHardware reports an erase, program or verify failure. The pages
	// involved are indeterminate.
	ErrHardware = errors.New("flash: hardware operation failed")
	// ErrFault reports a read of erased memory.
	ErrFault          = errors.New("flash: access fault")
	ErrNotInitialized = errors.New("flash: driver not initialized")
)

// ResultOf classifies err.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrFault):
		return ResultFault
	default:
		return ResultFailed
	}
}

// HardwareError wraps a failed controller primitive. It matches ErrHardware
// and unwraps to the controller's error, so a verification failure can be
// inspected with errors.As(err, **hal.MismatchError).
type HardwareError struct {
	Op   string
	Addr uint32
	Err  error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("flash %s at 0x%08x: %v", e.Op, e.Addr, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }

func (e *HardwareError) Is(target error) bool { return target == ErrHardware }

// FaultError is returned by Read for a region in the erased state.
//
// Assumed is set when the erased state was not verified but inferred from a
// failed verification under AssumeErased.
type FaultError struct {
	Addr    uint32
	Length  uint32
	Assumed bool
	Err     error
}

func (e *FaultError) Error() string {
	msg := fmt.Sprintf("flash read off=%d len=%d: region erased", e.Addr, e.Length)
	if e.Assumed {
		msg += " (assumed)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FaultError) Unwrap() error { return e.Err }

func (e *FaultError) Is(target error) bool { return target == ErrFault }

// InitError is the fatal outcome of Driver.Init. Nothing built on the driver
// can work after it; the boot sequence must stop.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return "flash init failed: " + e.Err.Error()
}

func (e *InitError) Unwrap() error { return e.Err }
