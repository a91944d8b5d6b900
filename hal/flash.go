package hal

import (
	"errors"
	"fmt"
)

// ErasedByte is the value every byte of an erased page reads back as once it
// has been made accessible again.
const ErasedByte = 0xFF

var (
	// ErrNotErased is returned by VerifyErase when any byte in the range is
	// not in the erased state.
	ErrNotErased = errors.New("flash: region not erased")
	// ErrAccessFault models the bus fault raised when reading erased memory.
	ErrAccessFault = errors.New("flash: access fault on erased region")
	// ErrProgramRequiresErase is returned when programming a page that has
	// not been erased since it was last programmed.
	ErrProgramRequiresErase = errors.New("flash: program requires erase")
	ErrOutOfRange           = errors.New("flash: address out of range")
	ErrMisaligned           = errors.New("flash: address or size not page aligned")
	ErrNotInitialized       = errors.New("flash: driver not initialized")
)

// MismatchError reports the first byte that failed program verification.
type MismatchError struct {
	Addr uint32
	Want byte
	Got  byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("flash: verify mismatch at 0x%08x: want 0x%02x got 0x%02x", e.Addr, e.Want, e.Got)
}

// Flash is the in-application-programming surface of a flash controller.
//
// It is intentionally low-level: every mutating call works on whole pages and
// nothing here hides the erased state. Higher layers decide when a region is
// safe to read.
type Flash interface {
	// Init brings up the controller. It must succeed before any other call.
	Init() error
	PageBytes() uint32
	SizeBytes() uint32
	// Erase erases [addr, addr+size). Both must be page aligned.
	Erase(addr, size uint32) error
	// VerifyErase returns nil iff every byte in the range is erased,
	// ErrNotErased if any is not, or another error if the check itself failed.
	VerifyErase(addr, size uint32) error
	// Program writes data into erased, page-aligned memory.
	Program(addr uint32, data []byte) error
	// VerifyProgram compares flash contents with data and returns a
	// *MismatchError for the first difference.
	VerifyProgram(addr uint32, data []byte) error
	// Read copies flash contents into p. Reading erased memory is an
	// ErrAccessFault.
	Read(addr uint32, p []byte) error
}

func checkPageRange(addr, size, pageBytes, total uint32) error {
	if pageBytes == 0 {
		return ErrNotInitialized
	}
	if addr%pageBytes != 0 || size%pageBytes != 0 {
		return fmt.Errorf("flash range off=%d size=%d: %w", addr, size, ErrMisaligned)
	}
	return checkRange(addr, size, total)
}

func checkRange(addr, size, total uint32) error {
	if uint64(addr)+uint64(size) > uint64(total) {
		return fmt.Errorf("flash range off=%d size=%d: %w", addr, size, ErrOutOfRange)
	}
	return nil
}
