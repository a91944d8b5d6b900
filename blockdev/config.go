package blockdev

import (
	"errors"
	"fmt"
)

// ErrConfig reports a block geometry the filesystem and the flash cannot
// agree on.
var ErrConfig = errors.New("blockdev: invalid configuration")

// EraseMode selects what EraseBlock leaves behind.
type EraseMode uint8

const (
	// EraseRaw erases the block's pages and leaves them erased; reads of
	// the block fault until it is programmed.
	EraseRaw EraseMode = iota
	// EraseZeroFill zero-fills the block so it stays readable. A filesystem
	// that reads blocks it has just erased needs this mode.
	EraseZeroFill
)

func (m EraseMode) String() string {
	if m == EraseZeroFill {
		return "zero"
	}
	return "raw"
}

func ParseEraseMode(s string) (EraseMode, error) {
	switch s {
	case "", "raw":
		return EraseRaw, nil
	case "zero":
		return EraseZeroFill, nil
	default:
		return EraseRaw, fmt.Errorf("%w: erase mode %q", ErrConfig, s)
	}
}

// Config is the fixed geometry a filesystem is mounted with. Block N of the
// filesystem lives at physical address (N+BlockOffset)*BlockSize.
type Config struct {
	BlockSize     uint32
	BlockCount    uint32
	BlockOffset   uint32
	ReadSize      uint32
	ProgSize      uint32
	CacheSize     uint32
	LookaheadSize uint32
	// BlockCycles is advisory wear bound passed to the filesystem.
	BlockCycles int32
	EraseMode   EraseMode
}

// DefaultConfig reserves the first 64 KiB and gives the filesystem the next
// 128 KiB in 4 KiB blocks.
func DefaultConfig() Config {
	return Config{
		BlockSize:     4096,
		BlockCount:    32,
		BlockOffset:   16,
		ReadSize:      256,
		ProgSize:      256,
		CacheSize:     256,
		LookaheadSize: 32,
		BlockCycles:   500,
		EraseMode:     EraseRaw,
	}
}

// Validate checks the parts of the geometry that do not depend on the flash.
func (c Config) Validate() error {
	switch {
	case c.BlockSize == 0 || c.BlockCount == 0:
		return fmt.Errorf("%w: block size %d, count %d", ErrConfig, c.BlockSize, c.BlockCount)
	case c.ReadSize == 0 || c.BlockSize%c.ReadSize != 0:
		return fmt.Errorf("%w: read size %d does not divide block size %d", ErrConfig, c.ReadSize, c.BlockSize)
	case c.ProgSize == 0 || c.BlockSize%c.ProgSize != 0:
		return fmt.Errorf("%w: prog size %d does not divide block size %d", ErrConfig, c.ProgSize, c.BlockSize)
	case c.CacheSize == 0 || c.CacheSize%c.ReadSize != 0 || c.CacheSize%c.ProgSize != 0 || c.BlockSize%c.CacheSize != 0:
		return fmt.Errorf("%w: cache size %d must be a multiple of read/prog size and divide block size", ErrConfig, c.CacheSize)
	case c.LookaheadSize == 0 || c.LookaheadSize%8 != 0:
		return fmt.Errorf("%w: lookahead size %d must be a non-zero multiple of 8", ErrConfig, c.LookaheadSize)
	case c.EraseMode > EraseZeroFill:
		return fmt.Errorf("%w: erase mode %d", ErrConfig, c.EraseMode)
	}
	return nil
}

// Fit checks the geometry against a flash with the given page and total size.
func (c Config) Fit(pageSize, flashSize uint32) error {
	if pageSize == 0 || c.BlockSize%pageSize != 0 {
		return fmt.Errorf("%w: block size %d is not a multiple of page size %d", ErrConfig, c.BlockSize, pageSize)
	}
	end := (uint64(c.BlockOffset) + uint64(c.BlockCount)) * uint64(c.BlockSize)
	if end > uint64(flashSize) {
		return fmt.Errorf("%w: blocks %d..%d of %d bytes end at %d, flash is %d bytes", ErrConfig,
			c.BlockOffset, c.BlockOffset+c.BlockCount, c.BlockSize, end, flashSize)
	}
	return nil
}
