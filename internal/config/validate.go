package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"flashcore/blockdev"
	"flashcore/flash"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then the cross-field rules: the flash
// size must be whole pages and the block geometry must fit the flash.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if cfg.Flash.Size%cfg.Flash.PageSize != 0 {
		return fmt.Errorf("flash size %d is not a multiple of page size %d", cfg.Flash.Size, cfg.Flash.PageSize)
	}
	if _, err := cfg.Flash.Policy(); err != nil {
		return err
	}

	bd, err := cfg.BlockDev.Device()
	if err != nil {
		return err
	}
	if err := bd.Validate(); err != nil {
		return err
	}
	return bd.Fit(cfg.Flash.PageSize, cfg.Flash.Size)
}

// Policy parses AccessPolicy.
func (c FlashConfig) Policy() (flash.AccessPolicy, error) {
	return flash.ParseAccessPolicy(c.AccessPolicy)
}

// Device converts the section into a block device geometry.
func (c BlockDevConfig) Device() (blockdev.Config, error) {
	mode, err := blockdev.ParseEraseMode(c.EraseMode)
	if err != nil {
		return blockdev.Config{}, err
	}
	return blockdev.Config{
		BlockSize:     c.BlockSize,
		BlockCount:    c.BlockCount,
		BlockOffset:   c.BlockOffset,
		ReadSize:      c.ReadSize,
		ProgSize:      c.ProgSize,
		CacheSize:     c.CacheSize,
		LookaheadSize: c.LookaheadSize,
		BlockCycles:   c.BlockCycles,
		EraseMode:     mode,
	}, nil
}
