//go:build !cgo && !tinygo

package littlefs

import (
	"errors"

	"tinygo.org/x/tinyfs"
)

// New is unavailable without cgo: the LittleFS core is C.
func New(_ tinyfs.BlockDevice, _ Options) (*FS, error) {
	return nil, errors.New("littlefs: requires cgo")
}
