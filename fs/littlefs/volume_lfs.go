//go:build cgo || tinygo

package littlefs

import (
	"errors"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

// New configures LittleFS on dev. Block size and count come from the
// device's erase-block geometry; read and prog sizes from its write block
// size.
func New(dev tinyfs.BlockDevice, opts Options) (*FS, error) {
	if dev == nil {
		return nil, errors.New("littlefs: nil block device")
	}
	if dev.EraseBlockSize() <= 0 || dev.Size()%dev.EraseBlockSize() != 0 {
		return nil, ErrInvalid
	}
	opts = opts.withDefaults()
	lfs := littlefs.New(dev).Configure(&littlefs.Config{
		CacheSize:     opts.CacheSize,
		LookaheadSize: opts.LookaheadSize,
		BlockCycles:   opts.BlockCycles,
	})
	return NewOnVolume(lfsVolume{LFS: lfs}), nil
}

type lfsVolume struct {
	*littlefs.LFS
}

func (v lfsVolume) OpenFile(path string, flags int) (File, error) {
	f, err := v.LFS.OpenFile(path, flags)
	if err != nil {
		return nil, err
	}
	return f, nil
}
