//go:build !tinygo

package hal

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/bits-and-blooms/bitset"
	"github.com/edsrzf/mmap-go"
)

const (
	hostFlashDefaultPath      = "flashcore.flash"
	hostFlashDefaultSizeBytes = 256 * 1024
	hostFlashDefaultPageBytes = 512

	stateSuffix = ".state"
)

// FileFlash is a SimFlash whose array lives in a memory-mapped image file.
// The erased-page map is persisted next to the image in "<path>.state".
type FileFlash struct {
	*SimFlash

	f         *os.File
	mm        mmap.MMap
	statePath string
}

// OpenFileFlash maps the image at path, creating a factory-fresh (fully
// erased) image of size bytes when the file is new or empty. An existing
// image keeps its own size.
func OpenFileFlash(path string, size, pageBytes uint32) (*FileFlash, error) {
	if pageBytes == 0 {
		return nil, fmt.Errorf("flash image %q: page size is zero", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open flash image %q: %w", path, err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat flash image %q: %w", path, err)
	}
	fresh := st.Size() == 0
	if fresh {
		if size == 0 || size%pageBytes != 0 {
			_ = f.Close()
			return nil, fmt.Errorf("flash image %q: size %d not a multiple of page size %d", path, size, pageBytes)
		}
		if err := f.Truncate(int64(size)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("truncate flash image %q to %d: %w", path, size, err)
		}
	} else {
		if st.Size() > int64(^uint32(0)) || st.Size()%int64(pageBytes) != 0 {
			_ = f.Close()
			return nil, fmt.Errorf("flash image %q: size %d not a multiple of page size %d", path, st.Size(), pageBytes)
		}
	}

	mm, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("map flash image %q: %w", path, err)
	}

	pages := uint(uint32(len(mm)) / pageBytes)
	statePath := path + stateSuffix
	var erased *bitset.BitSet
	switch {
	case fresh:
		for i := range mm {
			mm[i] = ErasedByte
		}
		erased = bitset.New(pages)
		for p := uint(0); p < pages; p++ {
			erased.Set(p)
		}
	default:
		erased, err = loadState(statePath, mm, pageBytes)
		if err != nil {
			_ = mm.Unmap()
			_ = f.Close()
			return nil, err
		}
	}

	ff := &FileFlash{
		SimFlash:  newSimFlashOn(mm, pageBytes, erased),
		f:         f,
		mm:        mm,
		statePath: statePath,
	}
	if fresh {
		if err := ff.Sync(); err != nil {
			_ = ff.Close()
			return nil, err
		}
	}
	return ff, nil
}

// loadState reads the erased-page map. Images produced without one (for
// example by other tools) are scanned: a page that is all 0xFF is erased.
func loadState(statePath string, mm []byte, pageBytes uint32) (*bitset.BitSet, error) {
	raw, err := os.ReadFile(statePath)
	if err == nil {
		erased := &bitset.BitSet{}
		if err := erased.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("decode flash state %q: %w", statePath, err)
		}
		return erased, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read flash state %q: %w", statePath, err)
	}

	pages := uint(uint32(len(mm)) / pageBytes)
	blank := bytes.Repeat([]byte{ErasedByte}, int(pageBytes))
	erased := bitset.New(pages)
	for p := uint(0); p < pages; p++ {
		off := uint32(p) * pageBytes
		if bytes.Equal(mm[off:off+pageBytes], blank) {
			erased.Set(p)
		}
	}
	return erased, nil
}

// Sync flushes the mapping and persists the erased-page map.
func (f *FileFlash) Sync() error {
	f.SimFlash.mu.Lock()
	defer f.SimFlash.mu.Unlock()

	if err := f.mm.Flush(); err != nil {
		return fmt.Errorf("flush flash image: %w", err)
	}
	raw, err := f.erased.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode flash state: %w", err)
	}
	if err := os.WriteFile(f.statePath, raw, 0o644); err != nil {
		return fmt.Errorf("write flash state %q: %w", f.statePath, err)
	}
	return nil
}

// Close syncs and unmaps the image.
func (f *FileFlash) Close() error {
	syncErr := f.Sync()
	if err := f.mm.Unmap(); err != nil && syncErr == nil {
		syncErr = fmt.Errorf("unmap flash image: %w", err)
	}
	if err := f.f.Close(); err != nil && syncErr == nil {
		syncErr = err
	}
	return syncErr
}

func newHostFlash() Flash {
	path := os.Getenv("FLASHCORE_FLASH_PATH")
	if path == "" {
		path = hostFlashDefaultPath
	}
	ff, err := OpenFileFlash(path, hostFlashDefaultSizeBytes, hostFlashDefaultPageBytes)
	if err != nil {
		return stubFlash{err: err}
	}
	return ff
}
