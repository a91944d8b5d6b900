package hal

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// BlockDevice is the erase-block device shape shared by TinyGo's
// machine.Flash and the SPI NOR driver in tinygo.org/x/drivers/flash.
type BlockDevice interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
	EraseBlockSize() int64
	EraseBlocks(start, length int64) error
}

// blockFlash drives a BlockDevice as a page-granular controller. Such
// devices have no hardware erase verification and erased memory reads as
// ErasedByte, indistinguishable from programmed 0xFF data. Erase state is
// therefore tracked per page: Init seeds it by reading every page back,
// Erase sets it and Program clears it. VerifyProgram reads back.
type blockFlash struct {
	dev     BlockDevice
	scratch []byte
	erased  *bitset.BitSet
}

// NewBlockFlash wraps dev; its erase block becomes the page.
func NewBlockFlash(dev BlockDevice) Flash {
	return &blockFlash{dev: dev}
}

func (f *blockFlash) Init() error {
	bs := f.PageBytes()
	if bs == 0 {
		return fmt.Errorf("flash init: %w", ErrNotImplemented)
	}
	scratch := make([]byte, bs)
	pages := uint(f.SizeBytes() / bs)
	erased := bitset.New(pages)
	for p := uint(0); p < pages; p++ {
		blank, err := f.blankPage(uint32(p)*bs, scratch)
		if err != nil {
			return fmt.Errorf("flash init: %w", err)
		}
		if blank {
			erased.Set(p)
		}
	}
	f.scratch = scratch
	f.erased = erased
	return nil
}

func (f *blockFlash) blankPage(addr uint32, buf []byte) (bool, error) {
	if _, err := f.dev.ReadAt(buf, int64(addr)); err != nil {
		return false, fmt.Errorf("scan page at %d: %w", addr, err)
	}
	for _, b := range buf {
		if b != ErasedByte {
			return false, nil
		}
	}
	return true, nil
}

func (f *blockFlash) SizeBytes() uint32 {
	sz := f.dev.Size()
	if sz <= 0 {
		return 0
	}
	if sz > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(sz)
}

func (f *blockFlash) PageBytes() uint32 {
	bs := f.dev.EraseBlockSize()
	if bs <= 0 || bs > int64(^uint32(0)) {
		return 0
	}
	return uint32(bs)
}

func (f *blockFlash) Erase(addr, size uint32) error {
	if f.scratch == nil {
		return ErrNotInitialized
	}
	bs := f.PageBytes()
	if err := checkPageRange(addr, size, bs, f.SizeBytes()); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	if err := f.dev.EraseBlocks(int64(addr/bs), int64(size/bs)); err != nil {
		for off := addr; off < addr+size; off += bs {
			f.erased.Clear(uint(off / bs))
		}
		return fmt.Errorf("flash erase off=%d size=%d: %w", addr, size, err)
	}
	for off := addr; off < addr+size; off += bs {
		f.erased.Set(uint(off / bs))
	}
	return nil
}

func (f *blockFlash) VerifyErase(addr, size uint32) error {
	if f.scratch == nil {
		return ErrNotInitialized
	}
	if err := checkRange(addr, size, f.SizeBytes()); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	bs := f.PageBytes()
	for p := addr / bs; p <= (addr+size-1)/bs; p++ {
		if !f.erased.Test(uint(p)) {
			return ErrNotErased
		}
	}
	return nil
}

func (f *blockFlash) Program(addr uint32, data []byte) error {
	if f.scratch == nil {
		return ErrNotInitialized
	}
	bs := f.PageBytes()
	size := uint32(len(data))
	if err := checkPageRange(addr, size, bs, f.SizeBytes()); err != nil {
		return err
	}
	// Cleared first: a failed write leaves the pages indeterminate, not erased.
	for off := addr; off < addr+size; off += bs {
		f.erased.Clear(uint(off / bs))
	}
	if _, err := f.dev.WriteAt(data, int64(addr)); err != nil {
		return fmt.Errorf("flash program at %d: %w", addr, err)
	}
	return nil
}

func (f *blockFlash) VerifyProgram(addr uint32, data []byte) error {
	if f.scratch == nil {
		return ErrNotInitialized
	}
	if err := checkRange(addr, uint32(len(data)), f.SizeBytes()); err != nil {
		return err
	}
	for len(data) > 0 {
		chunk := f.scratch
		if len(chunk) > len(data) {
			chunk = chunk[:len(data)]
		}
		if _, err := f.dev.ReadAt(chunk, int64(addr)); err != nil {
			return fmt.Errorf("flash verify program at %d: %w", addr, err)
		}
		for i := range chunk {
			if chunk[i] != data[i] {
				return &MismatchError{Addr: addr + uint32(i), Want: data[i], Got: chunk[i]}
			}
		}
		addr += uint32(len(chunk))
		data = data[len(chunk):]
	}
	return nil
}

func (f *blockFlash) Read(addr uint32, p []byte) error {
	if f.scratch == nil {
		return ErrNotInitialized
	}
	if err := checkRange(addr, uint32(len(p)), f.SizeBytes()); err != nil {
		return err
	}
	if _, err := f.dev.ReadAt(p, int64(addr)); err != nil {
		return fmt.Errorf("flash read at %d: %w", addr, err)
	}
	return nil
}
