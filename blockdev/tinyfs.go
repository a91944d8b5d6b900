package blockdev

import (
	"errors"
	"fmt"

	"tinygo.org/x/tinyfs"

	"flashcore/flash"
)

var _ tinyfs.BlockDevice = (*Device)(nil)

// ReadAt implements tinyfs.BlockDevice. off is a byte offset into the
// filesystem's region; requests spanning blocks are split.
//
// Unlike ReadBlock, an erased page is not an error here: it reads as
// hal.ErasedByte fill, which LittleFS rejects by checksum like any other
// unwritten block. LittleFS reads blocks it has not written yet, first of
// all while formatting a blank device.
func (d *Device) ReadAt(buf []byte, off int64) (int, error) {
	return d.span(buf, off, d.readErased)
}

// readErased reads page by page so that one erased page does not hide the
// data of its programmed neighbours.
func (d *Device) readErased(block, off uint32, buf []byte) error {
	page := d.drv.PageSize()
	if page == 0 {
		return d.readBlock(block, off, buf)
	}
	for len(buf) > 0 {
		n := min(uint32(len(buf)), page-d.Addr(block, off)%page)
		if err := d.readBlock(block, off, buf[:n]); err != nil && !erasedFault(err) {
			return err
		}
		buf = buf[n:]
		off += n
	}
	return nil
}

// erasedFault reports a verified erased region. A fault only assumed under
// flash.AssumeErased may cover live data and stays an error.
func erasedFault(err error) bool {
	var fe *flash.FaultError
	return errors.As(err, &fe) && !fe.Assumed
}

// WriteAt implements tinyfs.BlockDevice through the write coalescer, so
// writes need not be aligned.
func (d *Device) WriteAt(buf []byte, off int64) (int, error) {
	return d.span(buf, off, d.programBlock)
}

func (d *Device) Size() int64 {
	return int64(d.cfg.BlockCount) * int64(d.cfg.BlockSize)
}

func (d *Device) WriteBlockSize() int64 {
	return int64(d.cfg.ProgSize)
}

func (d *Device) EraseBlockSize() int64 {
	return int64(d.cfg.BlockSize)
}

// EraseBlocks erases length blocks starting at block start.
func (d *Device) EraseBlocks(start, length int64) error {
	if start < 0 || length < 0 || start+length > int64(d.cfg.BlockCount) {
		return fmt.Errorf("%w: erase blocks %d+%d", ErrInval, start, length)
	}
	for b := start; b < start+length; b++ {
		if err := d.eraseBlock(uint32(b)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) span(buf []byte, off int64, op func(block, off uint32, buf []byte) error) (int, error) {
	if off < 0 || off+int64(len(buf)) > d.Size() {
		return 0, fmt.Errorf("%w: off=%d len=%d", ErrInval, off, len(buf))
	}
	bs := int64(d.cfg.BlockSize)
	done := 0
	for done < len(buf) {
		pos := off + int64(done)
		inBlock := pos % bs
		n := min(int(bs-inBlock), len(buf)-done)
		if err := op(uint32(pos/bs), uint32(inBlock), buf[done:done+n]); err != nil {
			return done, err
		}
		done += n
	}
	return done, nil
}
