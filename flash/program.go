package flash

import (
	"errors"
	"time"
)

// Program writes data at an arbitrary address. Each affected page is read,
// merged with the new bytes and reprogrammed through ProgramPage; bytes of
// the page outside the write are preserved, and erased parts of a page merge
// as hal.ErasedByte.
//
// A multi-page write is not atomic. If page N fails, pages before it keep
// their new contents and page N is indeterminate.
func (d *Driver) Program(addr uint32, data []byte) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe(OpProgram, len(data), time.Now(), &err)

	if len(data) == 0 {
		return nil
	}
	if err := d.checkLocked(addr, uint32(len(data))); err != nil {
		return err
	}
	return d.programLocked(addr, data)
}

func (d *Driver) programLocked(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if addr%d.page == 0 && uint32(len(data)) == d.page {
		return d.programPageLocked(addr, data)
	}

	pageAddr := addr - addr%d.page
	offset := addr % d.page
	for len(data) > 0 {
		if err := d.readForMergeLocked(pageAddr); err != nil {
			return err
		}
		chunk := min(d.page-offset, uint32(len(data)))
		copy(d.scratch[offset:offset+chunk], data[:chunk])
		if err := d.programPageLocked(pageAddr, d.scratch); err != nil {
			return err
		}
		pageAddr += d.page
		offset = 0
		data = data[chunk:]
	}
	return nil
}

// readForMergeLocked loads the page at pageAddr into the scratch buffer. A
// verified erased page reads as fill. A page only assumed erased is not
// merged, since that could overwrite live data with fill bytes.
func (d *Driver) readForMergeLocked(pageAddr uint32) error {
	err := d.readLocked(pageAddr, d.scratch)
	if err == nil {
		return nil
	}
	var fe *FaultError
	if errors.As(err, &fe) && !fe.Assumed {
		return nil
	}
	return err
}
