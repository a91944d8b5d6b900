package flash

import (
	"fmt"
	"time"
)

// InitErase erases whole pages and leaves them erased, so that reads of the
// range fault until something is programmed. Use it to prepare raw
// erase-block state, for example before formatting a filesystem.
//
// If a page fails, the pages before it stay erased.
func (d *Driver) InitErase(addr, length uint32) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe(OpInitErase, int(length), time.Now(), &err)

	if err := d.checkBulkLocked(addr, length); err != nil {
		return err
	}
	for off := addr; off < addr+length; off += d.page {
		if err := d.erasePageLocked(off); err != nil {
			return err
		}
	}
	return nil
}

// Erase zero-fills whole pages. Unlike InitErase the result is readable:
// every byte reads back as 0x00.
func (d *Driver) Erase(addr, length uint32) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe(OpErase, int(length), time.Now(), &err)

	if err := d.checkBulkLocked(addr, length); err != nil {
		return err
	}
	for off := addr; off < addr+length; off += d.page {
		if err := d.programLocked(off, d.zero); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) checkBulkLocked(addr, length uint32) error {
	if !d.ready {
		return ErrNotInitialized
	}
	if addr%d.page != 0 || length%d.page != 0 {
		return fmt.Errorf("flash erase off=%d len=%d (page %d): %w", addr, length, d.page, ErrParam)
	}
	return d.checkLocked(addr, length)
}
