//go:build tinygo && baremetal && spinor

package hal

import (
	"machine"

	"tinygo.org/x/drivers/flash"
)

// spiNOR erases by 4 KiB sector. The driver's EraseBlocks issues 64 KiB
// block erases even though it reports the sector as its erase unit.
type spiNOR struct {
	*flash.Device
}

func (d spiNOR) EraseBlocks(start, length int64) error {
	for i := start; i < start+length; i++ {
		if err := d.EraseSector(uint32(i)); err != nil {
			return err
		}
	}
	return nil
}

type spiNORHAL struct {
	logger *uartLogger
	led    *pinLED
	flash  Flash
}

// New returns an MCU HAL using an external SPI NOR chip on SPI0.
//
// SPI0: GP19 (SDO) / GP16 (SDI) / GP18 (SCK), CS on GP17.
func New() HAL {
	uart, led := configureBoard()
	dev := flash.NewSPI(machine.SPI0, machine.GP19, machine.GP16, machine.GP18, machine.GP17)
	var f Flash
	if err := dev.Configure(&flash.DeviceConfig{Identifier: flash.DefaultDeviceIdentifier}); err != nil {
		f = stubFlash{err: err}
	} else {
		f = NewBlockFlash(spiNOR{Device: dev})
	}
	return &spiNORHAL{
		logger: &uartLogger{uart: uart},
		led:    led,
		flash:  f,
	}
}

func (h *spiNORHAL) Logger() Logger { return h.logger }
func (h *spiNORHAL) LED() LED       { return h.led }
func (h *spiNORHAL) Flash() Flash   { return h.flash }
