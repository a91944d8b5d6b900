//go:build tinygo && baremetal && !spinor

package hal

import (
	"machine"
)

type tinyGoHAL struct {
	logger *uartLogger
	led    *pinLED
	flash  Flash
}

// New returns an MCU HAL using the on-chip flash data region.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
func New() HAL {
	uart, led := configureBoard()
	return &tinyGoHAL{
		logger: &uartLogger{uart: uart},
		led:    led,
		flash:  NewBlockFlash(machine.Flash),
	}
}

func (h *tinyGoHAL) Logger() Logger { return h.logger }
func (h *tinyGoHAL) LED() LED       { return h.led }
func (h *tinyGoHAL) Flash() Flash   { return h.flash }
