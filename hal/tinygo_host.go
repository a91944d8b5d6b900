//go:build tinygo && !baremetal

package hal

import (
	"fmt"
	"runtime"
)

const (
	tinyGoHostFlashSizeBytes = 256 * 1024
	tinyGoHostFlashPageBytes = 512
)

type tinyGoHostHAL struct {
	logger *tinyGoHostLogger
	led    *tinyGoHostLED
	flash  Flash
}

// New returns a TinyGo-on-host HAL implementation.
//
// This is used by `tinygo run` targets like linux/wasm where there is no MCU
// pin mapping. Flash is simulated in RAM and starts factory-fresh.
func New() HAL {
	l := &tinyGoHostLogger{}
	var f Flash
	if sim, err := NewSimFlash(tinyGoHostFlashSizeBytes, tinyGoHostFlashPageBytes); err == nil {
		f = sim
	} else {
		f = stubFlash{err: err}
	}
	return &tinyGoHostHAL{
		logger: l,
		led:    &tinyGoHostLED{logger: l},
		flash:  f,
	}
}

func (h *tinyGoHostHAL) Logger() Logger { return h.logger }
func (h *tinyGoHostHAL) LED() LED       { return h.led }
func (h *tinyGoHostHAL) Flash() Flash   { return h.flash }

type tinyGoHostLogger struct{}

func (l *tinyGoHostLogger) WriteLineString(s string) {
	println(s)
}

func (l *tinyGoHostLogger) WriteLineBytes(b []byte) {
	println(string(b))
}

type tinyGoHostLED struct {
	logger *tinyGoHostLogger
}

func (l *tinyGoHostLED) High() {
	l.logger.WriteLineString(fmt.Sprintf("led: HIGH (tinygo/%s)", runtime.GOOS))
}

func (l *tinyGoHostLED) Low() {
	l.logger.WriteLineString(fmt.Sprintf("led: LOW (tinygo/%s)", runtime.GOOS))
}
