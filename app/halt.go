package app

import (
	"fmt"

	"flashcore/fs/littlefs"
	"flashcore/hal"
)

// Run boots the flash stack, lists the volume and never returns. A boot
// failure halts the board with the LED lit.
func Run(h hal.HAL, cfg Config) {
	sys, err := Boot(h, cfg)
	if err != nil {
		halt(h, err)
	}
	ListRoot(sys, h.Logger())
	select {}
}

// ListRoot writes one "F:"/"D:" line per entry of the volume root.
func ListRoot(sys *System, l hal.Logger) {
	err := sys.FS.ListDir("/", func(name string, info littlefs.Info) bool {
		if info.Type == littlefs.TypeDir {
			logLine(l, "D: "+name)
		} else {
			logLine(l, fmt.Sprintf("F: %s %d", name, info.Size))
		}
		return true
	})
	if err != nil {
		logLine(l, "littlefs: list /: "+err.Error())
	}
}

func halt(h hal.HAL, err error) {
	logLine(h.Logger(), "halt: "+err.Error())
	if led := h.LED(); led != nil {
		led.High()
	}
	select {}
}
