package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction. Boot code lights it when the
// flash controller cannot be brought up.
type LED interface {
	High()
	Low()
}

var ErrNotImplemented = errors.New("not implemented")

// HAL provides the only contact point between the firmware and the board.
type HAL interface {
	Logger() Logger
	LED() LED
	Flash() Flash
}
