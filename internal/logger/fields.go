package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys. Use them consistently so flashctl output can be
// filtered by address or block.
const (
	KeyOp         = "op"          // flash or block operation name
	KeyAddr       = "addr"        // physical byte address
	KeyLength     = "length"      // byte count
	KeyBlock      = "block"       // filesystem block index
	KeyOffset     = "offset"      // offset inside a block
	KeyResult     = "result"      // OK, FAILED or FAULT
	KeyStatus     = "status"      // block device status code
	KeyPath       = "path"        // file or image path
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
)

// Err returns an error attribute; nil errors produce an empty attribute
// that slog drops.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Addr formats a physical address the way the hex dumps print it.
func Addr(addr uint32) slog.Attr {
	return slog.String(KeyAddr, fmt.Sprintf("0x%08x", addr))
}
