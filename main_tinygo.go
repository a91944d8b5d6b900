//go:build tinygo

package main

import (
	"flashcore/app"
	"flashcore/hal"
)

func main() {
	app.Run(hal.New(), app.DefaultConfig())
}
