//go:build !tinygo

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"flashcore/app"
	"flashcore/flash"
	"flashcore/hal"
)

// Boots the flash stack against a host image once, lists the volume and
// exits. Set FLASHCORE_FLASH_PATH to choose the image.
func main() {
	policy := flag.String("policy", flash.AssumeAccessible.String(), "Access policy (assume-accessible|assume-erased).")
	flag.Parse()

	cfg := app.DefaultConfig()
	p, err := flash.ParseAccessPolicy(*policy)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -policy:", *policy)
		os.Exit(2)
	}
	cfg.Policy = p

	h := hal.New()
	code := run(h, cfg)
	if c, ok := h.Flash().(io.Closer); ok {
		if err := c.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			code = 1
		}
	}
	os.Exit(code)
}

func run(h hal.HAL, cfg app.Config) int {
	sys, err := app.Boot(h, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	app.ListRoot(sys, h.Logger())
	if err := sys.Shutdown(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
