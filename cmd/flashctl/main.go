//go:build !tinygo

// Command flashctl inspects and modifies flash images on the host.
package main

import (
	"fmt"
	"os"

	"flashcore/cmd/flashctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
