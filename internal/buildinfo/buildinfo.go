// Package buildinfo holds version stamps set with
// -ldflags "-X flashcore/internal/buildinfo.Version=...".
package buildinfo

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Short returns the version, or the commit when the version is unset.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "none" {
		return Commit
	}
	return "dev"
}

// Describe is the multi-line banner printed by "version".
func Describe(name string) string {
	return fmt.Sprintf("%s %s\n  Commit:     %s\n  Built:      %s\n  Go version: %s\n  OS/Arch:    %s/%s\n",
		name, Version, Commit, Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
