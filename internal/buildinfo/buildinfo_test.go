package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	defer func(v, c string) { Version, Commit = v, c }(Version, Commit)

	Version, Commit = "dev", "none"
	assert.Equal(t, "dev", Short())

	Commit = "abc123"
	assert.Equal(t, "abc123", Short())

	Version = "v0.3.0"
	assert.Equal(t, "v0.3.0", Short())
}

func TestDescribe(t *testing.T) {
	out := Describe("flashctl")
	assert.Contains(t, out, "flashctl "+Version)
	assert.Contains(t, out, "Commit:")
}
