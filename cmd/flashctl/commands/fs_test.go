//go:build cgo && !tinygo

package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemCommands(t *testing.T) {
	img := newImage(t)

	_, err := flashctl(t, img, "ls")
	assert.Error(t, err, "an unformatted volume does not mount")

	out, err := flashctl(t, img, "format")
	require.NoError(t, err)
	assert.Contains(t, out, "formatted")

	_, err = flashctl(t, img, "mkdir", "/logs")
	require.NoError(t, err)
	_, err = flashctl(t, img, "append", "/logs/boot.txt", "first")
	require.NoError(t, err)
	_, err = flashctl(t, img, "append", "/logs/boot.txt", "second")
	require.NoError(t, err)

	out, err = flashctl(t, img, "cat", "/logs/boot.txt")
	require.NoError(t, err)
	assert.Equal(t, "first\r\nsecond\r\n", out)

	host := filepath.Join(t.TempDir(), "host.txt")
	require.NoError(t, os.WriteFile(host, []byte("payload"), 0o644))
	_, err = flashctl(t, img, "put", host, "/payload")
	require.NoError(t, err)
	_, err = flashctl(t, img, "mv", "/payload", "/logs/payload")
	require.NoError(t, err)

	out, err = flashctl(t, img, "ls")
	require.NoError(t, err)
	assert.Equal(t, "D: logs\n", out)

	out, err = flashctl(t, img, "ls", "-l", "/logs")
	require.NoError(t, err)
	assert.Contains(t, out, "reg       14 boot.txt")
	assert.Contains(t, out, "reg        7 payload")

	back := filepath.Join(t.TempDir(), "back.txt")
	_, err = flashctl(t, img, "get", "/logs/payload", back)
	require.NoError(t, err)
	got, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	_, err = flashctl(t, img, "rm", "/logs/payload")
	require.NoError(t, err)
	_, err = flashctl(t, img, "cat", "/logs/payload")
	assert.Error(t, err)

	// The reserved region below the volume is never touched.
	out, err = flashctl(t, img, "status", "0", "0x10000")
	require.NoError(t, err)
	assert.Contains(t, out, "accessible=false erased=true")
}

func TestImportCommand(t *testing.T) {
	img := newImage(t)
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "www"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "www", "index.html"), []byte("<p>hi</p>"), 0o644))

	out, err := flashctl(t, img, "import", "--format", src)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 directories, 1 files, 9 bytes")

	out, err = flashctl(t, img, "cat", "/www/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", out)
}
