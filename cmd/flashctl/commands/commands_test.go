package commands

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashcore/blockdev"
	"flashcore/flash"
	"flashcore/hal"
)

// flashctl runs one invocation against img and returns everything printed.
func flashctl(t *testing.T, img string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--flash", img, "--log-level", "ERROR"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func newImage(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return filepath.Join(t.TempDir(), "test.flash")
}

func TestProgramThenRead(t *testing.T) {
	img := newImage(t)

	out, err := flashctl(t, img, "program", "4", "--hex", "010203")
	require.NoError(t, err)
	assert.Contains(t, out, "program 0x00000004+3: OK")

	out, err = flashctl(t, img, "read", "0", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "00000000  ff ff ff ff 01 02 03 ff")
	assert.Contains(t, out, "read 0x00000000+8: OK")
}

func TestReadErasedIsFault(t *testing.T) {
	img := newImage(t)

	out, err := flashctl(t, img, "read", "0x200", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "ff ff ff ff")
	assert.Contains(t, out, "FAULT")
}

func TestEraseZeroFillsAndInitEraseRestoresErased(t *testing.T) {
	img := newImage(t)

	_, err := flashctl(t, img, "erase", "0", "512")
	require.NoError(t, err)
	out, err := flashctl(t, img, "read", "0", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "00 00 00 00")
	assert.Contains(t, out, "OK")

	_, err = flashctl(t, img, "init-erase", "0", "512")
	require.NoError(t, err)
	out, err = flashctl(t, img, "status", "0", "512")
	require.NoError(t, err)
	assert.Contains(t, out, "accessible=false erased=true")
}

func TestMisalignedEraseFails(t *testing.T) {
	img := newImage(t)

	out, err := flashctl(t, img, "init-erase", "1", "512")
	assert.ErrorIs(t, err, flash.ErrParam)
	assert.Contains(t, out, "FAILED")
}

func TestProgramPageNeedsWholePage(t *testing.T) {
	img := newImage(t)

	_, err := flashctl(t, img, "program", "0", "--page", "--string", "short")
	assert.ErrorIs(t, err, flash.ErrParam)
}

func TestProgramFromFile(t *testing.T) {
	img := newImage(t)
	src := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(src, []byte("from file"), 0o644))

	_, err := flashctl(t, img, "program", "0x1000", "--file", src)
	require.NoError(t, err)
	out, err := flashctl(t, img, "read", "0x1000", "9", "--raw")
	require.NoError(t, err)
	assert.Equal(t, "from file", out)
}

func TestStatusPages(t *testing.T) {
	img := newImage(t)

	_, err := flashctl(t, img, "program", "0", "--string", "x")
	require.NoError(t, err)

	out, err := flashctl(t, img, "status", "--pages")
	require.NoError(t, err)
	assert.Contains(t, out, "erased:   511/512 pages")
	assert.Contains(t, out, "0     0x00000000  programmed")
	assert.Contains(t, out, "1     0x00000200  erased")
}

func TestBlockCommands(t *testing.T) {
	img := newImage(t)

	out, err := flashctl(t, img, "block", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "first block: 16 (0x00010000)")

	out, err = flashctl(t, img, "block", "read", "32", "0", "4")
	assert.ErrorIs(t, err, blockdev.ErrInval)
	assert.Contains(t, out, "-22 (INVAL)")

	out, err = flashctl(t, img, "block", "read", "0", "0", "4")
	assert.ErrorIs(t, err, blockdev.ErrIO)
	assert.Contains(t, out, "-5 (IO)")

	_, err = flashctl(t, img, "block", "--erase-mode", "zero", "erase", "0")
	require.NoError(t, err)
	out, err = flashctl(t, img, "block", "read", "0", "0", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "00010000  00 00 00 00")

	_, err = flashctl(t, img, "block", "prog", "0", "8", "abcd")
	require.NoError(t, err)
	out, err = flashctl(t, img, "read", "0x10008", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "ab cd")
}

func TestPolicyFlag(t *testing.T) {
	img := newImage(t)

	out, err := flashctl(t, img, "--policy", "assume-erased", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "policy:   assume-erased")

	_, err = flashctl(t, img, "--policy", "sometimes", "status")
	assert.Error(t, err)
}

func TestConfigInitAndShow(t *testing.T) {
	img := newImage(t)
	path := filepath.Join(t.TempDir(), "flashcore.yaml")

	out, err := flashctl(t, img, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	_, err = flashctl(t, img, "--config", path, "config", "init")
	assert.Error(t, err)

	out, err = flashctl(t, img, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "path: "+img)
	assert.Contains(t, out, "erase_mode: raw")
}

func TestVersionShort(t *testing.T) {
	out, err := flashctl(t, newImage(t), "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestSoakCommand(t *testing.T) {
	img := newImage(t)

	out, err := flashctl(t, img, "--backend", "mem", "soak", "-n", "40", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "writes=40 reads=40 mismatches=0 failures=0")
}

func TestSoakDetectsNothingOnHealthyFlash(t *testing.T) {
	sim, err := hal.NewSimFlash(8*512, 512)
	require.NoError(t, err)
	d := flash.New(sim, flash.Options{})
	require.NoError(t, d.Init())

	stats := soak(context.Background(), d, rand.New(rand.NewPCG(1, 2)), 200, 700)
	assert.Equal(t, soakStats{Writes: 200, Reads: 200}, stats)
}

func TestSoakStopsOnCancel(t *testing.T) {
	sim, err := hal.NewSimFlash(8*512, 512)
	require.NoError(t, err)
	d := flash.New(sim, flash.Options{})
	require.NoError(t, d.Init())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats := soak(ctx, d, rand.New(rand.NewPCG(1, 2)), 0, 64)
	assert.Zero(t, stats.Writes)
}
