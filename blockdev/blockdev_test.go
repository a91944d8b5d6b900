package blockdev

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashcore/flash"
	"flashcore/hal"
)

const testPage = 512

func testConfig() Config {
	return Config{
		BlockSize:     2 * testPage,
		BlockCount:    4,
		BlockOffset:   2,
		ReadSize:      128,
		ProgSize:      128,
		CacheSize:     256,
		LookaheadSize: 8,
		BlockCycles:   500,
	}
}

func newTestDevice(t *testing.T, cfg Config) (*Device, *hal.SimFlash) {
	t.Helper()
	sim, err := hal.NewSimFlash(16*testPage, testPage)
	require.NoError(t, err)
	dev, err := New(flash.New(sim, flash.Options{}), cfg)
	require.NoError(t, err)
	require.NoError(t, dev.Init())
	return dev, sim
}

func TestAddrMapping(t *testing.T) {
	dev, _ := newTestDevice(t, testConfig())

	assert.Equal(t, uint32(2*1024), dev.Addr(0, 0))
	assert.Equal(t, uint32(5*1024+17), dev.Addr(3, 17))
}

func TestProgramThenReadBlock(t *testing.T) {
	dev, sim := newTestDevice(t, testConfig())
	data := []byte("hello, block")

	require.Equal(t, StatusOK, dev.ProgramBlock(1, 100, data))

	got := make([]byte, len(data))
	require.Equal(t, StatusOK, dev.ReadBlock(1, 100, got))
	assert.Equal(t, data, got)
	assert.Equal(t, data, sim.Peek(dev.Addr(1, 100), uint32(len(data))))
}

func TestReadErasedBlockIsIOError(t *testing.T) {
	dev, _ := newTestDevice(t, testConfig())
	buf := make([]byte, 16)

	assert.Equal(t, StatusIO, dev.ReadBlock(0, 0, buf))
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 16), buf)
}

func TestEraseBlockModes(t *testing.T) {
	t.Run("raw", func(t *testing.T) {
		dev, _ := newTestDevice(t, testConfig())
		require.Equal(t, StatusOK, dev.ProgramBlock(2, 0, []byte{1, 2, 3}))

		require.Equal(t, StatusOK, dev.EraseBlock(2))

		assert.True(t, dev.Driver().IsErased(dev.Addr(2, 0), 1024))
		assert.Equal(t, StatusIO, dev.ReadBlock(2, 0, make([]byte, 3)))
	})
	t.Run("zero", func(t *testing.T) {
		cfg := testConfig()
		cfg.EraseMode = EraseZeroFill
		dev, _ := newTestDevice(t, cfg)
		require.Equal(t, StatusOK, dev.ProgramBlock(2, 0, []byte{1, 2, 3}))

		require.Equal(t, StatusOK, dev.EraseBlock(2))

		got := bytes.Repeat([]byte{0xAA}, 1024)
		require.Equal(t, StatusOK, dev.ReadBlock(2, 0, got))
		assert.Equal(t, make([]byte, 1024), got)
	})
}

func TestEraseBlockTouchesOnlyItsPages(t *testing.T) {
	dev, sim := newTestDevice(t, testConfig())

	require.Equal(t, StatusOK, dev.EraseBlock(1))

	assert.Equal(t, uint32(1), sim.EraseCount(dev.Addr(1, 0)))
	assert.Equal(t, uint32(1), sim.EraseCount(dev.Addr(1, testPage)))
	assert.Zero(t, sim.EraseCount(dev.Addr(0, 0)))
	assert.Zero(t, sim.EraseCount(dev.Addr(2, 0)))
}

func TestOutOfRangeIsInval(t *testing.T) {
	dev, sim := newTestDevice(t, testConfig())

	assert.Equal(t, StatusInval, dev.ReadBlock(4, 0, make([]byte, 1)))
	assert.Equal(t, StatusInval, dev.ProgramBlock(0, 1000, make([]byte, 100)))
	assert.Equal(t, StatusInval, dev.EraseBlock(9))
	assert.Zero(t, sim.OpCount(hal.OpErase))
}

func TestHardwareFailureIsIOError(t *testing.T) {
	dev, sim := newTestDevice(t, testConfig())
	sim.FailNext(hal.OpProgram, errors.New("program failed"))

	assert.Equal(t, StatusIO, dev.ProgramBlock(0, 0, []byte{1}))
}

func TestSyncAndDeinit(t *testing.T) {
	dev, _ := newTestDevice(t, testConfig())
	assert.Equal(t, StatusOK, dev.Sync())
	assert.NoError(t, dev.Deinit())
}

func TestInitDriverFailureIsFatal(t *testing.T) {
	sim, err := hal.NewSimFlash(16*testPage, testPage)
	require.NoError(t, err)
	sim.FailNext(hal.OpInit, errors.New("no clock"))
	dev, err := New(flash.New(sim, flash.Options{}), testConfig())
	require.NoError(t, err)

	var ie *flash.InitError
	require.ErrorAs(t, dev.Init(), &ie)
}

func TestInitRejectsGeometryMismatch(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"block not a page multiple", func(c *Config) { c.BlockSize = 768; c.CacheSize = 256 }},
		{"past end of flash", func(c *Config) { c.BlockCount = 7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := hal.NewSimFlash(16*testPage, testPage)
			require.NoError(t, err)
			cfg := testConfig()
			tt.mut(&cfg)
			dev, err := New(flash.New(sim, flash.Options{}), cfg)
			require.NoError(t, err)
			assert.ErrorIs(t, dev.Init(), ErrConfig)
		})
	}
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "OK", StatusOK.String())
	assert.Equal(t, "IO", StatusIO.String())
	assert.Equal(t, "INVAL", StatusInval.String())
	assert.Equal(t, -5, int(StatusIO))
	assert.Equal(t, -22, int(StatusInval))
	assert.NoError(t, StatusOK.Err())
	assert.ErrorIs(t, StatusIO.Err(), ErrIO)
}
