package hal

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBlockDevice behaves like a NOR chip without an erased-read fault.
type memBlockDevice struct {
	mem       []byte
	blockSize int64
	erases    []int64
	readErr   error
	eraseErr  error
}

func newMemBlockDevice(blocks int, blockSize int64) *memBlockDevice {
	return &memBlockDevice{
		mem:       bytes.Repeat([]byte{ErasedByte}, blocks*int(blockSize)),
		blockSize: blockSize,
	}
}

func (d *memBlockDevice) ReadAt(p []byte, off int64) (int, error) {
	if d.readErr != nil {
		return 0, d.readErr
	}
	return copy(p, d.mem[off:]), nil
}

func (d *memBlockDevice) WriteAt(p []byte, off int64) (int, error) {
	for i, b := range p {
		d.mem[off+int64(i)] &= b
	}
	return len(p), nil
}

func (d *memBlockDevice) Size() int64           { return int64(len(d.mem)) }
func (d *memBlockDevice) EraseBlockSize() int64 { return d.blockSize }

func (d *memBlockDevice) EraseBlocks(start, length int64) error {
	if d.eraseErr != nil {
		return d.eraseErr
	}
	for b := start; b < start+length; b++ {
		d.erases = append(d.erases, b)
		blk := d.mem[b*d.blockSize : (b+1)*d.blockSize]
		for i := range blk {
			blk[i] = ErasedByte
		}
	}
	return nil
}

func TestBlockFlashNeedsInit(t *testing.T) {
	f := NewBlockFlash(newMemBlockDevice(4, 256))
	require.ErrorIs(t, f.Read(0, make([]byte, 1)), ErrNotInitialized)
	require.NoError(t, f.Init())
	assert.Equal(t, uint32(256), f.PageBytes())
	assert.Equal(t, uint32(1024), f.SizeBytes())
}

func TestBlockFlashEraseProgramVerify(t *testing.T) {
	dev := newMemBlockDevice(4, 256)
	f := NewBlockFlash(dev)
	require.NoError(t, f.Init())

	require.NoError(t, f.VerifyErase(0, 1024))

	data := bytes.Repeat([]byte{0x3C}, 256)
	require.NoError(t, f.Program(256, data))
	require.NoError(t, f.VerifyProgram(256, data))
	require.ErrorIs(t, f.VerifyErase(0, 1024), ErrNotErased)

	require.NoError(t, f.Erase(256, 512))
	assert.Equal(t, []int64{1, 2}, dev.erases)
	require.NoError(t, f.VerifyErase(0, 1024))

	err := f.VerifyProgram(256, data)
	var mm *MismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, uint32(256), mm.Addr)
	assert.Equal(t, byte(0xFF), mm.Got)
}

func TestBlockFlashRangeChecks(t *testing.T) {
	f := NewBlockFlash(newMemBlockDevice(2, 256))
	require.NoError(t, f.Init())

	assert.ErrorIs(t, f.Erase(10, 256), ErrMisaligned)
	assert.ErrorIs(t, f.Program(256, make([]byte, 512)), ErrOutOfRange)
	assert.ErrorIs(t, f.Read(500, make([]byte, 20)), ErrOutOfRange)
}

func TestBlockFlashWrapsDeviceErrors(t *testing.T) {
	dev := newMemBlockDevice(2, 256)
	f := NewBlockFlash(dev)

	boom := errors.New("spi timeout")
	dev.readErr = boom
	require.ErrorIs(t, f.Init(), boom)
	assert.ErrorIs(t, f.VerifyErase(0, 256), ErrNotInitialized)

	dev.readErr = nil
	require.NoError(t, f.Init())
	dev.readErr = boom
	err := f.Read(0, make([]byte, 16))
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrAccessFault)
}

func TestBlockFlashProgrammedFFIsNotErased(t *testing.T) {
	f := NewBlockFlash(newMemBlockDevice(4, 256))
	require.NoError(t, f.Init())

	page := bytes.Repeat([]byte{0x5A}, 256)
	for i := 100; i < 200; i++ {
		page[i] = ErasedByte
	}
	require.NoError(t, f.Program(0, page))

	assert.ErrorIs(t, f.VerifyErase(128, 64), ErrNotErased)
	assert.ErrorIs(t, f.VerifyErase(0, 256), ErrNotErased)

	allFF := bytes.Repeat([]byte{ErasedByte}, 256)
	require.NoError(t, f.Program(256, allFF))
	assert.ErrorIs(t, f.VerifyErase(256, 256), ErrNotErased)
	require.NoError(t, f.VerifyErase(512, 512))

	require.NoError(t, f.Erase(256, 256))
	require.NoError(t, f.VerifyErase(256, 256))
}

func TestBlockFlashInitSeedsEraseState(t *testing.T) {
	dev := newMemBlockDevice(4, 256)
	dev.mem[2*256+7] = 0x00
	f := NewBlockFlash(dev)
	require.NoError(t, f.Init())

	require.NoError(t, f.VerifyErase(0, 512))
	assert.ErrorIs(t, f.VerifyErase(512, 256), ErrNotErased)
	require.NoError(t, f.VerifyErase(768, 256))
}

func TestBlockFlashFailedEraseIsNotErased(t *testing.T) {
	dev := newMemBlockDevice(2, 256)
	f := NewBlockFlash(dev)
	require.NoError(t, f.Init())

	dev.eraseErr = errors.New("erase timeout")
	require.Error(t, f.Erase(0, 256))
	assert.ErrorIs(t, f.VerifyErase(0, 256), ErrNotErased)
}
