package littlefs

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutsConvertsLF(t *testing.T) {
	var buf bytes.Buffer
	n, err := Puts(&buf, "a\nbc\n")
	require.NoError(t, err)
	assert.Equal(t, "a\r\nbc\r\n", buf.String())
	assert.Equal(t, 7, n)
}

func TestWriteLineAppendsCRLF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLine(&buf, "temp=21"))
	assert.Equal(t, "temp=21\r\n", buf.String())
}

func TestGets(t *testing.T) {
	r := strings.NewReader("first\r\nsecond line\nx")

	line, err := Gets(r, 64)
	require.NoError(t, err)
	assert.Equal(t, "first\n", line)

	line, err = Gets(r, 5)
	require.NoError(t, err)
	assert.Equal(t, "seco", line, "at most max-1 bytes")

	line, err = Gets(r, 64)
	require.NoError(t, err)
	assert.Equal(t, "nd line\n", line)

	line, err = Gets(r, 64)
	require.NoError(t, err)
	assert.Equal(t, "x", line)

	_, err = Gets(r, 64)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLines(t *testing.T) {
	lines, err := ReadLines(strings.NewReader("a\r\nb\n\nc"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "", "c"}, lines)
}

func TestAppendAndReadLinesOnFS(t *testing.T) {
	fs := mountedFS(t)
	require.NoError(t, fs.AppendLine("/log.txt", "one"))
	require.NoError(t, fs.AppendLine("/log.txt", "two"))

	raw, err := fs.ReadFile("/log.txt")
	require.NoError(t, err)
	assert.Equal(t, "one\r\ntwo\r\n", string(raw))

	lines, err := fs.ReadLines("/log.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, lines)
}
