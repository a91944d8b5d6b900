package littlefs

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

// Text files on the volume use CRLF line endings so they read cleanly on a
// serial console.

// WriteLine writes line followed by CRLF.
func WriteLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\r\n")
	return err
}

// Puts writes s converting every LF to CRLF and returns the number of bytes
// written, CRs included.
func Puts(w io.Writer, s string) (int, error) {
	return io.WriteString(w, strings.ReplaceAll(s, "\n", "\r\n"))
}

// Gets reads one line of at most max-1 bytes. CRs are dropped and the LF, if
// reached, is kept. io.EOF is returned only when nothing was read.
func Gets(r io.ByteReader, max int) (string, error) {
	var b strings.Builder
	for b.Len() < max-1 {
		c, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && b.Len() > 0 {
				break
			}
			return b.String(), err
		}
		if c == '\r' {
			continue
		}
		b.WriteByte(c)
		if c == '\n' {
			break
		}
	}
	return b.String(), nil
}

// ReadLines splits r on LF and strips CRs. A trailing line without LF is
// returned too.
func ReadLines(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	var lines []string
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.ReplaceAll(bytes.TrimSuffix(line, []byte{'\n'}), []byte{'\r'}, nil)
			lines = append(lines, string(line))
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
	}
}

// AppendLine appends line and CRLF to the file at path, creating it.
func (fs *FS) AppendLine(path, line string) error {
	w, err := fs.OpenWriter(path, WriteAppend)
	if err != nil {
		return err
	}
	if err := WriteLine(w, line); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// ReadLines returns the lines of the file at path.
func (fs *FS) ReadLines(path string) ([]string, error) {
	r, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return ReadLines(r)
}
