// Package littlefs mounts a LittleFS volume on a block device and offers the
// small file API the firmware and the host tools need.
package littlefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotMounted indicates that the filesystem is not mounted.
	ErrNotMounted = errors.New("littlefs: not mounted")
	// ErrMounted indicates an operation that needs the volume unmounted.
	ErrMounted = errors.New("littlefs: already mounted")
	// ErrNotDir indicates that a path is not a directory.
	ErrNotDir = errors.New("littlefs: not a directory")
	// ErrIsDir indicates that a path is a directory when a file was expected.
	ErrIsDir = errors.New("littlefs: is a directory")
	// ErrInvalid indicates invalid arguments.
	ErrInvalid = errors.New("littlefs: invalid")
)

// Options tunes the LittleFS instance. Zero fields take the defaults used
// by the boot sequence.
type Options struct {
	CacheSize     uint32
	LookaheadSize uint32
	BlockCycles   int32
}

func (o Options) withDefaults() Options {
	if o.CacheSize == 0 {
		o.CacheSize = 256
	}
	if o.LookaheadSize == 0 {
		o.LookaheadSize = 32
	}
	if o.BlockCycles == 0 {
		o.BlockCycles = 500
	}
	return o
}

// WriteMode controls how a file is created/updated.
type WriteMode uint8

const (
	// WriteTruncate truncates the file before writing.
	WriteTruncate WriteMode = iota
	// WriteAppend appends to an existing file (creating it if needed).
	WriteAppend
)

// Type is the kind of a directory entry.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeFile
	TypeDir
)

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "reg"
	case TypeDir:
		return "dir"
	default:
		return "?"
	}
}

// Info describes a path.
type Info struct {
	Type Type
	Size uint32
}

// Volume is the mountable filesystem behind an FS.
type Volume interface {
	Format() error
	Mount() error
	Unmount() error
	Mkdir(path string, perm os.FileMode) error
	Remove(path string) error
	Rename(oldPath, newPath string) error
	Stat(path string) (os.FileInfo, error)
	OpenFile(path string, flags int) (File, error)
}

// File is an open file or directory on a Volume.
type File interface {
	io.ReadWriteCloser
	Seek(offset int64, whence int) (int64, error)
	IsDir() bool
	Readdir(n int) ([]os.FileInfo, error)
}

// FS serializes access to one Volume and tracks whether it is mounted.
type FS struct {
	mu      sync.Mutex
	vol     Volume
	mounted bool
}

// NewOnVolume wraps an already configured volume.
func NewOnVolume(vol Volume) *FS {
	return &FS{vol: vol}
}

// Format writes a fresh filesystem. The volume must not be mounted.
func (fs *FS) Format() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.mounted {
		return ErrMounted
	}
	if err := fs.vol.Format(); err != nil {
		return fmt.Errorf("littlefs format: %w", err)
	}
	return nil
}

// Mount mounts an existing filesystem.
func (fs *FS) Mount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.mounted {
		return nil
	}
	if err := fs.vol.Mount(); err != nil {
		return fmt.Errorf("littlefs mount: %w", err)
	}
	fs.mounted = true
	return nil
}

// MountOrFormat mounts, and if that fails for any reason formats and mounts
// again. A blank or corrupt flash therefore always ends up usable.
func (fs *FS) MountOrFormat() (formatted bool, err error) {
	if err := fs.Mount(); err == nil {
		return false, nil
	}
	if err := fs.Format(); err != nil {
		return false, err
	}
	return true, fs.Mount()
}

// Unmount unmounts the filesystem.
func (fs *FS) Unmount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted {
		return nil
	}
	if err := fs.vol.Unmount(); err != nil {
		return fmt.Errorf("littlefs unmount: %w", err)
	}
	fs.mounted = false
	return nil
}

func (fs *FS) Mounted() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.mounted
}

// Mkdir creates a directory.
func (fs *FS) Mkdir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureMountedLocked(); err != nil {
		return err
	}
	if err := fs.vol.Mkdir(clean(path), 0o777); err != nil {
		return fmt.Errorf("littlefs mkdir %q: %w", path, err)
	}
	return nil
}

func (fs *FS) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureMountedLocked(); err != nil {
		return err
	}
	if err := fs.vol.Remove(clean(path)); err != nil {
		return fmt.Errorf("littlefs remove %q: %w", path, err)
	}
	return nil
}

func (fs *FS) Rename(oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureMountedLocked(); err != nil {
		return err
	}
	if err := fs.vol.Rename(clean(oldPath), clean(newPath)); err != nil {
		return fmt.Errorf("littlefs rename %q -> %q: %w", oldPath, newPath, err)
	}
	return nil
}

// Stat returns path information.
func (fs *FS) Stat(path string) (Info, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureMountedLocked(); err != nil {
		return Info{}, err
	}
	fi, err := fs.vol.Stat(clean(path))
	if err != nil {
		return Info{}, fmt.Errorf("littlefs stat %q: %w", path, err)
	}
	return infoOf(fi), nil
}

// ListDir iterates directory entries sorted by name, stopping when fn
// returns false.
func (fs *FS) ListDir(path string, fn func(name string, info Info) bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureMountedLocked(); err != nil {
		return err
	}
	f, err := fs.vol.OpenFile(clean(path), os.O_RDONLY)
	if err != nil {
		return fmt.Errorf("littlefs dir open %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if !f.IsDir() {
		return fmt.Errorf("littlefs dir open %q: %w", path, ErrNotDir)
	}
	entries, err := f.Readdir(0)
	if err != nil {
		return fmt.Errorf("littlefs dir read %q: %w", path, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		name := e.Name()
		if name == "." || name == ".." {
			continue
		}
		if !fn(name, infoOf(e)) {
			return nil
		}
	}
	return nil
}

// ReadAt reads up to len(p) bytes from file at off.
func (fs *FS) ReadAt(path string, p []byte, off uint32) (n int, eof bool, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := fs.openReadLocked(path)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(int64(off), io.SeekStart); err != nil {
		return 0, false, fmt.Errorf("littlefs seek %q off=%d: %w", path, off, err)
	}
	if len(p) == 0 {
		return 0, false, nil
	}

	n, err = io.ReadFull(eofReader{f}, p)
	switch {
	case err == nil:
		return n, false, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, true, nil
	default:
		return n, false, fmt.Errorf("littlefs read %q off=%d: %w", path, off, err)
	}
}

// ReadFile returns the whole file.
func (fs *FS) ReadFile(path string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := fs.openReadLocked(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	b, err := io.ReadAll(eofReader{f})
	if err != nil {
		return nil, fmt.Errorf("littlefs read %q: %w", path, err)
	}
	return b, nil
}

// Open returns a reader over the file.
func (fs *FS) Open(path string) (io.ReadCloser, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := fs.openReadLocked(path)
	if err != nil {
		return nil, err
	}
	return &reader{fs: fs, file: f}, nil
}

func (fs *FS) openReadLocked(path string) (File, error) {
	if err := fs.ensureMountedLocked(); err != nil {
		return nil, err
	}
	f, err := fs.vol.OpenFile(clean(path), os.O_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("littlefs open %q: %w", path, err)
	}
	if f.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("littlefs open %q: %w", path, ErrIsDir)
	}
	return f, nil
}

// Writer is an incremental file writer.
type Writer struct {
	fs      *FS
	path    string
	file    File
	written uint32
	closed  bool
}

// OpenWriter opens a file for incremental writes.
func (fs *FS) OpenWriter(path string, mode WriteMode) (*Writer, error) {
	flags := os.O_WRONLY | os.O_CREATE
	switch mode {
	case WriteTruncate:
		flags |= os.O_TRUNC
	case WriteAppend:
		flags |= os.O_APPEND
	default:
		return nil, fmt.Errorf("littlefs open writer %q: invalid mode %d: %w", path, mode, ErrInvalid)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureMountedLocked(); err != nil {
		return nil, err
	}
	f, err := fs.vol.OpenFile(clean(path), flags)
	if err != nil {
		return nil, fmt.Errorf("littlefs open %q: %w", path, err)
	}
	return &Writer{fs: fs, path: path, file: f}, nil
}

// Write appends bytes to the open file.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("littlefs: write on closed writer")
	}
	if len(p) == 0 {
		return 0, nil
	}

	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()

	n, err := w.file.Write(p)
	w.written += uint32(n)
	if err != nil {
		return n, fmt.Errorf("littlefs write %q: %w", w.path, err)
	}
	return n, nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("littlefs close %q: %w", w.path, err)
	}
	return nil
}

func (w *Writer) BytesWritten() uint32 { return w.written }

// WriteFile replaces the file's contents with data.
func (fs *FS) WriteFile(path string, data []byte) error {
	w, err := fs.OpenWriter(path, WriteTruncate)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// CopyFile copies src to dst, creating or truncating dst.
func (fs *FS) CopyFile(src, dst string) error {
	data, err := fs.ReadFile(src)
	if err != nil {
		return err
	}
	return fs.WriteFile(dst, data)
}

func (fs *FS) ensureMountedLocked() error {
	if fs.mounted {
		return nil
	}
	return ErrNotMounted
}

type reader struct {
	fs     *FS
	file   File
	closed bool
}

func (r *reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, os.ErrClosed
	}
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	return eofReader{r.file}.Read(p)
}

// eofReader turns an empty read into io.EOF; some volumes report end of
// file that way.
type eofReader struct {
	r io.Reader
}

func (e eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, io.EOF
	}
	return n, err
}

func (r *reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	return r.file.Close()
}

func infoOf(fi os.FileInfo) Info {
	typ := TypeFile
	if fi.IsDir() {
		typ = TypeDir
	}
	return Info{Type: typ, Size: uint32(fi.Size())}
}

func clean(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
