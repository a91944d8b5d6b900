package littlefs

import (
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"time"
)

// memVolume is an in-memory Volume with LittleFS-like path rules.
type memVolume struct {
	formatted bool
	mounted   bool
	nodes     map[string]*memNode
	mountErr  error
}

type memNode struct {
	dir  bool
	data []byte
}

func newMemVolume() *memVolume {
	return &memVolume{}
}

func (v *memVolume) Format() error {
	v.formatted = true
	v.nodes = map[string]*memNode{"/": {dir: true}}
	return nil
}

func (v *memVolume) Mount() error {
	if v.mountErr != nil {
		err := v.mountErr
		v.mountErr = nil
		return err
	}
	if !v.formatted {
		return errors.New("corrupt")
	}
	v.mounted = true
	return nil
}

func (v *memVolume) Unmount() error {
	v.mounted = false
	return nil
}

func (v *memVolume) Mkdir(p string, _ os.FileMode) error {
	if _, ok := v.nodes[p]; ok {
		return os.ErrExist
	}
	if parent, ok := v.nodes[path.Dir(p)]; !ok || !parent.dir {
		return os.ErrNotExist
	}
	v.nodes[p] = &memNode{dir: true}
	return nil
}

func (v *memVolume) Remove(p string) error {
	if _, ok := v.nodes[p]; !ok {
		return os.ErrNotExist
	}
	for k := range v.nodes {
		if strings.HasPrefix(k, p+"/") {
			return errors.New("not empty")
		}
	}
	delete(v.nodes, p)
	return nil
}

func (v *memVolume) Rename(oldPath, newPath string) error {
	n, ok := v.nodes[oldPath]
	if !ok {
		return os.ErrNotExist
	}
	delete(v.nodes, oldPath)
	v.nodes[newPath] = n
	return nil
}

func (v *memVolume) Stat(p string) (os.FileInfo, error) {
	n, ok := v.nodes[p]
	if !ok {
		return nil, os.ErrNotExist
	}
	return memInfo{name: path.Base(p), node: n}, nil
}

func (v *memVolume) OpenFile(p string, flags int) (File, error) {
	n, ok := v.nodes[p]
	if !ok {
		if flags&os.O_CREATE == 0 {
			return nil, os.ErrNotExist
		}
		if parent, ok := v.nodes[path.Dir(p)]; !ok || !parent.dir {
			return nil, os.ErrNotExist
		}
		n = &memNode{}
		v.nodes[p] = n
	}
	if flags&os.O_TRUNC != 0 {
		n.data = nil
	}
	f := &memFile{vol: v, path: p, node: n}
	if flags&os.O_APPEND != 0 {
		f.pos = int64(len(n.data))
	}
	return f, nil
}

type memFile struct {
	vol  *memVolume
	path string
	node *memNode
	pos  int64
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.node.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.node.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.node.data)) {
		grown := make([]byte, end)
		copy(grown, f.node.data)
		f.node.data = grown
	}
	copy(f.node.data[f.pos:], p)
	f.pos = end
	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	case io.SeekEnd:
		f.pos = int64(len(f.node.data)) + offset
	}
	return f.pos, nil
}

func (f *memFile) Close() error { return nil }
func (f *memFile) IsDir() bool  { return f.node.dir }

func (f *memFile) Readdir(int) ([]os.FileInfo, error) {
	prefix := strings.TrimSuffix(f.path, "/") + "/"
	var out []os.FileInfo
	for k, n := range f.vol.nodes {
		if k == f.path || !strings.HasPrefix(k, prefix) || strings.Contains(k[len(prefix):], "/") {
			continue
		}
		out = append(out, memInfo{name: k[len(prefix):], node: n})
	}
	return out, nil
}

type memInfo struct {
	name string
	node *memNode
}

func (i memInfo) Name() string { return i.name }
func (i memInfo) Size() int64  { return int64(len(i.node.data)) }
func (i memInfo) Mode() os.FileMode {
	if i.node.dir {
		return os.ModeDir | 0o777
	}
	return 0o666
}
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool       { return i.node.dir }
func (i memInfo) Sys() any          { return nil }
