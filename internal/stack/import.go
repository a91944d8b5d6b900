package stack

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"flashcore/fs/littlefs"
	"flashcore/internal/logger"
)

// ImportStats counts what ImportDir copied.
type ImportStats struct {
	Dirs  int
	Files int
	Bytes int64
}

// ImportDir copies the regular files and directories under srcDir into the
// mounted volume, rooted at "/". Symlinks and special files are skipped.
func ImportDir(fsys *littlefs.FS, srcDir string) (ImportStats, error) {
	var stats ImportStats

	srcDir = filepath.Clean(srcDir)
	st, err := os.Stat(srcDir)
	if err != nil {
		return stats, fmt.Errorf("stat src %q: %w", srcDir, err)
	}
	if !st.IsDir() {
		return stats, fmt.Errorf("src %q is not a directory", srcDir)
	}

	var dirs, files []string
	walkErr := filepath.WalkDir(srcDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir || entry.Type()&os.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		lfsPath := "/" + filepath.ToSlash(rel)
		switch {
		case entry.IsDir():
			dirs = append(dirs, lfsPath)
		case entry.Type().IsRegular():
			files = append(files, lfsPath)
		}
		return nil
	})
	if walkErr != nil {
		return stats, fmt.Errorf("walk src %q: %w", srcDir, walkErr)
	}

	// Parents sort before their children.
	sort.Strings(dirs)
	sort.Strings(files)

	for _, d := range dirs {
		if info, err := fsys.Stat(d); err == nil && info.Type == littlefs.TypeDir {
			continue
		}
		if err := fsys.Mkdir(d); err != nil {
			return stats, fmt.Errorf("mkdir %q: %w", d, err)
		}
		stats.Dirs++
	}

	for _, p := range files {
		hostPath := filepath.Join(srcDir, filepath.FromSlash(strings.TrimPrefix(p, "/")))
		n, err := CopyIn(fsys, hostPath, p)
		if err != nil {
			return stats, err
		}
		stats.Files++
		stats.Bytes += n
		logger.Debug("imported", logger.KeyPath, p, logger.KeyLength, n)
	}
	return stats, nil
}

// CopyIn copies the host file at hostPath to lfsPath, replacing it.
func CopyIn(fsys *littlefs.FS, hostPath, lfsPath string) (int64, error) {
	in, err := os.Open(hostPath)
	if err != nil {
		return 0, fmt.Errorf("open %q: %w", hostPath, err)
	}
	defer func() { _ = in.Close() }()

	w, err := fsys.OpenWriter(lfsPath, littlefs.WriteTruncate)
	if err != nil {
		return 0, fmt.Errorf("open writer %q: %w", lfsPath, err)
	}
	n, err := io.Copy(w, in)
	if err != nil {
		_ = w.Close()
		return n, fmt.Errorf("copy %q: %w", lfsPath, err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("close %q: %w", lfsPath, err)
	}
	return n, nil
}

// CopyOut copies lfsPath from the volume to w.
func CopyOut(fsys *littlefs.FS, lfsPath string, w io.Writer) (int64, error) {
	r, err := fsys.Open(lfsPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()
	n, err := io.Copy(w, r)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("read %q: %w", lfsPath, err)
	}
	return n, nil
}
