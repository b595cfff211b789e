// Package toolchain finds the verus binary vargo runs. It comes from an
// explicit path, from a bundle embedded at build time, or from PATH.
package toolchain

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/klauspost/compress/zstd"
)

// ErrNotFound is returned when no verus binary can be located.
var ErrNotFound = errors.New("verus not found")

// Handle is a resolved verus installation. Peer binaries such as z3 sit
// next to Path.
type Handle struct {
	// Path is the verus executable.
	Path string
	// Dir is the extraction directory, set only for an extracted bundle.
	Dir string
}

// Extracted reports whether the handle owns a temporary directory.
func (h *Handle) Extracted() bool {
	return h != nil && h.Dir != ""
}

// Close removes the extraction directory, if any.
func (h *Handle) Close() error {
	if !h.Extracted() {
		return nil
	}
	if err := os.RemoveAll(h.Dir); err != nil {
		return fmt.Errorf("remove toolchain directory: %w", err)
	}
	return nil
}

// Locator resolves a Handle. The zero value uses the embedded bundle and
// the real PATH.
type Locator struct {
	// Bundle is a zstd compressed tar of the verus release; nil when vargo
	// was built without one.
	Bundle []byte
	// LookPath searches PATH; nil means exec.LookPath.
	LookPath func(string) (string, error)
}

// NewLocator returns a Locator using the bundle compiled into this binary.
func NewLocator() *Locator {
	return &Locator{Bundle: embeddedBundle}
}

// Locate resolves verus. An explicit path must exist; without one the
// embedded bundle is extracted to a fresh temporary directory, and without
// a bundle PATH is searched.
func (l *Locator) Locate(path string) (*Handle, error) {
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("%w at %s: %v", ErrNotFound, path, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w at %s: is a directory", ErrNotFound, path)
		}
		return &Handle{Path: path}, nil
	}

	if len(l.Bundle) > 0 {
		dir, err := os.MkdirTemp("", "vargo-verus-")
		if err != nil {
			return nil, fmt.Errorf("create toolchain directory: %w", err)
		}
		verus, err := Extract(bytes.NewReader(l.Bundle), dir)
		if err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
		return &Handle{Path: verus, Dir: dir}, nil
	}

	lookPath := l.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	found, err := lookPath(executable("verus"))
	if err != nil {
		return nil, fmt.Errorf("%w in PATH: %v", ErrNotFound, err)
	}
	return &Handle{Path: found}, nil
}

// Extract unpacks a zstd compressed tar into dir and returns the path of
// the verus executable inside it.
func Extract(r io.Reader, dir string) (string, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return "", fmt.Errorf("open bundle: %w", err)
	}
	defer zr.Close()

	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("resolve toolchain directory: %w", err)
	}

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read bundle: %w", err)
		}
		if !filepath.IsLocal(hdr.Name) {
			return "", fmt.Errorf("bundle entry %q escapes the toolchain directory", hdr.Name)
		}
		target := filepath.Join(root, hdr.Name)

		// Links extracted earlier may redirect any part of target, so every
		// entry is checked against where it really lands.
		parent, err := resolveInside(root, filepath.Dir(target))
		if err != nil {
			return "", fmt.Errorf("bundle entry %q: %w", hdr.Name, err)
		}
		if info, err := os.Lstat(target); err == nil && info.Mode()&fs.ModeSymlink != 0 {
			return "", fmt.Errorf("bundle entry %q replaces a link", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", fmt.Errorf("create %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, fs.FileMode(hdr.Mode)&0777); err != nil {
				return "", fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || !within(root, filepath.Join(parent, hdr.Linkname)) {
				return "", fmt.Errorf("bundle link %q points outside the toolchain directory", hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", fmt.Errorf("create %s: %w", filepath.Dir(hdr.Name), err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return "", fmt.Errorf("link %s: %w", hdr.Name, err)
			}
		}
	}

	return findVerus(dir)
}

// resolveInside resolves the symlinks along path, up to its deepest existing
// ancestor, and fails unless the result is under root. Missing components
// are created later as plain directories and cannot redirect.
func resolveInside(root, path string) (string, error) {
	existing, rest := path, ""
	for existing != root {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = filepath.Dir(existing)
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", existing, err)
	}
	if !within(root, resolved) {
		return "", errors.New("path leads outside the toolchain directory")
	}
	return filepath.Join(resolved, rest), nil
}

// within reports whether path is root or lexically below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && (rel == "." || filepath.IsLocal(rel))
}

func writeFile(path string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0644
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// findVerus returns the shallowest regular file named verus under dir.
func findVerus(dir string) (string, error) {
	name := executable("verus")
	var found string
	depth := -1
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != name {
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		if n := countSeparators(rel); depth < 0 || n < depth {
			found, depth = path, n
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan toolchain directory: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("%w in bundle", ErrNotFound)
	}
	return found, nil
}

func countSeparators(p string) int {
	n := 0
	for i := 0; i < len(p); i++ {
		if os.IsPathSeparator(p[i]) {
			n++
		}
	}
	return n
}

func executable(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
