// Package archive reads bibliography sources packed into zip archives.
// Locations have form "path/to/archive.zip/inner/name.json".
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// ErrNoEntry is returned when requested entry cannot be found in archive.
var ErrNoEntry = errors.New("no such entry in archive")

// WalkFunc is called for each file in archive visited by Walk. If an error is
// returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// Walk visits all files in the archive with names starting with prefix.
// Entries with absolute paths or ".." components fail the walk.
func Walk(archive, prefix string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if !f.FileInfo().IsDir() && strings.HasPrefix(name, prefix) {
			if err := walkFn(archive, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// errStop terminates Walk early once entry is found.
var errStop = errors.New("stop")

// ReadFile returns content of named entry. Empty name selects the only file
// in archive, archives with several files require a name.
func ReadFile(archive, name string) ([]byte, error) {
	var (
		found *zip.File
		count int
	)
	err := Walk(archive, name, func(_ string, f *zip.File) error {
		if len(name) > 0 {
			if f.Name != name {
				return nil
			}
			found = f
			return errStop
		}
		found = f
		count++
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%s: %q: %w", archive, name, ErrNoEntry)
	}
	if count > 1 {
		return nil, fmt.Errorf("%s: %d files in archive, entry name is required", archive, count)
	}

	rc, err := found.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// IsArchive reports whether file is a zip archive judging by its signature.
func IsArchive(file string) bool {
	f, err := os.Open(file)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	return filetype.Is(head[:n], "zip")
}

// Split finds the longest existing archive prefix of location and returns it
// with remaining path inside archive. ok is false when location does not go
// through an archive, location pointing at archive itself returns empty inner
// name.
func Split(location string) (archive, inner string, ok bool) {
	parts := strings.Split(filepath.ToSlash(location), "/")
	for i := len(parts); i > 0; i-- {
		candidate := strings.Join(parts[:i], "/")
		if len(candidate) == 0 {
			continue
		}
		fi, err := os.Stat(filepath.FromSlash(candidate))
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if !IsArchive(filepath.FromSlash(candidate)) {
			return "", "", false
		}
		return filepath.FromSlash(candidate), strings.Join(parts[i:], "/"), true
	}
	return "", "", false
}

func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
