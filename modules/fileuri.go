package modules

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileURI locates a module or repository root in the local filesystem.
type FileURI struct {
	// path is absolute and slash-separated.
	path string
}

// NewFileURI builds a FileURI from an absolute filesystem path. It fails
// with ErrInvalidURI if the path is not absolute.
func NewFileURI(p string) (*FileURI, error) {
	p = strings.TrimSpace(p)
	if p == "" || !filepath.IsAbs(filepath.FromSlash(p)) {
		return nil, fmt.Errorf("%w: path must be absolute, got %q", ErrInvalidURI, p)
	}
	return &FileURI{path: normalizeEntry(filepath.ToSlash(p))}, nil
}

// ParseFileURI parses a "file:" URI or a plain absolute path. It fails with
// ErrInvalidArgument if the string carries a different scheme.
func ParseFileURI(s string) (*FileURI, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "://") || strings.HasPrefix(s, "file:") {
		u, err := url.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURI, s, err)
		}
		if u.Scheme != "file" {
			return nil, fmt.Errorf(
				"%w: expected file uri, got scheme %q", ErrInvalidArgument, u.Scheme)
		}
		return NewFileURI(u.Path)
	}
	return NewFileURI(s)
}

func (u *FileURI) Container() string { return "" }
func (u *FileURI) Entry() string     { return u.path }

// Path returns the absolute filesystem path in the platform's separator.
func (u *FileURI) Path() string {
	return filepath.FromSlash(u.path)
}

func (u *FileURI) String() string {
	return (&url.URL{Scheme: "file", Path: u.path}).String()
}

func (u *FileURI) IsBaseOf(other URI) bool {
	o, ok := other.(*FileURI)
	if !ok {
		return false
	}
	return isSegmentPrefix(u.path, o.Normalized().Entry())
}

func (u *FileURI) Normalized() URI {
	return &FileURI{path: normalizeEntry(u.path)}
}

// RefersToReadableFile probes the filesystem for an existing, readable
// regular file at this URI.
func (u *FileURI) RefersToReadableFile() bool {
	info, err := os.Stat(u.Path())
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(u.Path())
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// RefersToDirectory probes the filesystem for an existing directory.
func (u *FileURI) RefersToDirectory() bool {
	info, err := os.Stat(u.Path())
	return err == nil && info.IsDir()
}

func (u *FileURI) ResolutionContext() (URI, error) {
	info, err := os.Stat(u.Path())
	if err != nil {
		return nil, fmt.Errorf("%w: stat %q: %v", ErrRepositoryIO, u.path, err)
	}
	if info.IsDir() {
		return u, nil
	}
	return &FileURI{path: entryDir(u.path)}, nil
}
