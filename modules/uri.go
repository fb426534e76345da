package modules

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// URI is the concrete location of a module or repository root inside a
// container. Three variants exist: a file in a directory tree (FileURI), an
// entry in a zip/jar archive (ZipURI), and an entry in an in-memory bundle
// (MemURI). Values are immutable; derived operations return new instances.
type URI interface {
	fmt.Stringer

	// Container identifies the backing store: the empty string for the
	// local filesystem, the absolute archive path for zip URIs, or the
	// bundle name for in-memory URIs. Two URIs are containment-comparable
	// only when their containers are identical.
	Container() string

	// Entry is the canonical "/"-rooted path inside the container. For
	// FileURI it is the absolute, slash-separated filesystem path.
	Entry() string

	// IsBaseOf reports whether other lives at or below this URI. The
	// comparison respects path-segment boundaries: "/foo" is not a base of
	// "/foobar".
	IsBaseOf(other URI) bool

	// Normalized lexically collapses "." and ".." in the entry path without
	// touching the backing store.
	Normalized() URI

	// ResolutionContext returns the URI against which relative specifiers
	// inside this module resolve: the containing directory for a file entry,
	// the URI itself for a directory entry. It probes the backing store and
	// fails if the entry does not exist.
	ResolutionContext() (URI, error)
}

// ParseURI parses a URI string into the matching variant:
//
//	jar:file:///path/to/archive.jar!/entry  -> ZipURI
//	mem:bundle!/entry                       -> MemURI
//	file:///path or /path                   -> FileURI
func ParseURI(s string) (URI, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "jar:"):
		return ParseZipURI(s)
	case strings.HasPrefix(s, "mem:"):
		return ParseMemURI(s)
	case strings.HasPrefix(s, "file:") || strings.HasPrefix(s, "/") || filepath.IsAbs(s):
		return ParseFileURI(s)
	default:
		return nil, fmt.Errorf("%w: unsupported uri %q", ErrInvalidURI, s)
	}
}

// isSegmentPrefix reports whether p equals base or starts with base followed
// by a path separator. base "/" is a base of every rooted path.
func isSegmentPrefix(base, p string) bool {
	if base == "/" {
		return strings.HasPrefix(p, "/")
	}
	if p == base {
		return true
	}
	return strings.HasPrefix(p, base+"/")
}

// normalizeEntry brings an entry path into canonical "/"-rooted form with
// "." and ".." collapsed. ".." segments that would climb above the root are
// dropped, matching lexical resolution against a rooted path.
func normalizeEntry(entry string) string {
	entry = strings.ReplaceAll(entry, "\\", "/")
	if !strings.HasPrefix(entry, "/") {
		entry = "/" + entry
	}
	cleaned := path.Clean(entry)
	if cleaned == "." {
		return "/"
	}
	return cleaned
}

// entryDir returns the containing directory of a "/"-rooted entry path.
func entryDir(entry string) string {
	dir := path.Dir(entry)
	if dir == "." {
		return "/"
	}
	return dir
}
