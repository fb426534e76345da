package modules

import (
	"archive/zip"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ZipURI locates a module or repository root inside a zip/jar archive in the
// local filesystem. The string form is "jar:<file-uri-of-archive>!<entry>"
// where the entry path always begins with "/".
type ZipURI struct {
	// archive is the absolute, slash-separated path of the zip/jar file.
	archive string
	// entry is the "/"-rooted path inside the archive; "/" for the root.
	entry string
}

// NewZipURI builds a ZipURI. It fails with ErrInvalidURI if archivePath is
// not absolute or does not carry a .jar or .zip suffix, or if entryPath is
// non-empty and does not start with "/".
func NewZipURI(archivePath, entryPath string) (*ZipURI, error) {
	archivePath = strings.TrimSpace(archivePath)
	if archivePath == "" || !filepath.IsAbs(filepath.FromSlash(archivePath)) {
		return nil, fmt.Errorf(
			"%w: archive path must be absolute, got %q", ErrInvalidURI, archivePath)
	}
	lower := strings.ToLower(archivePath)
	if !strings.HasSuffix(lower, ".jar") && !strings.HasSuffix(lower, ".zip") {
		return nil, fmt.Errorf(
			"%w: archive path must end in .jar or .zip, got %q", ErrInvalidURI, archivePath)
	}
	if entryPath == "" {
		entryPath = "/"
	}
	if !strings.HasPrefix(entryPath, "/") {
		return nil, fmt.Errorf(
			"%w: entry path must start with '/', got %q", ErrInvalidURI, entryPath)
	}
	return &ZipURI{
		archive: filepath.ToSlash(archivePath),
		entry:   entryPath,
	}, nil
}

// ParseZipURI parses the "jar:file://...!/entry" form. It fails with
// ErrInvalidArgument if the scheme is not "jar" or the inner URI is not a
// "file" URI, and with ErrInvalidURI on malformed entry paths.
func ParseZipURI(s string) (*ZipURI, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "jar:") {
		return nil, fmt.Errorf("%w: expected jar uri, got %q", ErrInvalidArgument, s)
	}
	rest := strings.TrimPrefix(s, "jar:")
	inner, entry, found := strings.Cut(rest, "!")
	if !found {
		return nil, fmt.Errorf("%w: jar uri without '!': %q", ErrInvalidURI, s)
	}
	u, err := url.Parse(inner)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURI, inner, err)
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf(
			"%w: jar uri must wrap a file uri, got scheme %q", ErrInvalidArgument, u.Scheme)
	}
	return NewZipURI(u.Path, entry)
}

func (u *ZipURI) Container() string { return u.archive }
func (u *ZipURI) Entry() string     { return u.entry }

// ArchivePath returns the absolute path of the zip/jar file in the
// platform's separator.
func (u *ZipURI) ArchivePath() string {
	return filepath.FromSlash(u.archive)
}

func (u *ZipURI) String() string {
	inner := (&url.URL{Scheme: "file", Path: u.archive}).String()
	return "jar:" + inner + "!" + u.entry
}

func (u *ZipURI) IsBaseOf(other URI) bool {
	o, ok := other.(*ZipURI)
	if !ok || o.archive != u.archive {
		return false
	}
	return isSegmentPrefix(u.normalizedEntry(), o.normalizedEntry())
}

func (u *ZipURI) normalizedEntry() string {
	return normalizeEntry(u.entry)
}

func (u *ZipURI) Normalized() URI {
	return &ZipURI{archive: u.archive, entry: u.normalizedEntry()}
}

// RefersToReadableFile probes the filesystem for an existing, readable
// regular file at the archive path.
func (u *ZipURI) RefersToReadableFile() bool {
	info, err := os.Stat(u.ArchivePath())
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(u.ArchivePath())
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// RefersToZipFile reports whether the archive path opens as a zip archive.
func (u *ZipURI) RefersToZipFile() bool {
	r, err := zip.OpenReader(u.ArchivePath())
	if err != nil {
		return false
	}
	_ = r.Close()
	return true
}

func (u *ZipURI) ResolutionContext() (URI, error) {
	entry := u.normalizedEntry()
	if entry == "/" {
		return u.Normalized(), nil
	}
	kind, err := zipEntryKind(u.ArchivePath(), entry)
	if err != nil {
		return nil, err
	}
	switch kind {
	case kindFile:
		return &ZipURI{archive: u.archive, entry: entryDir(entry)}, nil
	case kindDir:
		return &ZipURI{archive: u.archive, entry: entry}, nil
	default:
		return nil, fmt.Errorf(
			"%w: no entry %q in archive %q", ErrRepositoryIO, entry, u.archive)
	}
}

// zipEntryKind classifies a "/"-rooted entry path against the archive's
// table of contents. Directories may be explicit entries or implied by the
// path of a deeper entry.
func zipEntryKind(archivePath, entry string) (entryKind, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return kindMissing, fmt.Errorf(
			"%w: open archive %q: %v", ErrRepositoryIO, archivePath, err)
	}
	defer func() { _ = r.Close() }()

	name := strings.TrimPrefix(entry, "/")
	for _, f := range r.File {
		fname := strings.TrimSuffix(f.Name, "/")
		if fname == name {
			if f.FileInfo().IsDir() {
				return kindDir, nil
			}
			return kindFile, nil
		}
		if strings.HasPrefix(f.Name, name+"/") {
			return kindDir, nil
		}
	}
	return kindMissing, nil
}
