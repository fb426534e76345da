package modules

import (
	"fmt"
	"io/fs"
	"strings"
)

// MemURI locates a module inside a named in-memory bundle backed by an
// io/fs filesystem (an embed.FS shipped with the plugin, or a fstest.MapFS
// in tests). The string form is "mem:<bundle>!<entry>".
type MemURI struct {
	bundle string
	// entry is the "/"-rooted path inside the bundle; "/" for the root.
	entry string
	// fsys is carried by URIs minted by a MemRepository so that existence
	// probes work; parsed URIs have no handle and can't be probed.
	fsys fs.FS
}

// NewMemURI builds a MemURI for a named bundle. It fails with ErrInvalidURI
// if the bundle name is empty or the entry path is non-empty without a
// leading "/".
func NewMemURI(bundle, entryPath string) (*MemURI, error) {
	bundle = strings.TrimSpace(bundle)
	if bundle == "" || strings.ContainsAny(bundle, "!/") {
		return nil, fmt.Errorf("%w: bad bundle name %q", ErrInvalidURI, bundle)
	}
	if entryPath == "" {
		entryPath = "/"
	}
	if !strings.HasPrefix(entryPath, "/") {
		return nil, fmt.Errorf(
			"%w: entry path must start with '/', got %q", ErrInvalidURI, entryPath)
	}
	return &MemURI{bundle: bundle, entry: entryPath}, nil
}

// ParseMemURI parses the "mem:<bundle>!<entry>" form. It fails with
// ErrInvalidArgument if the scheme is not "mem".
func ParseMemURI(s string) (*MemURI, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "mem:") {
		return nil, fmt.Errorf("%w: expected mem uri, got %q", ErrInvalidArgument, s)
	}
	rest := strings.TrimPrefix(s, "mem:")
	bundle, entry, found := strings.Cut(rest, "!")
	if !found {
		return nil, fmt.Errorf("%w: mem uri without '!': %q", ErrInvalidURI, s)
	}
	return NewMemURI(bundle, entry)
}

func (u *MemURI) Container() string { return u.bundle }
func (u *MemURI) Entry() string     { return u.entry }

func (u *MemURI) String() string {
	return "mem:" + u.bundle + "!" + u.entry
}

func (u *MemURI) IsBaseOf(other URI) bool {
	o, ok := other.(*MemURI)
	if !ok || o.bundle != u.bundle {
		return false
	}
	return isSegmentPrefix(normalizeEntry(u.entry), normalizeEntry(o.entry))
}

func (u *MemURI) Normalized() URI {
	return &MemURI{bundle: u.bundle, entry: normalizeEntry(u.entry), fsys: u.fsys}
}

func (u *MemURI) ResolutionContext() (URI, error) {
	if u.fsys == nil {
		return nil, fmt.Errorf(
			"%w: mem uri %q is not attached to a bundle", ErrRepositoryIO, u.String())
	}
	entry := normalizeEntry(u.entry)
	if entry == "/" {
		return u.Normalized(), nil
	}
	info, err := fs.Stat(u.fsys, strings.TrimPrefix(entry, "/"))
	if err != nil {
		return nil, fmt.Errorf(
			"%w: no entry %q in bundle %q: %v", ErrRepositoryIO, entry, u.bundle, err)
	}
	if info.IsDir() {
		return &MemURI{bundle: u.bundle, entry: entry, fsys: u.fsys}, nil
	}
	return &MemURI{bundle: u.bundle, entry: entryDir(entry), fsys: u.fsys}, nil
}
