package modules

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mapedit/scripting/internal/helpers"
)

// ZipRepository serves modules from a zip/jar archive in the local
// filesystem, optionally restricted to a directory entry inside the archive.
// The archive's table of contents is read once at construction; module
// content is read from the archive on demand.
type ZipRepository struct {
	baseURI *ZipURI
	suffix  string

	// files and dirs hold the archive's entries as "/"-rooted paths.
	// Directories may be explicit entries or implied by deeper entries.
	files map[string]struct{}
	dirs  map[string]struct{}

	logHandler slog.Handler
	logger     *slog.Logger
}

// NewZipRepository creates a repository over a whole archive. It fails with
// ErrRepositoryIO if the archive does not exist, is not readable, or is not
// a zip file.
func NewZipRepository(archivePath string, opts ...Option) (*ZipRepository, error) {
	return NewZipRepositoryAt(archivePath, "/", opts...)
}

// NewZipRepositoryAt creates a repository over the subtree of an archive
// rooted at rootPath. It fails with ErrInvalidArgument if rootPath is empty
// or missing the leading "/", and with ErrRepositoryIO if the archive can't
// be read or rootPath is not a directory entry inside it.
func NewZipRepositoryAt(archivePath, rootPath string, opts ...Option) (*ZipRepository, error) {
	if strings.TrimSpace(rootPath) == "" {
		return nil, fmt.Errorf("%w: empty root path", ErrInvalidArgument)
	}
	if !strings.HasPrefix(rootPath, "/") {
		return nil, fmt.Errorf(
			"%w: root path must start with '/', got %q", ErrInvalidArgument, rootPath)
	}
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidArgument, archivePath, err)
	}
	baseURI, err := NewZipURI(filepath.ToSlash(abs), normalizeEntry(rootPath))
	if err != nil {
		return nil, err
	}
	return newZipRepository(baseURI, opts)
}

// NewZipRepositoryFromURI creates a repository from a
// "jar:file:...!/<path>" URI string.
func NewZipRepositoryFromURI(uri string, opts ...Option) (*ZipRepository, error) {
	zipURI, err := ParseZipURI(uri)
	if err != nil {
		return nil, err
	}
	normalized, ok := zipURI.Normalized().(*ZipURI)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return newZipRepository(normalized, opts)
}

func newZipRepository(baseURI *ZipURI, opts []Option) (*ZipRepository, error) {
	cfg := newRepoConfig(opts)
	handler, logger := helpers.SetupLogger(cfg.logHandler, "modules", "ZipRepository")

	if !(baseURI.RefersToReadableFile() && baseURI.RefersToZipFile()) {
		return nil, fmt.Errorf(
			"%w: %q does not exist, is not readable, or is not a zip archive",
			ErrRepositoryIO, baseURI.ArchivePath())
	}

	repo := &ZipRepository{
		baseURI:    baseURI,
		suffix:     cfg.suffix,
		files:      make(map[string]struct{}),
		dirs:       map[string]struct{}{"/": {}},
		logHandler: handler,
		logger:     logger,
	}
	if err := repo.indexArchive(); err != nil {
		return nil, err
	}

	if root := baseURI.Entry(); root != "/" {
		if _, ok := repo.dirs[root]; !ok {
			return nil, fmt.Errorf(
				"%w: no directory entry %q in archive %q",
				ErrRepositoryIO, root, baseURI.ArchivePath())
		}
	}
	return repo, nil
}

func (r *ZipRepository) indexArchive() error {
	reader, err := zip.OpenReader(r.baseURI.ArchivePath())
	if err != nil {
		return fmt.Errorf(
			"%w: open archive %q: %v", ErrRepositoryIO, r.baseURI.ArchivePath(), err)
	}
	defer func() { _ = reader.Close() }()

	for _, f := range reader.File {
		entry := normalizeEntry(f.Name)
		if f.FileInfo().IsDir() {
			r.dirs[entry] = struct{}{}
		} else {
			r.files[entry] = struct{}{}
		}
		// Record implied parent directories.
		for dir := entryDir(entry); dir != "/"; dir = entryDir(dir) {
			r.dirs[dir] = struct{}{}
		}
	}
	return nil
}

func (r *ZipRepository) String() string {
	return fmt.Sprintf("modules.ZipRepository{base: %s}", r.baseURI.String())
}

func (r *ZipRepository) BaseURI() URI {
	return r.baseURI
}

func (r *ZipRepository) IsBaseOf(uri URI) bool {
	return r.baseURI.IsBaseOf(uri)
}

func (r *ZipRepository) probe(entry string) entryKind {
	if _, ok := r.files[entry]; ok {
		return kindFile
	}
	if _, ok := r.dirs[entry]; ok {
		return kindDir
	}
	return kindMissing
}

// Resolve resolves a specifier against the repository's root entry.
func (r *ZipRepository) Resolve(id string) (URI, bool) {
	moduleID, ok := validateSpecifier(id, r.logger)
	if !ok {
		return nil, false
	}
	return r.resolve(moduleID, r.baseURI.Entry())
}

// ResolveInContext resolves a specifier relative to the directory containing
// contextURI. It fails closed when contextURI is not a zip URI inside this
// repository.
func (r *ZipRepository) ResolveInContext(id string, contextURI URI) (URI, bool) {
	moduleID, ok := validateSpecifier(id, r.logger)
	if !ok {
		return nil, false
	}
	zipCtx, ok := contextURI.(*ZipURI)
	if !ok {
		r.logger.Debug("context uri is not a jar uri",
			"id", id, "contextUri", contextURI.String())
		return nil, false
	}
	normalized := zipCtx.Normalized()
	if !r.baseURI.IsBaseOf(normalized) {
		r.logger.Debug("context uri lies outside the repository",
			"id", id, "contextUri", contextURI.String(), "base", r.baseURI.String())
		return nil, false
	}
	contextDir, ok := r.resolutionDir(normalized.Entry())
	if !ok {
		r.logger.Debug("failed to derive resolution context",
			"id", id, "contextUri", contextURI.String())
		return nil, false
	}
	return r.resolve(moduleID, contextDir)
}

// resolutionDir maps a context entry to the directory relative specifiers
// resolve against, using the archive index instead of reopening the archive.
func (r *ZipRepository) resolutionDir(entry string) (string, bool) {
	switch r.probe(entry) {
	case kindFile:
		return entryDir(entry), true
	case kindDir:
		return entry, true
	default:
		return "", false
	}
}

func (r *ZipRepository) resolve(id ID, contextDir string) (URI, bool) {
	entry, ok := resolveEntry(id, r.baseURI.Entry(), contextDir, r.suffix, r.probe, r.logger)
	if !ok {
		return nil, false
	}
	resolved := &ZipURI{archive: r.baseURI.archive, entry: entry}
	if !r.baseURI.IsBaseOf(resolved) {
		r.logger.Debug("resolved uri is not below the repository base",
			"id", id.String(), "uri", resolved.String())
		return nil, false
	}
	return resolved, true
}

// Open returns the content of a module previously resolved by this
// repository. The entry is read fully so the archive handle never outlives
// the call.
func (r *ZipRepository) Open(uri URI) (io.ReadCloser, error) {
	zipURI, ok := uri.(*ZipURI)
	if !ok || !r.IsBaseOf(zipURI) {
		return nil, fmt.Errorf(
			"%w: uri %q does not belong to repository %q",
			ErrInvalidArgument, uri.String(), r.baseURI.String())
	}
	reader, err := zip.OpenReader(r.baseURI.ArchivePath())
	if err != nil {
		return nil, fmt.Errorf(
			"%w: open archive %q: %v", ErrRepositoryIO, r.baseURI.ArchivePath(), err)
	}
	defer func() { _ = reader.Close() }()

	name := strings.TrimPrefix(normalizeEntry(zipURI.Entry()), "/")
	for _, f := range reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf(
				"%w: open entry %q: %v", ErrRepositoryIO, name, err)
		}
		defer func() { _ = rc.Close() }()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf(
				"%w: read entry %q: %v", ErrRepositoryIO, name, err)
		}
		return io.NopCloser(bytes.NewReader(content)), nil
	}
	return nil, fmt.Errorf(
		"%w: no entry %q in archive %q",
		ErrRepositoryIO, name, r.baseURI.ArchivePath())
}
