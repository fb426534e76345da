package modules

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mapedit/scripting/internal/helpers"
)

// DirRepository serves modules from a directory tree in the local
// filesystem.
type DirRepository struct {
	// root is the absolute, slash-separated repository root.
	root    string
	suffix  string
	baseURI *FileURI

	logHandler slog.Handler
	logger     *slog.Logger
}

// NewDirRepository creates a repository rooted at the given directory. It
// fails with ErrRepositoryIO if the directory does not exist or is not
// readable. Construction is fail-fast: a repository over a missing root is
// never silently empty.
func NewDirRepository(root string, opts ...Option) (*DirRepository, error) {
	cfg := newRepoConfig(opts)
	handler, logger := helpers.SetupLogger(cfg.logHandler, "modules", "DirRepository")

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidArgument, root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %q: %v", ErrRepositoryIO, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %q is not a directory", ErrRepositoryIO, abs)
	}
	if _, err := os.ReadDir(abs); err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrRepositoryIO, abs, err)
	}

	baseURI, err := NewFileURI(filepath.ToSlash(abs))
	if err != nil {
		return nil, err
	}
	return &DirRepository{
		root:       baseURI.Entry(),
		suffix:     cfg.suffix,
		baseURI:    baseURI,
		logHandler: handler,
		logger:     logger,
	}, nil
}

// NewDirRepositoryFromURI creates a repository from a "file:" URI or plain
// absolute path string.
func NewDirRepositoryFromURI(uri string, opts ...Option) (*DirRepository, error) {
	fileURI, err := ParseFileURI(uri)
	if err != nil {
		return nil, err
	}
	return NewDirRepository(fileURI.Path(), opts...)
}

func (r *DirRepository) String() string {
	return fmt.Sprintf("modules.DirRepository{root: %s}", r.root)
}

func (r *DirRepository) BaseURI() URI {
	return r.baseURI
}

func (r *DirRepository) IsBaseOf(uri URI) bool {
	return r.baseURI.IsBaseOf(uri)
}

func (r *DirRepository) probe(entry string) entryKind {
	info, err := os.Stat(filepath.FromSlash(entry))
	if err != nil {
		return kindMissing
	}
	if info.IsDir() {
		return kindDir
	}
	return kindFile
}

// Resolve resolves a specifier against the repository root.
func (r *DirRepository) Resolve(id string) (URI, bool) {
	moduleID, ok := validateSpecifier(id, r.logger)
	if !ok {
		return nil, false
	}
	return r.resolve(moduleID, r.root)
}

// ResolveInContext resolves a specifier relative to the directory containing
// contextURI. It fails closed when contextURI is not a file URI inside this
// repository.
func (r *DirRepository) ResolveInContext(id string, contextURI URI) (URI, bool) {
	moduleID, ok := validateSpecifier(id, r.logger)
	if !ok {
		return nil, false
	}
	fileCtx, ok := contextURI.(*FileURI)
	if !ok {
		r.logger.Debug("context uri is not a file uri",
			"id", id, "contextUri", contextURI.String())
		return nil, false
	}
	normalized := fileCtx.Normalized()
	if !r.baseURI.IsBaseOf(normalized) {
		r.logger.Debug("context uri lies outside the repository",
			"id", id, "contextUri", contextURI.String(), "base", r.baseURI.String())
		return nil, false
	}
	contextDir, err := contextDirWithin(normalized)
	if err != nil {
		r.logger.Debug("failed to derive resolution context",
			"id", id, "contextUri", contextURI.String(), "error", err)
		return nil, false
	}
	return r.resolve(moduleID, contextDir)
}

func (r *DirRepository) resolve(id ID, contextDir string) (URI, bool) {
	entry, ok := resolveEntry(id, r.root, contextDir, r.suffix, r.probe, r.logger)
	if !ok {
		return nil, false
	}
	resolved := &FileURI{path: entry}
	// Containment is enforced again on the final URI so a specifier can't
	// escape the root via indirection.
	if !r.baseURI.IsBaseOf(resolved) {
		r.logger.Debug("resolved uri is not below the repository base",
			"id", id.String(), "uri", resolved.String())
		return nil, false
	}
	return resolved, true
}

// Open returns the content of a module previously resolved by this
// repository.
func (r *DirRepository) Open(uri URI) (io.ReadCloser, error) {
	fileURI, ok := uri.(*FileURI)
	if !ok || !r.IsBaseOf(fileURI) {
		return nil, fmt.Errorf(
			"%w: uri %q does not belong to repository %q",
			ErrInvalidArgument, uri.String(), r.baseURI.String())
	}
	f, err := os.Open(fileURI.Path())
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrRepositoryIO, fileURI.Path(), err)
	}
	return f, nil
}
