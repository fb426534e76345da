package modules

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/mapedit/scripting/internal/helpers"
)

// MemRepository serves modules from an in-memory io/fs filesystem, typically
// an embed.FS holding the plugin's built-in API modules, or a fstest.MapFS
// in tests.
type MemRepository struct {
	bundle  string
	fsys    fs.FS
	suffix  string
	baseURI *MemURI

	logHandler slog.Handler
	logger     *slog.Logger
}

// NewMemRepository creates a repository over an in-memory bundle. It fails
// with ErrInvalidArgument on a nil filesystem or bad bundle name, and with
// ErrRepositoryIO if the filesystem root is not readable.
func NewMemRepository(bundle string, fsys fs.FS, opts ...Option) (*MemRepository, error) {
	cfg := newRepoConfig(opts)
	handler, logger := helpers.SetupLogger(cfg.logHandler, "modules", "MemRepository")

	if fsys == nil {
		return nil, fmt.Errorf("%w: nil filesystem", ErrInvalidArgument)
	}
	baseURI, err := NewMemURI(bundle, "/")
	if err != nil {
		return nil, err
	}
	baseURI.fsys = fsys
	if _, err := fs.Stat(fsys, "."); err != nil {
		return nil, fmt.Errorf(
			"%w: bundle %q root is not readable: %v", ErrRepositoryIO, bundle, err)
	}

	return &MemRepository{
		bundle:     bundle,
		fsys:       fsys,
		suffix:     cfg.suffix,
		baseURI:    baseURI,
		logHandler: handler,
		logger:     logger,
	}, nil
}

func (r *MemRepository) String() string {
	return fmt.Sprintf("modules.MemRepository{bundle: %s}", r.bundle)
}

func (r *MemRepository) BaseURI() URI {
	return r.baseURI
}

func (r *MemRepository) IsBaseOf(uri URI) bool {
	return r.baseURI.IsBaseOf(uri)
}

// fsName maps a "/"-rooted entry path to an io/fs name.
func fsName(entry string) string {
	name := strings.TrimPrefix(normalizeEntry(entry), "/")
	if name == "" {
		return "."
	}
	return name
}

func (r *MemRepository) probe(entry string) entryKind {
	info, err := fs.Stat(r.fsys, fsName(entry))
	if err != nil {
		return kindMissing
	}
	if info.IsDir() {
		return kindDir
	}
	return kindFile
}

// Resolve resolves a specifier against the bundle root.
func (r *MemRepository) Resolve(id string) (URI, bool) {
	moduleID, ok := validateSpecifier(id, r.logger)
	if !ok {
		return nil, false
	}
	return r.resolve(moduleID, "/")
}

// ResolveInContext resolves a specifier relative to the directory containing
// contextURI. It fails closed when contextURI is not a mem URI of this
// bundle.
func (r *MemRepository) ResolveInContext(id string, contextURI URI) (URI, bool) {
	moduleID, ok := validateSpecifier(id, r.logger)
	if !ok {
		return nil, false
	}
	memCtx, ok := contextURI.(*MemURI)
	if !ok {
		r.logger.Debug("context uri is not a mem uri",
			"id", id, "contextUri", contextURI.String())
		return nil, false
	}
	normalized := memCtx.Normalized()
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

func (r *MemRepository) resolutionDir(entry string) (string, bool) {
	switch r.probe(entry) {
	case kindFile:
		return entryDir(entry), true
	case kindDir:
		return entry, true
	default:
		return "", false
	}
}

func (r *MemRepository) resolve(id ID, contextDir string) (URI, bool) {
	entry, ok := resolveEntry(id, "/", contextDir, r.suffix, r.probe, r.logger)
	if !ok {
		return nil, false
	}
	resolved := &MemURI{bundle: r.bundle, entry: entry, fsys: r.fsys}
	if !r.baseURI.IsBaseOf(resolved) {
		r.logger.Debug("resolved uri is not below the repository base",
			"id", id.String(), "uri", resolved.String())
		return nil, false
	}
	return resolved, true
}

// Open returns the content of a module previously resolved by this
// repository.
func (r *MemRepository) Open(uri URI) (io.ReadCloser, error) {
	memURI, ok := uri.(*MemURI)
	if !ok || !r.IsBaseOf(memURI) {
		return nil, fmt.Errorf(
			"%w: uri %q does not belong to repository %q",
			ErrInvalidArgument, uri.String(), r.baseURI.String())
	}
	f, err := r.fsys.Open(fsName(memURI.Entry()))
	if err != nil {
		return nil, fmt.Errorf(
			"%w: open %q in bundle %q: %v", ErrRepositoryIO, memURI.Entry(), r.bundle, err)
	}
	return f, nil
}
