package modules

import (
	"io"
	"log/slog"
	"path"
)

// Repository is one searchable root for module source. Implementations back
// it with a filesystem directory (DirRepository), a zip/jar archive
// (ZipRepository), or an in-memory bundle (MemRepository). The variant set
// is closed; shared behavior lives in resolveEntry, not in a base type.
type Repository interface {
	// Resolve resolves a specifier against the repository root. An invalid
	// or unresolvable specifier is a miss (nil, false), logged at debug
	// level, never an error: "not found" is an expected outcome.
	Resolve(id string) (URI, bool)

	// ResolveInContext resolves a specifier relative to the containing
	// directory of contextURI (for "./" and "../" specifiers) or the
	// repository root (for bare specifiers). It fails closed when the
	// context URI is not of this repository's variant, lies outside the
	// repository, or the resolved URI escapes the repository's base URI.
	ResolveInContext(id string, contextURI URI) (URI, bool)

	// IsBaseOf reports whether uri lies at or below this repository's base
	// URI, respecting path-segment boundaries.
	IsBaseOf(uri URI) bool

	// BaseURI returns the repository's root locator.
	BaseURI() URI

	// Open returns the content of a module previously resolved by this
	// repository.
	Open(uri URI) (io.ReadCloser, error)
}

type entryKind int

const (
	kindMissing entryKind = iota
	kindFile
	kindDir
)

// DefaultSuffix is the primary language suffix tried during resolution.
const DefaultSuffix = ".js"

// repoConfig carries the options shared by all repository variants.
type repoConfig struct {
	suffix     string
	logHandler slog.Handler
}

// Option configures a repository at construction time.
type Option func(*repoConfig)

// WithSuffix sets the primary language suffix (".js" or ".mjs") tried during
// resolution. The directory index file follows the suffix.
func WithSuffix(suffix string) Option {
	return func(cfg *repoConfig) {
		cfg.suffix = suffix
	}
}

// WithLogHandler sets the slog handler used for resolution debug logging.
func WithLogHandler(handler slog.Handler) Option {
	return func(cfg *repoConfig) {
		cfg.logHandler = handler
	}
}

func newRepoConfig(opts []Option) *repoConfig {
	cfg := &repoConfig{suffix: DefaultSuffix}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// resolveEntry runs the shared resolution algorithm over "/"-rooted entry
// paths inside a container. baseDir is the repository's root entry path,
// contextDir the directory the specifier resolves against (equal to baseDir
// for bare specifiers). probe classifies an entry path against the backing
// store.
//
// Candidates are tried in order, first file entry wins:
//
//  1. the exact entry path, any language suffix preserved
//  2. the suffix-stripped entry path plus the primary suffix
//  3. the entry path as a directory holding an index file
//
// A directory entry without an index file is a miss. Entry paths that leave
// baseDir, no matter how many ".." segments the specifier supplied, are a
// miss before any probe happens.
func resolveEntry(
	id ID,
	baseDir, contextDir, suffix string,
	probe func(entry string) entryKind,
	logger *slog.Logger,
) (string, bool) {
	resolveDir := baseDir
	if id.IsRelative() {
		resolveDir = contextDir
	}
	target := normalizeEntry(path.Join(resolveDir, id.Normalized().String()))
	exact := normalizeEntry(path.Join(resolveDir, id.normalizedExact()))

	if !isSegmentPrefix(baseDir, target) || !isSegmentPrefix(baseDir, exact) {
		logger.Debug("resolved entry escapes repository root",
			"id", id.String(), "entry", target, "base", baseDir)
		return "", false
	}

	candidates := make([]string, 0, 3)
	candidates = append(candidates, exact)
	if suffixed := target + suffix; suffixed != exact {
		candidates = append(candidates, suffixed)
	}
	candidates = append(candidates, target+"/index"+suffix)
	for _, candidate := range candidates {
		if probe(candidate) == kindFile {
			logger.Debug("resolved module", "id", id.String(), "entry", candidate)
			return candidate, true
		}
	}
	logger.Debug("module not found in repository",
		"id", id.String(), "entry", target, "base", baseDir)
	return "", false
}

// contextDirWithin derives the "/"-rooted directory, relative to the
// container, that a context URI resolves relative specifiers against. The
// context URI must already be normalized and verified to lie within the
// repository.
func contextDirWithin(contextURI URI) (string, error) {
	resCtx, err := contextURI.ResolutionContext()
	if err != nil {
		return "", err
	}
	return resCtx.Entry(), nil
}

// validateSpecifier parses a raw specifier, logging rejects at debug level.
func validateSpecifier(raw string, logger *slog.Logger) (ID, bool) {
	id, err := NewID(raw)
	if err != nil {
		logger.Debug("can't resolve invalid module id", "id", raw, "error", err)
		return ID{}, false
	}
	return id, true
}
