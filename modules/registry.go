package modules

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mapedit/scripting/internal/helpers"
)

// Registry is the ordered list of repositories consulted during module
// resolution. It is partitioned into a volatile list (added at runtime, not
// persisted, e.g. when the host loads an additional script bundle) and a
// persistent list (loaded from configuration, replaced wholesale on a
// configuration change). Volatile repositories are searched before
// persistent ones; insertion order is preserved within each partition.
//
// Lookups traverse an immutable snapshot of the combined list, swapped
// atomically on every mutation, so a lookup in flight never observes a
// partially updated list. Mutation may safely happen on a different
// goroutine than evaluation (e.g. a preferences-change notification).
type Registry struct {
	logHandler slog.Handler
	logger     *slog.Logger

	mu         sync.Mutex
	volatile   []Repository
	persistent []Repository
	combined   atomic.Pointer[[]Repository]
}

// NewRegistry creates an empty registry.
func NewRegistry(handler slog.Handler) *Registry {
	handler, logger := helpers.SetupLogger(handler, "modules", "Registry")
	r := &Registry{
		logHandler: handler,
		logger:     logger,
	}
	r.combined.Store(&[]Repository{})
	return r
}

// rebuild swaps in a fresh combined snapshot. Callers hold r.mu.
func (r *Registry) rebuild() {
	combined := make([]Repository, 0, len(r.volatile)+len(r.persistent))
	combined = append(combined, r.volatile...)
	combined = append(combined, r.persistent...)
	r.combined.Store(&combined)
}

// AddRepository appends a repository to the volatile partition. Adding a
// repository whose base URI is already registered in that partition is a
// no-op.
func (r *Registry) AddRepository(repo Repository) {
	if repo == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	base := repo.BaseURI().String()
	for _, existing := range r.volatile {
		if existing.BaseURI().String() == base {
			return
		}
	}
	r.volatile = append(r.volatile, repo)
	r.rebuild()
	r.logger.Debug("registered volatile repository", "base", base)
}

// SetPersistent replaces the persistent partition, typically after the
// repository configuration changed. The volatile partition is untouched.
func (r *Registry) SetPersistent(repos []Repository) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistent = append([]Repository(nil), repos...)
	r.rebuild()
	r.logger.Debug("reloaded persistent repositories", "count", len(repos))
}

// Snapshot returns the combined repository list in lookup order.
func (r *Registry) Snapshot() []Repository {
	return *r.combined.Load()
}

// Lookup resolves a specifier against each repository in order and returns
// the first hit. An exhausted list is a normal miss, not an error.
func (r *Registry) Lookup(id string) (URI, bool) {
	for _, repo := range r.Snapshot() {
		if uri, ok := repo.Resolve(id); ok {
			return uri, true
		}
	}
	r.logger.Debug("module not found in any repository", "id", id)
	return nil, false
}

// LookupInContext resolves a specifier in the context of an already-loaded
// module. Repositories that do not contain the context URI skip straight to
// a root-relative resolution attempt for bare specifiers; relative
// specifiers only resolve inside the repository owning the context.
func (r *Registry) LookupInContext(id string, contextURI URI) (URI, bool) {
	if contextURI == nil {
		return r.Lookup(id)
	}
	relative := false
	if moduleID, err := NewID(id); err == nil {
		relative = moduleID.IsRelative()
	}
	for _, repo := range r.Snapshot() {
		if repo.IsBaseOf(contextURI) {
			if uri, ok := repo.ResolveInContext(id, contextURI); ok {
				return uri, true
			}
			continue
		}
		// A relative specifier only means something inside the repository
		// that owns the requiring module.
		if relative {
			continue
		}
		if uri, ok := repo.Resolve(id); ok {
			return uri, true
		}
	}
	r.logger.Debug("module not found in any repository",
		"id", id, "contextUri", contextURI.String())
	return nil, false
}

// Open reads the content behind a resolved URI via the repository that
// contains it.
func (r *Registry) Open(uri URI) (io.ReadCloser, error) {
	for _, repo := range r.Snapshot() {
		if repo.IsBaseOf(uri) {
			return repo.Open(uri)
		}
	}
	return nil, fmt.Errorf(
		"%w: no repository contains %q", ErrInvalidArgument, uri.String())
}

// Load resolves a specifier and reads its content in one step. It fails
// with ErrModuleNotFound when no repository resolves the specifier.
func (r *Registry) Load(id string, contextURI URI) (URI, []byte, error) {
	var (
		uri URI
		ok  bool
	)
	if contextURI != nil {
		uri, ok = r.LookupInContext(id, contextURI)
	} else {
		uri, ok = r.Lookup(id)
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrModuleNotFound, id)
	}
	rc, err := r.Open(uri)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rc.Close() }()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, fmt.Errorf(
			"%w: read %q: %v", ErrRepositoryIO, uri.String(), err)
	}
	return uri, content, nil
}
