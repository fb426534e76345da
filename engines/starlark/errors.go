package starlark

import "errors"

var (
	// ErrNoRegistry is raised when a script calls load() but the context was
	// built without a module registry.
	ErrNoRegistry = errors.New("no module registry configured")

	// ErrBadExports is raised when a cached module record holds a value the
	// engine can't hand back to load().
	ErrBadExports = errors.New("cached module exports have unexpected type")

	// ErrUnsupportedBinding is raised when a host binding value can't be
	// represented as a Starlark value.
	ErrUnsupportedBinding = errors.New("unsupported binding type for starlark")

	// ErrCyclicLoad is raised when a module's load() chain reaches a module
	// that is still being loaded. Starlark modules can't be partially
	// initialized, so the cycle fails instead of yielding incomplete exports.
	ErrCyclicLoad = errors.New("cycle in load graph")
)
