package goja

import "errors"

var (
	// ErrNoRegistry is raised when a script calls require() but the context
	// was built without a module registry.
	ErrNoRegistry = errors.New("no module registry configured")

	// ErrBadExports is raised when a cached module record holds a value the
	// runtime can't hand back to a script. Indicates a programming error in
	// the embedding layer, not in the script.
	ErrBadExports = errors.New("cached module exports have unexpected type")
)
