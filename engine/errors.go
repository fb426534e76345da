package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEngine indicates an evaluation request for an engine that is
	// not registered. A programming error by the embedding host; fails fast.
	ErrUnknownEngine = errors.New("unknown script engine")

	// ErrContextDisposed indicates an operation on a context manager that
	// was already disposed. Disposal is terminal.
	ErrContextDisposed = errors.New("script context disposed")
)

// EvalError wraps a failure raised inside a script engine during
// compilation or execution. The original engine error is always preserved
// as the cause.
type EvalError struct {
	// Engine is the persisted "<type>/<id>" form of the engine descriptor.
	Engine string
	// Source names the script that failed (a file path, module URI, or
	// synthetic name for inline source).
	Source string
	Err    error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("script evaluation failed (engine %s, source %s): %v",
		e.Engine, e.Source, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// LoadError wraps a failure to compile or evaluate a module body during
// require/import. Load failures are never cached: a retry after the module
// source is fixed must succeed without a context reset.
type LoadError struct {
	ModuleID string
	URI      string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load module %q from %s: %v", e.ModuleID, e.URI, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
