package engine

import (
	"context"
	"log/slog"

	"github.com/mapedit/scripting/modules"
)

// ContextConfig carries everything an engine needs to build a live
// execution context.
type ContextConfig struct {
	// LogHandler receives the context's structured logs; nil selects the
	// default handler.
	LogHandler slog.Handler

	// Registry resolves require/import specifiers. Engines that bridge
	// module loading (goja's require, Starlark's load) consult it; engines
	// without module support ignore it.
	Registry *modules.Registry

	// Bindings are the host-bridged globals installed once when the context
	// is initialized. They survive a reset.
	Bindings map[string]any
}

// Context is one live script execution environment bound to one engine. A
// context accumulates script-visible state across Eval calls until Reset
// discards it. Contexts are not safe for concurrent use; the manager
// serializes evaluation onto a single goroutine.
type Context interface {
	// Descriptor identifies the engine this context belongs to.
	Descriptor() Descriptor

	// Eval executes source against the context. name labels the source in
	// errors and stack traces. Engine failures are returned as *EvalError
	// with the original cause attached.
	Eval(ctx context.Context, name, source string) (any, error)

	// Bind installs a host-bridged global. Bindings installed before the
	// first Eval survive resets.
	Bind(name string, value any) error

	// Reset discards every piece of script-defined state so nothing defined
	// before the reset stays reachable, then re-initializes the context.
	// The module cache is cleared along with the engine state.
	Reset() error

	// Close tears the context down permanently.
	Close() error
}

// Engine creates execution contexts for one script language.
type Engine interface {
	// Descriptor describes the engine and its language.
	Descriptor() Descriptor

	// NewContext builds a fresh, initialized context.
	NewContext(cfg ContextConfig) (Context, error)
}
