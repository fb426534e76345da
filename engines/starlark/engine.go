// Package starlark provides a Starlark engine. Scripts import modules with
// load(), resolved through the module repository registry.
package starlark

import (
	"github.com/mapedit/scripting/engine"
)

// Engine creates Starlark contexts.
type Engine struct{}

// New creates the Starlark engine.
func New() *Engine {
	return &Engine{}
}

// Descriptor implements engine.Engine.
func (e *Engine) Descriptor() engine.Descriptor {
	return engine.Descriptor{
		Type:             engine.Polyglot,
		ID:               "starlark",
		LanguageName:     "Starlark",
		EngineName:       "starlark-go",
		ContentMimeTypes: []string{"application/x-starlark", "text/x-python"},
	}
}

// NewContext implements engine.Engine.
func (e *Engine) NewContext(cfg engine.ContextConfig) (engine.Context, error) {
	return newContext(e.Descriptor(), cfg)
}
