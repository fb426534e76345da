// Package risor provides a Risor engine. Risor's own import machinery is
// not bridged to the module registry; contexts evaluate standalone sources
// with host globals injected.
package risor

import (
	"github.com/mapedit/scripting/engine"
)

// Engine creates Risor contexts.
type Engine struct{}

// New creates the Risor engine.
func New() *Engine {
	return &Engine{}
}

// Descriptor implements engine.Engine.
func (e *Engine) Descriptor() engine.Descriptor {
	return engine.Descriptor{
		Type:             engine.Polyglot,
		ID:               "risor",
		LanguageName:     "Risor",
		EngineName:       "risor",
		ContentMimeTypes: []string{"application/x-risor"},
	}
}

// NewContext implements engine.Engine.
func (e *Engine) NewContext(cfg engine.ContextConfig) (engine.Context, error) {
	return newContext(e.Descriptor(), cfg)
}
