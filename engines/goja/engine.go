// Package goja provides the embedded JavaScript engine. Scripts get a
// CommonJS-style require() resolved through the module repository registry.
package goja

import (
	"github.com/mapedit/scripting/engine"
)

// Engine creates JavaScript contexts backed by the goja runtime.
type Engine struct{}

// New creates the goja engine.
func New() *Engine {
	return &Engine{}
}

// Descriptor implements engine.Engine.
func (e *Engine) Descriptor() engine.Descriptor {
	return engine.Descriptor{
		Type:             engine.Embedded,
		ID:               "goja",
		LanguageName:     "JavaScript",
		LanguageVersion:  "ECMAScript 5.1+",
		EngineName:       "goja",
		ContentMimeTypes: []string{"text/javascript", "application/javascript"},
	}
}

// NewContext implements engine.Engine.
func (e *Engine) NewContext(cfg engine.ContextConfig) (engine.Context, error) {
	return newContext(e.Descriptor(), cfg)
}
