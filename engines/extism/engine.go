// Package extism provides the plugged WASM engine. Sources are Extism
// plugin binaries, passed either as raw bytes or base64 text; each Eval
// compiles the plugin, calls its entry point and decodes the JSON output.
package extism

import (
	"github.com/tetratelabs/wazero"

	"github.com/mapedit/scripting/engine"
)

// DefaultEntryPoint is the exported function called on each evaluation.
const DefaultEntryPoint = "run"

// Engine creates WASM plugin contexts. All contexts created by one engine
// share a wazero compilation cache.
type Engine struct {
	entryPoint    string
	runtimeConfig wazero.RuntimeConfig
}

// EngineOption configures the WASM engine.
type EngineOption func(*Engine)

// WithEntryPoint overrides the exported function name called on Eval.
func WithEntryPoint(name string) EngineOption {
	return func(e *Engine) {
		if name != "" {
			e.entryPoint = name
		}
	}
}

// New creates the WASM engine with a shared compilation cache.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		entryPoint: DefaultEntryPoint,
		runtimeConfig: wazero.NewRuntimeConfig().
			WithCompilationCache(wazero.NewCompilationCache()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Descriptor implements engine.Engine.
func (e *Engine) Descriptor() engine.Descriptor {
	return engine.Descriptor{
		Type:             engine.Plugged,
		ID:               "wasm",
		LanguageName:     "WebAssembly",
		EngineName:       "extism",
		ContentMimeTypes: []string{"application/wasm"},
	}
}

// NewContext implements engine.Engine.
func (e *Engine) NewContext(cfg engine.ContextConfig) (engine.Context, error) {
	return newContext(e.Descriptor(), e.entryPoint, e.runtimeConfig, cfg)
}
