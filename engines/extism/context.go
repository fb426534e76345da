package extism

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	extismSDK "github.com/extism/go-sdk"
	"github.com/tetratelabs/wazero"

	"github.com/mapedit/scripting/engine"
	"github.com/mapedit/scripting/internal/helpers"
)

// Context is a live WASM plugin execution environment. Host bindings are
// marshaled to JSON and passed to the plugin as its input payload.
type Context struct {
	descriptor    engine.Descriptor
	entryPoint    string
	runtimeConfig wazero.RuntimeConfig
	bindings      map[string]any
	closed        bool

	logHandler slog.Handler
	logger     *slog.Logger
}

func newContext(
	descriptor engine.Descriptor,
	entryPoint string,
	runtimeConfig wazero.RuntimeConfig,
	cfg engine.ContextConfig,
) (*Context, error) {
	handler, logger := helpers.SetupLogger(cfg.LogHandler, "extism", "Context")

	bindings := make(map[string]any, len(cfg.Bindings))
	for name, value := range cfg.Bindings {
		bindings[name] = value
	}
	return &Context{
		descriptor:    descriptor,
		entryPoint:    entryPoint,
		runtimeConfig: runtimeConfig,
		bindings:      bindings,
		logHandler:    handler,
		logger:        logger,
	}, nil
}

// Descriptor implements engine.Context.
func (c *Context) Descriptor() engine.Descriptor {
	return c.descriptor
}

// Bind implements engine.Context. Bindings become part of the JSON input
// payload handed to the plugin.
func (c *Context) Bind(name string, value any) error {
	if c.closed {
		return engine.ErrContextDisposed
	}
	c.bindings[name] = value
	return nil
}

// wasmBytes accepts either base64 text or raw binary content.
func wasmBytes(source string) ([]byte, error) {
	if source == "" {
		return nil, ErrContentNil
	}
	if decoded, err := base64.StdEncoding.DecodeString(source); err == nil {
		return decoded, nil
	}
	return []byte(source), nil
}

// Eval implements engine.Context. The source is an Extism plugin binary;
// its entry point receives the host bindings as a JSON object and its
// output is JSON-decoded when possible.
func (c *Context) Eval(ctx context.Context, name, source string) (any, error) {
	if c.closed {
		return nil, engine.ErrContextDisposed
	}
	logger := c.logger.WithGroup("Eval").With("source", name)

	content, err := wasmBytes(source)
	if err != nil {
		return nil, &engine.EvalError{Engine: c.descriptor.String(), Source: name, Err: err}
	}
	if len(content) == 0 {
		return nil, &engine.EvalError{
			Engine: c.descriptor.String(), Source: name, Err: ErrContentNil,
		}
	}

	manifest := extismSDK.Manifest{
		Wasm: []extismSDK.Wasm{
			extismSDK.WasmData{Data: content},
		},
	}
	config := extismSDK.PluginConfig{
		EnableWasi:    true,
		RuntimeConfig: c.runtimeConfig,
	}
	plugin, err := extismSDK.NewCompiledPlugin(ctx, manifest, config, nil)
	if err != nil {
		logger.Debug("plugin compilation failed", "error", err)
		return nil, &engine.EvalError{
			Engine: c.descriptor.String(), Source: name,
			Err: fmt.Errorf("%w: %w", ErrCompileFailed, err),
		}
	}
	defer func() { _ = plugin.Close(ctx) }()

	instance, err := plugin.Instance(ctx, extismSDK.PluginInstanceConfig{})
	if err != nil {
		return nil, &engine.EvalError{Engine: c.descriptor.String(), Source: name, Err: err}
	}
	defer func() { _ = instance.Close(ctx) }()

	if !instance.FunctionExists(c.entryPoint) {
		return nil, &engine.EvalError{
			Engine: c.descriptor.String(), Source: name,
			Err: fmt.Errorf("%w: %q", ErrEntryPointMissing, c.entryPoint),
		}
	}

	input, err := json.Marshal(c.bindings)
	if err != nil {
		return nil, &engine.EvalError{Engine: c.descriptor.String(), Source: name, Err: err}
	}

	exit, output, err := instance.CallWithContext(ctx, c.entryPoint, input)
	if err != nil {
		logger.Debug("plugin call failed", "error", err, "exit", exit)
		return nil, &engine.EvalError{Engine: c.descriptor.String(), Source: name, Err: err}
	}
	if exit != 0 {
		return nil, &engine.EvalError{
			Engine: c.descriptor.String(), Source: name,
			Err: fmt.Errorf("%w: %d", ErrNonZeroExit, exit),
		}
	}

	if len(output) == 0 {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(output, &decoded); err != nil {
		// Not JSON; hand the raw output back as text.
		return string(output), nil
	}
	return decoded, nil
}

// Reset implements engine.Context. Plugins are compiled per evaluation, so
// no engine-side state outlives a call.
func (c *Context) Reset() error {
	if c.closed {
		return engine.ErrContextDisposed
	}
	c.logger.Debug("context reset")
	return nil
}

// Close implements engine.Context.
func (c *Context) Close() error {
	c.closed = true
	return nil
}
