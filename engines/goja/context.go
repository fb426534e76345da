package goja

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	gojaLib "github.com/dop251/goja"

	"github.com/mapedit/scripting/engine"
	"github.com/mapedit/scripting/internal/helpers"
	"github.com/mapedit/scripting/modules"
)

// moduleWrapperPrefix and moduleWrapperSuffix frame a module body so that
// exports, require and module are plain function parameters, following the
// CommonJS wrapper convention.
const (
	moduleWrapperPrefix = "(function(exports, require, module) {\n"
	moduleWrapperSuffix = "\n})"
)

// Context is a live JavaScript execution environment. Script-defined state
// accumulates in the underlying runtime across Eval calls; Reset replaces
// the runtime wholesale so nothing defined before the reset stays reachable.
type Context struct {
	descriptor engine.Descriptor
	registry   *modules.Registry
	bindings   map[string]any

	rt     *gojaLib.Runtime
	cache  *modules.Cache
	closed bool

	logHandler slog.Handler
	logger     *slog.Logger
}

func newContext(descriptor engine.Descriptor, cfg engine.ContextConfig) (*Context, error) {
	handler, logger := helpers.SetupLogger(cfg.LogHandler, "goja", "Context")

	bindings := make(map[string]any, len(cfg.Bindings))
	for name, value := range cfg.Bindings {
		bindings[name] = value
	}
	c := &Context{
		descriptor: descriptor,
		registry:   cfg.Registry,
		bindings:   bindings,
		cache:      modules.NewCache(),
		logHandler: handler,
		logger:     logger,
	}
	if err := c.initRuntime(); err != nil {
		return nil, err
	}
	return c, nil
}

// initRuntime builds a fresh runtime and installs the host bindings and the
// root require hook.
func (c *Context) initRuntime() error {
	rt := gojaLib.New()
	for name, value := range c.bindings {
		if err := rt.Set(name, value); err != nil {
			return fmt.Errorf("failed to install binding %q: %w", name, err)
		}
	}
	c.rt = rt
	// The top-level require resolves against repository roots only; modules
	// get their own require bound to their URI.
	if err := rt.Set("require", c.makeRequire(nil)); err != nil {
		return fmt.Errorf("failed to install require: %w", err)
	}
	return nil
}

// Descriptor implements engine.Context.
func (c *Context) Descriptor() engine.Descriptor {
	return c.descriptor
}

// Bind implements engine.Context. Bindings survive resets.
func (c *Context) Bind(name string, value any) error {
	if c.closed {
		return engine.ErrContextDisposed
	}
	c.bindings[name] = value
	return c.rt.Set(name, value)
}

// Eval implements engine.Context. Cancelling ctx interrupts the runtime;
// callers that must let a run finish pass a non-cancellable context.
func (c *Context) Eval(ctx context.Context, name, source string) (any, error) {
	if c.closed {
		return nil, engine.ErrContextDisposed
	}
	logger := c.logger.WithGroup("Eval").With("source", name)

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.rt.Interrupt(ctx.Err())
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		c.rt.ClearInterrupt()
	}()

	value, err := c.rt.RunScript(name, source)
	if err != nil {
		logger.Debug("evaluation failed", "error", err)
		return nil, &engine.EvalError{
			Engine: c.descriptor.String(),
			Source: name,
			Err:    err,
		}
	}
	if value == nil || gojaLib.IsUndefined(value) || gojaLib.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

// Reset implements engine.Context. The runtime and the module cache are
// discarded and rebuilt; host bindings are re-installed.
func (c *Context) Reset() error {
	if c.closed {
		return engine.ErrContextDisposed
	}
	c.cache.Clear()
	if err := c.initRuntime(); err != nil {
		return err
	}
	c.logger.Debug("context reset")
	return nil
}

// Close implements engine.Context.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.cache.Clear()
	c.rt = nil
	return nil
}

func readAll(rc io.ReadCloser) ([]byte, error) {
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// makeRequire builds a require function resolving relative specifiers
// against the URI of the requiring module. from is nil for the top-level
// require.
func (c *Context) makeRequire(from modules.URI) func(call gojaLib.FunctionCall) gojaLib.Value {
	return func(call gojaLib.FunctionCall) gojaLib.Value {
		id := call.Argument(0).String()
		exports, err := c.requireModule(id, from)
		if err != nil {
			panic(c.rt.NewGoError(err))
		}
		return exports
	}
}

// requireModule resolves, loads, compiles and memoizes a module. Load and
// compile failures are never cached.
func (c *Context) requireModule(id string, from modules.URI) (gojaLib.Value, error) {
	if c.registry == nil {
		return nil, fmt.Errorf("%w: can't require %q", ErrNoRegistry, id)
	}
	logger := c.logger.WithGroup("require").With("id", id)

	var (
		uri modules.URI
		ok  bool
	)
	if from != nil {
		uri, ok = c.registry.LookupInContext(id, from)
	} else {
		uri, ok = c.registry.Lookup(id)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", modules.ErrModuleNotFound, id)
	}

	key := modules.CacheKey(uri)
	if rec, found := c.cache.Get(key); found {
		exports, isValue := rec.Exports.(gojaLib.Value)
		if !isValue {
			return nil, fmt.Errorf("%w: module %q", ErrBadExports, key)
		}
		logger.Debug("module served from cache", "key", key)
		return exports, nil
	}

	reader, err := c.registry.Open(uri)
	if err != nil {
		return nil, &engine.LoadError{ModuleID: id, URI: uri.String(), Err: err}
	}
	source, err := readAll(reader)
	if err != nil {
		return nil, &engine.LoadError{ModuleID: id, URI: uri.String(), Err: err}
	}

	program, err := gojaLib.Compile(
		uri.String(), moduleWrapperPrefix+string(source)+moduleWrapperSuffix, true)
	if err != nil {
		logger.Debug("module compilation failed", "uri", uri.String(), "error", err)
		return nil, &engine.LoadError{ModuleID: id, URI: uri.String(), Err: err}
	}
	wrapperValue, err := c.rt.RunProgram(program)
	if err != nil {
		return nil, &engine.LoadError{ModuleID: id, URI: uri.String(), Err: err}
	}
	wrapper, isFunc := gojaLib.AssertFunction(wrapperValue)
	if !isFunc {
		return nil, &engine.LoadError{
			ModuleID: id, URI: uri.String(),
			Err: fmt.Errorf("module wrapper did not compile to a function"),
		}
	}

	exportsObj := c.rt.NewObject()
	moduleObj := c.rt.NewObject()
	if err := moduleObj.Set("exports", exportsObj); err != nil {
		return nil, &engine.LoadError{ModuleID: id, URI: uri.String(), Err: err}
	}
	if err := moduleObj.Set("id", key); err != nil {
		return nil, &engine.LoadError{ModuleID: id, URI: uri.String(), Err: err}
	}
	if err := moduleObj.Set("uri", uri.String()); err != nil {
		return nil, &engine.LoadError{ModuleID: id, URI: uri.String(), Err: err}
	}
	requireFn := c.rt.ToValue(c.makeRequire(uri))

	// The record is stored before the body runs so that circular requires
	// observe the partially built exports instead of recursing forever. A
	// failed body removes the record again.
	record := &modules.Record{Key: key, URI: uri, Exports: gojaLib.Value(exportsObj)}
	c.cache.Put(record)

	if _, err := wrapper(gojaLib.Undefined(), exportsObj, requireFn, moduleObj); err != nil {
		c.cache.Delete(key)
		logger.Debug("module body failed", "uri", uri.String(), "error", err)
		return nil, &engine.LoadError{ModuleID: id, URI: uri.String(), Err: err}
	}

	// module.exports may have been reassigned by the body.
	finalExports := moduleObj.Get("exports")
	record.Exports = finalExports
	logger.Debug("module loaded", "uri", uri.String(), "key", key)
	return finalExports, nil
}
