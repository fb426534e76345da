package starlark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"

	starlarkLib "go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/mapedit/scripting/engine"
	"github.com/mapedit/scripting/internal/helpers"
	"github.com/mapedit/scripting/modules"
)

// threadLocalURI is the thread-local key holding the URI of the module a
// thread is currently loading, the base for its relative load() calls.
const threadLocalURI = "moduleURI"

// resultGlobal is the conventional name a script assigns its result to.
const resultGlobal = "result"

// Context is a live Starlark execution environment. Globals defined by one
// Eval stay visible to the next until Reset discards them.
type Context struct {
	descriptor engine.Descriptor
	registry   *modules.Registry
	bindings   map[string]any

	// predeclared is the universe plus host bindings; globals accumulates
	// script-defined module-level state.
	predeclared starlarkLib.StringDict
	globals     starlarkLib.StringDict
	cache       *modules.Cache
	// loading tracks the cache keys of modules whose top level is still
	// executing, so a cyclic load() fails instead of recursing.
	loading map[string]bool
	closed  bool

	logHandler slog.Handler
	logger     *slog.Logger
}

func newContext(descriptor engine.Descriptor, cfg engine.ContextConfig) (*Context, error) {
	handler, logger := helpers.SetupLogger(cfg.LogHandler, "starlark", "Context")

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
	if err := c.initState(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Context) initState() error {
	predeclared := standardModules()
	for name, value := range c.bindings {
		converted, err := toStarlark(value)
		if err != nil {
			return fmt.Errorf("failed to install binding %q: %w", name, err)
		}
		predeclared[name] = converted
	}
	c.predeclared = predeclared
	c.globals = make(starlarkLib.StringDict)
	c.loading = make(map[string]bool)
	return nil
}

func (c *Context) fileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		GlobalReassign:  true,
		TopLevelControl: true,
		Set:             true,
	}
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
	converted, err := toStarlark(value)
	if err != nil {
		return err
	}
	c.bindings[name] = value
	c.predeclared[name] = converted
	return nil
}

// Eval implements engine.Context. Module-level globals defined by the
// source stay visible to later Eval calls on this context.
func (c *Context) Eval(ctx context.Context, name, source string) (any, error) {
	if c.closed {
		return nil, engine.ErrContextDisposed
	}
	logger := c.logger.WithGroup("Eval").With("source", name)

	thread := &starlarkLib.Thread{
		Name: name,
		Load: c.load,
		Print: func(thread *starlarkLib.Thread, msg string) {
			logger.Info(msg, "thread", thread.Name)
		},
	}
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-stop:
		}
	}()
	defer close(stop)

	predeclared := make(starlarkLib.StringDict, len(c.predeclared)+len(c.globals))
	maps.Copy(predeclared, c.predeclared)
	maps.Copy(predeclared, c.globals)

	newGlobals, err := starlarkLib.ExecFileOptions(
		c.fileOptions(), thread, name, source, predeclared)
	if err != nil {
		logger.Debug("evaluation failed", "error", err)
		return nil, &engine.EvalError{
			Engine: c.descriptor.String(),
			Source: name,
			Err:    err,
		}
	}
	maps.Copy(c.globals, newGlobals)

	if value, ok := newGlobals[resultGlobal]; ok {
		return fromStarlark(value), nil
	}
	return nil, nil
}

// Reset implements engine.Context. Accumulated globals and the module cache
// are discarded; host bindings are re-installed.
func (c *Context) Reset() error {
	if c.closed {
		return engine.ErrContextDisposed
	}
	c.cache.Clear()
	if err := c.initState(); err != nil {
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
	c.predeclared = nil
	c.globals = nil
	return nil
}

// load is the Thread.Load hook. Relative specifiers resolve against the URI
// of the module issuing the load(), carried as a thread local.
func (c *Context) load(thread *starlarkLib.Thread, module string) (starlarkLib.StringDict, error) {
	if c.registry == nil {
		return nil, fmt.Errorf("%w: can't load %q", ErrNoRegistry, module)
	}
	logger := c.logger.WithGroup("load").With("module", module)

	var from modules.URI
	if local := thread.Local(threadLocalURI); local != nil {
		if uri, ok := local.(modules.URI); ok {
			from = uri
		}
	}

	var (
		uri modules.URI
		ok  bool
	)
	if from != nil {
		uri, ok = c.registry.LookupInContext(module, from)
	} else {
		uri, ok = c.registry.Lookup(module)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", modules.ErrModuleNotFound, module)
	}

	key := modules.CacheKey(uri)
	if c.loading[key] {
		return nil, &engine.LoadError{
			ModuleID: module,
			URI:      uri.String(),
			Err:      fmt.Errorf("%w: %q", ErrCyclicLoad, key),
		}
	}
	if rec, found := c.cache.Get(key); found {
		exports, isDict := rec.Exports.(starlarkLib.StringDict)
		if !isDict {
			return nil, fmt.Errorf("%w: module %q", ErrBadExports, key)
		}
		logger.Debug("module served from cache", "key", key)
		return exports, nil
	}

	reader, err := c.registry.Open(uri)
	if err != nil {
		return nil, &engine.LoadError{ModuleID: module, URI: uri.String(), Err: err}
	}
	defer func() { _ = reader.Close() }()
	source, err := io.ReadAll(reader)
	if err != nil {
		return nil, &engine.LoadError{ModuleID: module, URI: uri.String(), Err: err}
	}

	child := &starlarkLib.Thread{
		Name: uri.String(),
		Load: c.load,
		Print: func(thread *starlarkLib.Thread, msg string) {
			logger.Info(msg, "thread", thread.Name)
		},
	}
	child.SetLocal(threadLocalURI, uri)

	c.loading[key] = true
	exports, err := starlarkLib.ExecFileOptions(
		c.fileOptions(), child, uri.String(), source, c.predeclared)
	delete(c.loading, key)
	if err != nil {
		logger.Debug("module evaluation failed", "uri", uri.String(), "error", err)
		return nil, &engine.LoadError{ModuleID: module, URI: uri.String(), Err: err}
	}
	exports.Freeze()

	c.cache.Put(&modules.Record{Key: key, URI: uri, Exports: exports})
	logger.Debug("module loaded", "uri", uri.String(), "key", key)
	return exports, nil
}
