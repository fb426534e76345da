// Package scripting is the entry point for embedding the script runtime in
// the map editor. A Manager owns the available engines, one live context per
// engine, the module repository registry and the dispatch goroutine that
// stands in for the host's UI thread.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/mapedit/scripting/config"
	"github.com/mapedit/scripting/engine"
	"github.com/mapedit/scripting/engines/extism"
	"github.com/mapedit/scripting/engines/goja"
	"github.com/mapedit/scripting/engines/risor"
	"github.com/mapedit/scripting/engines/starlark"
	"github.com/mapedit/scripting/host"
	"github.com/mapedit/scripting/internal/helpers"
	"github.com/mapedit/scripting/modules"
)

// ErrManagerDisposed is returned for any operation on a disposed Manager.
// Disposal is terminal; a new Manager must be created to continue.
var ErrManagerDisposed = errors.New("manager has been disposed")

// Option configures a Manager during construction.
type Option func(*Manager)

// WithLogHandler sets the slog handler for the manager and everything it
// creates.
func WithLogHandler(handler slog.Handler) Option {
	return func(m *Manager) {
		m.logHandler = handler
	}
}

// WithEngines replaces the default engine set.
func WithEngines(engines ...engine.Engine) Option {
	return func(m *Manager) {
		m.engines = make(map[string]engine.Engine, len(engines))
		for _, e := range engines {
			m.engines[e.Descriptor().String()] = e
		}
	}
}

// WithBridge installs the host bridge whose bindings are applied to every
// context at creation and after every reset.
func WithBridge(bridge *host.Bridge) Option {
	return func(m *Manager) {
		m.bridge = bridge
	}
}

// WithPreferences wires the persisted preferences into the manager: the
// configured repositories become the registry's persistent partition and a
// preference-file watch keeps them current.
func WithPreferences(prefs *config.Preferences) Option {
	return func(m *Manager) {
		m.prefs = prefs
	}
}

// Manager is the lifecycle owner for script execution contexts. It keeps at
// most one live context per engine, creates them lazily, and serializes all
// evaluation onto a single dispatch goroutine.
type Manager struct {
	logHandler slog.Handler
	logger     *slog.Logger

	mu       sync.Mutex
	engines  map[string]engine.Engine
	contexts map[string]engine.Context
	disposed bool

	registry *modules.Registry
	bridge   *host.Bridge
	prefs    *config.Preferences
	loop     *dispatcher
}

// New creates a Manager with the default engine set: the embedded goja
// JavaScript engine, the Starlark and Risor polyglot engines and the Extism
// WASM plugin engine.
func New(opts ...Option) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	handler, logger := helpers.SetupLogger(m.logHandler, "scripting", "Manager")
	m.logHandler = handler
	m.logger = logger

	if m.engines == nil {
		defaults := []engine.Engine{
			goja.New(),
			starlark.New(),
			risor.New(),
			extism.New(),
		}
		m.engines = make(map[string]engine.Engine, len(defaults))
		for _, e := range defaults {
			m.engines[e.Descriptor().String()] = e
		}
	}
	m.contexts = make(map[string]engine.Context, len(m.engines))
	m.registry = modules.NewRegistry(handler)
	m.loop = newDispatcher()

	if m.prefs != nil {
		m.registry.SetPersistent(m.prefs.Repositories(modules.WithLogHandler(handler)))
		m.prefs.Watch(func(p *config.Preferences) {
			m.registry.SetPersistent(p.Repositories(modules.WithLogHandler(handler)))
		})
	}
	return m
}

// Registry returns the module repository registry shared by every context.
func (m *Manager) Registry() *modules.Registry {
	return m.registry
}

// AddRepository registers an additional module repository at runtime, e.g.
// when the host loads another script bundle.
func (m *Manager) AddRepository(repo modules.Repository) {
	m.registry.AddRepository(repo)
}

// Engines returns the descriptors of the available engines, sorted by their
// persisted string form.
func (m *Manager) Engines() []engine.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	descriptors := make([]engine.Descriptor, 0, len(m.engines))
	for _, e := range m.engines {
		descriptors = append(descriptors, e.Descriptor())
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].String() < descriptors[j].String()
	})
	return descriptors
}

// lookupEngine validates a descriptor against the available engines.
func (m *Manager) lookupEngine(descriptor engine.Descriptor) (engine.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return nil, ErrManagerDisposed
	}
	e, ok := m.engines[descriptor.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownEngine, descriptor.String())
	}
	return e, nil
}

// CreateOrGet returns the live context for an engine, creating it on first
// use. Repeated calls with the same descriptor return the same context; the
// host bridge's bindings are applied when the context is created.
func (m *Manager) CreateOrGet(descriptor engine.Descriptor) (engine.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return nil, ErrManagerDisposed
	}
	key := descriptor.String()
	if ctx, ok := m.contexts[key]; ok {
		return ctx, nil
	}
	e, ok := m.engines[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownEngine, key)
	}
	ctx, err := e.NewContext(engine.ContextConfig{
		LogHandler: m.logHandler,
		Registry:   m.registry,
	})
	if err != nil {
		return nil, err
	}
	if m.bridge != nil {
		if err := m.bridge.Apply(ctx); err != nil {
			_ = ctx.Close()
			return nil, err
		}
	}
	m.contexts[key] = ctx
	m.logger.Debug("created context", "engine", key)
	return ctx, nil
}

// Reset discards the script-visible state of an engine's context. Resetting
// an engine without a live context is a no-op. Callers must quiesce: a reset
// issued while an evaluation is in flight waits behind it on the dispatch
// goroutine.
func (m *Manager) Reset(ctx context.Context, descriptor engine.Descriptor) error {
	if _, err := m.lookupEngine(descriptor); err != nil {
		return err
	}
	var resetErr error
	err := m.loop.run(ctx, func() {
		m.mu.Lock()
		ectx, ok := m.contexts[descriptor.String()]
		m.mu.Unlock()
		if !ok {
			return
		}
		resetErr = ectx.Reset()
	})
	if err != nil {
		return err
	}
	return resetErr
}

// Eval executes an inline script source on the engine identified by
// descriptor, creating the context on first use. The call blocks until the
// dispatch goroutine has run the script. Cancelling ctx abandons the wait
// and discards the result; the in-flight run itself is not interrupted.
func (m *Manager) Eval(ctx context.Context, descriptor engine.Descriptor, source string) (any, error) {
	return m.eval(ctx, descriptor, "<inline>", source)
}

// EvalFile reads a script file and executes it like Eval, with the file path
// as the source name in errors and stack traces.
func (m *Manager) EvalFile(ctx context.Context, descriptor engine.Descriptor, path string) (any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	return m.eval(ctx, descriptor, path, string(content))
}

func (m *Manager) eval(ctx context.Context, descriptor engine.Descriptor, name, source string) (any, error) {
	if _, err := m.lookupEngine(descriptor); err != nil {
		return nil, err
	}
	var (
		value   any
		evalErr error
	)
	err := m.loop.run(ctx, func() {
		ectx, err := m.CreateOrGet(descriptor)
		if err != nil {
			evalErr = err
			return
		}
		// The caller's ctx only governs the wait; an abandoned run still
		// completes so the context is never left mid-mutation.
		value, evalErr = ectx.Eval(context.WithoutCancel(ctx), name, source)
	})
	if err != nil {
		return nil, err
	}
	return value, evalErr
}

// Dispose tears the manager down: every live context is closed and the
// dispatch goroutine stops. Disposal is terminal and idempotent.
func (m *Manager) Dispose() error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil
	}
	m.disposed = true
	contexts := m.contexts
	m.contexts = map[string]engine.Context{}
	m.mu.Unlock()

	var errs []error
	for key, ctx := range contexts {
		if err := ctx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context %q: %w", key, err))
		}
	}
	m.loop.stop()
	m.logger.Debug("manager disposed", "contexts", len(contexts))
	return errors.Join(errs...)
}
