// Package host carries the boundary between the scripting core and the
// embedding map editor: the registration table for host-bridged globals and
// type mixins, and the batch bracket suppressing change notifications while
// scripts mutate host data.
package host

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mapedit/scripting/engine"
	"github.com/mapedit/scripting/internal/helpers"
)

// Bridge is an explicit registration table of named global bindings and
// per-type mixins. It is populated by the host-integration layer before
// contexts are created and applied exactly once when a context initializes,
// instead of mutating shared prototypes at arbitrary times.
type Bridge struct {
	mu       sync.Mutex
	bindings map[string]any
	mixins   map[string]map[string]any

	notifier Notifier
	batches  int

	logHandler slog.Handler
	logger     *slog.Logger
}

// NewBridge creates an empty bridge. notifier may be nil when the host has
// no change-notification machinery to suppress (e.g. in tests).
func NewBridge(notifier Notifier, handler slog.Handler) *Bridge {
	handler, logger := helpers.SetupLogger(handler, "host", "Bridge")
	return &Bridge{
		bindings:   make(map[string]any),
		mixins:     make(map[string]map[string]any),
		notifier:   notifier,
		logHandler: handler,
		logger:     logger,
	}
}

// RegisterBinding publishes a named global to every context created after
// the call. Registering a name twice is an error: silently replacing a
// host-bridged object would leave already-created contexts inconsistent.
func (b *Bridge) RegisterBinding(name string, value any) error {
	if name == "" {
		return fmt.Errorf("binding name must not be empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.bindings[name]; exists {
		return fmt.Errorf("binding %q already registered", name)
	}
	b.bindings[name] = value
	b.logger.Debug("registered binding", "name", name)
	return nil
}

// RegisterMixin adds named members to a host type. Members accumulate
// across calls; re-registering a member name for the same type replaces it.
func (b *Bridge) RegisterMixin(typeName string, members map[string]any) error {
	if typeName == "" {
		return fmt.Errorf("mixin type name must not be empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	table, ok := b.mixins[typeName]
	if !ok {
		table = make(map[string]any, len(members))
		b.mixins[typeName] = table
	}
	for name, member := range members {
		table[name] = member
	}
	b.logger.Debug("registered mixin", "type", typeName, "members", len(members))
	return nil
}

// Bindings returns a copy of the registered global bindings, with each
// mixin table exposed under "__mixins__/<type>" so engine contexts can
// install the members onto the bridged type once at initialization.
func (b *Bridge) Bindings() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]any, len(b.bindings)+len(b.mixins))
	for name, value := range b.bindings {
		out[name] = value
	}
	for typeName, table := range b.mixins {
		members := make(map[string]any, len(table))
		for name, member := range table {
			members[name] = member
		}
		out["__mixins__/"+typeName] = members
	}
	return out
}

// MixinTypes returns the registered mixin type names in sorted order.
func (b *Bridge) MixinTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, 0, len(b.mixins))
	for typeName := range b.mixins {
		types = append(types, typeName)
	}
	sort.Strings(types)
	return types
}

// Apply installs every registered binding into a context. The context
// manager calls it once right after creating a context; contexts keep the
// bindings across resets themselves.
func (b *Bridge) Apply(ctx engine.Context) error {
	for name, value := range b.Bindings() {
		if err := ctx.Bind(name, value); err != nil {
			return fmt.Errorf("failed to apply binding %q: %w", name, err)
		}
	}
	return nil
}
