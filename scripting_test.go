package scripting

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapedit/scripting/config"
	"github.com/mapedit/scripting/engine"
	"github.com/mapedit/scripting/host"
)

func mustDescriptor(t *testing.T, value string) engine.Descriptor {
	t.Helper()
	d, err := engine.ParseDescriptor(value)
	require.NoError(t, err)
	return d
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := New(opts...)
	t.Cleanup(func() { _ = m.Dispose() })
	return m
}

func TestManagerEngines(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	var names []string
	for _, d := range m.Engines() {
		names = append(names, d.String())
	}
	assert.Equal(t, []string{
		"embedded/goja",
		"plugged/wasm",
		"polyglot/risor",
		"polyglot/starlark",
	}, names)
}

func TestManagerCreateOrGet(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	goja := mustDescriptor(t, "embedded/goja")

	first, err := m.CreateOrGet(goja)
	require.NoError(t, err)
	second, err := m.CreateOrGet(goja)
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = m.CreateOrGet(mustDescriptor(t, "embedded/nashorn"))
	require.ErrorIs(t, err, engine.ErrUnknownEngine)
}

func TestManagerEval(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	goja := mustDescriptor(t, "embedded/goja")

	t.Run("evaluates on the selected engine", func(t *testing.T) {
		value, err := m.Eval(context.Background(), goja, "1 + 2")
		require.NoError(t, err)
		assert.Equal(t, int64(3), value)

		value, err = m.Eval(context.Background(), mustDescriptor(t, "polyglot/starlark"),
			"result = 2 * 21")
		require.NoError(t, err)
		assert.Equal(t, int64(42), value)
	})

	t.Run("fails fast on an unknown engine", func(t *testing.T) {
		_, err := m.Eval(context.Background(), mustDescriptor(t, "polyglot/lua"), "1")
		require.ErrorIs(t, err, engine.ErrUnknownEngine)
	})

	t.Run("state persists until reset", func(t *testing.T) {
		_, err := m.Eval(context.Background(), goja, "var kept = 7;")
		require.NoError(t, err)
		value, err := m.Eval(context.Background(), goja, "kept")
		require.NoError(t, err)
		assert.Equal(t, int64(7), value)

		require.NoError(t, m.Reset(context.Background(), goja))
		value, err = m.Eval(context.Background(), goja, "typeof kept")
		require.NoError(t, err)
		assert.Equal(t, "undefined", value)
	})

	t.Run("a cancelled caller abandons the wait", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.Eval(cancelled, goja, "1")
		require.ErrorIs(t, err, context.Canceled)

		// The manager stays usable.
		value, err := m.Eval(context.Background(), goja, "'still alive'")
		require.NoError(t, err)
		assert.Equal(t, "still alive", value)
	})
}

func TestManagerEvalSerializes(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	goja := mustDescriptor(t, "embedded/goja")

	_, err := m.Eval(context.Background(), goja, "var hits = 0;")
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Eval(context.Background(), goja, "hits = hits + 1;")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	value, err := m.Eval(context.Background(), goja, "hits")
	require.NoError(t, err)
	assert.Equal(t, int64(callers), value)
}

func TestManagerEvalFile(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	goja := mustDescriptor(t, "embedded/goja")

	path := filepath.Join(t.TempDir(), "script.js")
	require.NoError(t, os.WriteFile(path, []byte("6 * 7"), 0o644))

	value, err := m.EvalFile(context.Background(), goja, path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)

	_, err = m.EvalFile(context.Background(), goja, filepath.Join(t.TempDir(), "nope.js"))
	require.Error(t, err)
}

func TestManagerReset(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	t.Run("without a live context it is a no-op", func(t *testing.T) {
		require.NoError(t, m.Reset(context.Background(), mustDescriptor(t, "polyglot/risor")))
	})

	t.Run("unknown engines fail fast", func(t *testing.T) {
		err := m.Reset(context.Background(), mustDescriptor(t, "embedded/nashorn"))
		require.ErrorIs(t, err, engine.ErrUnknownEngine)
	})
}

func TestManagerDispose(t *testing.T) {
	t.Parallel()
	m := New()
	goja := mustDescriptor(t, "embedded/goja")

	_, err := m.Eval(context.Background(), goja, "1")
	require.NoError(t, err)

	require.NoError(t, m.Dispose())
	require.NoError(t, m.Dispose())

	_, err = m.Eval(context.Background(), goja, "1")
	require.ErrorIs(t, err, ErrManagerDisposed)
	_, err = m.CreateOrGet(goja)
	require.ErrorIs(t, err, ErrManagerDisposed)
	require.ErrorIs(t, m.Reset(context.Background(), goja), ErrManagerDisposed)
}

func TestManagerWithBridge(t *testing.T) {
	t.Parallel()

	bridge := host.NewBridge(nil, nil)
	require.NoError(t, bridge.RegisterBinding("editorName", "mapedit"))

	m := newTestManager(t, WithBridge(bridge))
	desc := mustDescriptor(t, "embedded/goja")
	value, err := m.Eval(context.Background(), desc, "editorName")
	require.NoError(t, err)
	assert.Equal(t, "mapedit", value)

	t.Run("bindings survive a reset", func(t *testing.T) {
		require.NoError(t, m.Reset(context.Background(), desc))
		value, err := m.Eval(context.Background(), desc, "editorName")
		require.NoError(t, err)
		assert.Equal(t, "mapedit", value)
	})

	t.Run("a binding an engine can't represent fails context creation", func(t *testing.T) {
		bad := host.NewBridge(nil, nil)
		require.NoError(t, bad.RegisterBinding("callback", func() {}))
		bm := newTestManager(t, WithBridge(bad))
		_, err := bm.Eval(context.Background(),
			mustDescriptor(t, "polyglot/starlark"), "result = 1")
		require.Error(t, err)
	})
}

func TestManagerWithPreferences(t *testing.T) {
	t.Parallel()

	repoDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(repoDir, "util.js"),
		[]byte("exports.add = function (a, b) { return a + b; };"), 0o644))

	v := viper.New()
	v.Set(config.KeyModuleRepositories, []string{repoDir})
	prefs := config.New(v, nil)

	m := newTestManager(t, WithPreferences(prefs))
	require.Len(t, m.Registry().Snapshot(), 1)

	value, err := m.Eval(context.Background(), mustDescriptor(t, "embedded/goja"),
		"require('util').add(40, 2)")
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)
}
