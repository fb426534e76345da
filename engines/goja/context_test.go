package goja

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapedit/scripting/engine"
	"github.com/mapedit/scripting/modules"
)

func newTestContext(t *testing.T, fsys fstest.MapFS, bindings map[string]any) engine.Context {
	t.Helper()
	registry := modules.NewRegistry(nil)
	if fsys != nil {
		repo, err := modules.NewMemRepository("builtin", fsys)
		require.NoError(t, err)
		registry.AddRepository(repo)
	}
	ctx, err := New().NewContext(engine.ContextConfig{
		Registry: registry,
		Bindings: bindings,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func src(code string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(code)}
}

func TestContextEval(t *testing.T) {
	t.Parallel()
	ctx := newTestContext(t, nil, nil)

	t.Run("returns the expression value", func(t *testing.T) {
		value, err := ctx.Eval(context.Background(), "test", "1 + 2")
		require.NoError(t, err)
		assert.Equal(t, int64(3), value)
	})

	t.Run("undefined and null map to nil", func(t *testing.T) {
		value, err := ctx.Eval(context.Background(), "test", "undefined")
		require.NoError(t, err)
		assert.Nil(t, value)

		value, err = ctx.Eval(context.Background(), "test", "null")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("state accumulates across evaluations", func(t *testing.T) {
		_, err := ctx.Eval(context.Background(), "test", "var counter = 40;")
		require.NoError(t, err)
		value, err := ctx.Eval(context.Background(), "test", "counter + 2")
		require.NoError(t, err)
		assert.Equal(t, int64(42), value)
	})

	t.Run("script errors wrap as EvalError", func(t *testing.T) {
		_, err := ctx.Eval(context.Background(), "test", "throw new Error('boom')")
		require.Error(t, err)
		var evalErr *engine.EvalError
		require.ErrorAs(t, err, &evalErr)
		assert.Equal(t, "test", evalErr.Source)
	})
}

func TestContextEvalInterrupt(t *testing.T) {
	t.Parallel()
	ctx := newTestContext(t, nil, nil)

	timeout, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := ctx.Eval(timeout, "spin", "while (true) {}")
	require.Error(t, err)

	// The runtime is usable again after an interrupt.
	value, err := ctx.Eval(context.Background(), "test", "'ok'")
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
}

func TestContextRequire(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"util.js":      src("exports.add = function (a, b) { return a + b; };"),
		"lib/index.js": src("var util = require('../util');\nexports.twice = function (x) { return util.add(x, x); };"),
		"state.js":     src("exports.count = 0;"),
		"answer.js":    src("module.exports = function () { return 42; };"),
		"ping.js":      src("exports.name = 'ping';\nvar pong = require('./pong');\nexports.other = pong.name;"),
		"pong.js":      src("var ping = require('./ping');\nexports.name = 'pong';\nexports.other = ping.name;"),
	}
	ctx := newTestContext(t, fsys, nil)

	t.Run("bare require", func(t *testing.T) {
		value, err := ctx.Eval(context.Background(), "test", "require('util').add(2, 3)")
		require.NoError(t, err)
		assert.Equal(t, int64(5), value)
	})

	t.Run("directory index and nested relative require", func(t *testing.T) {
		value, err := ctx.Eval(context.Background(), "test", "require('lib').twice(21)")
		require.NoError(t, err)
		assert.Equal(t, int64(42), value)
	})

	t.Run("repeated requires share one instance", func(t *testing.T) {
		value, err := ctx.Eval(context.Background(), "test",
			"var s1 = require('state'); s1.count = 41;\nvar s2 = require('state'); s2.count + 1")
		require.NoError(t, err)
		assert.Equal(t, int64(42), value)
	})

	t.Run("module.exports reassignment", func(t *testing.T) {
		value, err := ctx.Eval(context.Background(), "test", "require('answer')()")
		require.NoError(t, err)
		assert.Equal(t, int64(42), value)
	})

	t.Run("circular requires observe partial exports", func(t *testing.T) {
		value, err := ctx.Eval(context.Background(), "test", "require('ping').other")
		require.NoError(t, err)
		assert.Equal(t, "pong", value)
	})

	t.Run("missing modules fail", func(t *testing.T) {
		_, err := ctx.Eval(context.Background(), "test", "require('missing')")
		require.Error(t, err)
		assert.ErrorContains(t, err, "missing")
	})

	t.Run("specifiers can't escape the repository", func(t *testing.T) {
		_, err := ctx.Eval(context.Background(), "test", "require('../../etc/passwd')")
		require.Error(t, err)
	})
}

func TestContextRequireFailuresAreNotCached(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"flaky.js": src("throw new Error('broken');"),
	}
	ctx := newTestContext(t, fsys, nil)

	_, err := ctx.Eval(context.Background(), "test", "require('flaky')")
	require.Error(t, err)

	// Fix the module source; the retry must pick up the fix without a reset.
	fsys["flaky.js"] = src("exports.value = 7;")
	value, err := ctx.Eval(context.Background(), "test", "require('flaky').value")
	require.NoError(t, err)
	assert.Equal(t, int64(7), value)
}

func TestContextReset(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"state.js": src("exports.count = 0;"),
	}
	ctx := newTestContext(t, fsys, map[string]any{"hostName": "mapedit"})

	_, err := ctx.Eval(context.Background(), "test",
		"var local = 1; require('state').count = 9;")
	require.NoError(t, err)

	require.NoError(t, ctx.Reset())

	t.Run("script state is gone", func(t *testing.T) {
		value, err := ctx.Eval(context.Background(), "test", "typeof local")
		require.NoError(t, err)
		assert.Equal(t, "undefined", value)
	})

	t.Run("module cache is cleared", func(t *testing.T) {
		value, err := ctx.Eval(context.Background(), "test", "require('state').count")
		require.NoError(t, err)
		assert.Equal(t, int64(0), value)
	})

	t.Run("host bindings survive", func(t *testing.T) {
		value, err := ctx.Eval(context.Background(), "test", "hostName")
		require.NoError(t, err)
		assert.Equal(t, "mapedit", value)
	})
}

func TestContextBind(t *testing.T) {
	t.Parallel()
	ctx := newTestContext(t, nil, nil)

	require.NoError(t, ctx.Bind("answer", 42))
	value, err := ctx.Eval(context.Background(), "test", "answer")
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)
}

func TestContextClose(t *testing.T) {
	t.Parallel()
	ctx := newTestContext(t, nil, nil)

	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Close())

	_, err := ctx.Eval(context.Background(), "test", "1")
	require.ErrorIs(t, err, engine.ErrContextDisposed)
	require.ErrorIs(t, ctx.Reset(), engine.ErrContextDisposed)
	require.ErrorIs(t, ctx.Bind("x", 1), engine.ErrContextDisposed)
}

func TestContextRequireWithoutRegistry(t *testing.T) {
	t.Parallel()
	ctx, err := New().NewContext(engine.ContextConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })

	_, err = ctx.Eval(context.Background(), "test", "require('util')")
	require.Error(t, err)
}
