package extism

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapedit/scripting/engine"
)

func newTestContext(t *testing.T, opts ...EngineOption) engine.Context {
	t.Helper()
	ctx, err := New(opts...).NewContext(engine.ContextConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func TestEngineDescriptor(t *testing.T) {
	t.Parallel()
	d := New().Descriptor()
	assert.Equal(t, "plugged/wasm", d.String())
	assert.Contains(t, d.ContentMimeTypes, "application/wasm")
}

func TestWasmBytes(t *testing.T) {
	t.Parallel()

	t.Run("decodes base64 text", func(t *testing.T) {
		t.Parallel()
		raw := []byte{0x00, 0x61, 0x73, 0x6d}
		decoded, err := wasmBytes(base64.StdEncoding.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, decoded)
	})

	t.Run("passes raw binary through", func(t *testing.T) {
		t.Parallel()
		raw := "\x00asm\x01\x00\x00\x00"
		decoded, err := wasmBytes(raw)
		require.NoError(t, err)
		assert.Equal(t, []byte(raw), decoded)
	})

	t.Run("rejects empty content", func(t *testing.T) {
		t.Parallel()
		_, err := wasmBytes("")
		require.ErrorIs(t, err, ErrContentNil)
	})
}

func TestContextEvalErrors(t *testing.T) {
	t.Parallel()
	ctx := newTestContext(t)

	t.Run("empty source", func(t *testing.T) {
		_, err := ctx.Eval(context.Background(), "test", "")
		require.ErrorIs(t, err, ErrContentNil)
	})

	t.Run("invalid wasm fails compilation", func(t *testing.T) {
		_, err := ctx.Eval(context.Background(), "test", "definitely not wasm")
		require.Error(t, err)
		var evalErr *engine.EvalError
		require.ErrorAs(t, err, &evalErr)
	})
}

func TestContextLifecycle(t *testing.T) {
	t.Parallel()
	ctx := newTestContext(t)

	require.NoError(t, ctx.Bind("zoom", 14))
	require.NoError(t, ctx.Reset())

	require.NoError(t, ctx.Close())
	_, err := ctx.Eval(context.Background(), "test", "x")
	require.ErrorIs(t, err, engine.ErrContextDisposed)
	require.ErrorIs(t, ctx.Bind("x", 1), engine.ErrContextDisposed)
	require.ErrorIs(t, ctx.Reset(), engine.ErrContextDisposed)
}
