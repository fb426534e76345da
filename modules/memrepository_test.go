package modules

import (
	"io"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemRepository(t *testing.T, opts ...Option) *MemRepository {
	t.Helper()
	fsys := fstest.MapFS{
		"a.js":         &fstest.MapFile{Data: []byte("exports.name = 'a';")},
		"sub/b.js":     &fstest.MapFile{Data: []byte("exports.name = 'b';")},
		"sub/c.js":     &fstest.MapFile{Data: []byte("exports.name = 'c';")},
		"lib/index.js": &fstest.MapFile{Data: []byte("exports.name = 'lib';")},
		"foo.mjs":      &fstest.MapFile{Data: []byte("export const name = 'foo';")},
	}
	repo, err := NewMemRepository("builtin", fsys, opts...)
	require.NoError(t, err)
	return repo
}

func TestNewMemRepository(t *testing.T) {
	t.Parallel()

	t.Run("rejects a nil filesystem", func(t *testing.T) {
		t.Parallel()
		_, err := NewMemRepository("builtin", nil)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("rejects a bad bundle name", func(t *testing.T) {
		t.Parallel()
		_, err := NewMemRepository("bad!name", fstest.MapFS{})
		require.ErrorIs(t, err, ErrInvalidURI)
	})
}

func TestMemRepositoryResolve(t *testing.T) {
	t.Parallel()
	repo := newTestMemRepository(t)

	tests := []struct {
		name  string
		id    string
		entry string
	}{
		{"bare specifier", "a", "/a.js"},
		{"specifier with the secondary suffix", "foo.mjs", "/foo.mjs"},
		{"nested specifier", "sub/b", "/sub/b.js"},
		{"directory with index file", "lib", "/lib/index.js"},
		{"missing module", "missing", ""},
		{"escape above the root", "../outside", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, ok := repo.Resolve(tt.id)
			if tt.entry == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.entry, uri.Entry())
			assert.Equal(t, "builtin", uri.Container())
		})
	}
}

func TestMemRepositoryResolveInContext(t *testing.T) {
	t.Parallel()
	repo := newTestMemRepository(t)

	contextURI, ok := repo.Resolve("sub/b")
	require.True(t, ok)

	t.Run("relative sibling", func(t *testing.T) {
		uri, ok := repo.ResolveInContext("./c", contextURI)
		require.True(t, ok)
		assert.Equal(t, "/sub/c.js", uri.Entry())
	})

	t.Run("relative parent", func(t *testing.T) {
		uri, ok := repo.ResolveInContext("../a", contextURI)
		require.True(t, ok)
		assert.Equal(t, "/a.js", uri.Entry())
	})

	t.Run("context from another bundle is a miss", func(t *testing.T) {
		other, err := NewMemURI("other", "/sub/b.js")
		require.NoError(t, err)
		_, ok := repo.ResolveInContext("./c", other)
		assert.False(t, ok)
	})
}

func TestMemRepositoryOpen(t *testing.T) {
	t.Parallel()
	repo := newTestMemRepository(t)

	uri, ok := repo.Resolve("lib")
	require.True(t, ok)
	rc, err := repo.Open(uri)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "exports.name = 'lib';", string(content))

	t.Run("rejects uris from another bundle", func(t *testing.T) {
		other, err := NewMemURI("other", "/a.js")
		require.NoError(t, err)
		_, err = repo.Open(other)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestMemURIResolutionContext(t *testing.T) {
	t.Parallel()
	repo := newTestMemRepository(t)

	t.Run("file entry resolves to its directory", func(t *testing.T) {
		uri, ok := repo.Resolve("sub/b")
		require.True(t, ok)
		resCtx, err := uri.ResolutionContext()
		require.NoError(t, err)
		assert.Equal(t, "/sub", resCtx.Entry())
	})

	t.Run("repository root resolves to itself", func(t *testing.T) {
		resCtx, err := repo.BaseURI().ResolutionContext()
		require.NoError(t, err)
		assert.Equal(t, "/", resCtx.Entry())
	})
}
