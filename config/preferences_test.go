package config

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapedit/scripting/engine"
)

func writeJar(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	entry, err := w.Create("a.js")
	require.NoError(t, err)
	_, err = entry.Write([]byte("exports.x = 1;"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("reads a preference file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "preferences.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"scripting:\n  engine: polyglot/starlark\n"), 0o644))

		prefs, err := Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "polyglot/starlark", prefs.EngineDescriptor().String())
	})

	t.Run("fails on a missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
		require.Error(t, err)
	})
}

func TestRepositoryURIs(t *testing.T) {
	t.Parallel()
	v := viper.New()
	v.Set(KeyModuleRepositories, []string{"  /repo/a  ", "", "/repo/b"})

	prefs := New(v, nil)
	assert.Equal(t, []string{"/repo/a", "/repo/b"}, prefs.RepositoryURIs())
}

func TestRepositories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.js"), []byte(""), 0o644))
	jar := filepath.Join(t.TempDir(), "modules.jar")
	writeJar(t, jar)

	v := viper.New()
	v.Set(KeyModuleRepositories, []string{
		dir,
		fmt.Sprintf("jar:file://%s!/", filepath.ToSlash(jar)),
		filepath.Join(dir, "does-not-exist"),
	})

	prefs := New(v, nil)
	repos := prefs.Repositories()

	// The broken entry is skipped, the valid ones keep their order.
	require.Len(t, repos, 2)
	assert.Contains(t, repos[0].BaseURI().String(), "file://")
	assert.Contains(t, repos[1].BaseURI().String(), "jar:file://")
}

func TestEngineDescriptor(t *testing.T) {
	t.Parallel()

	t.Run("returns the persisted selection", func(t *testing.T) {
		t.Parallel()
		v := viper.New()
		v.Set(KeyEngine, "plugged/wasm")
		d := New(v, nil).EngineDescriptor()
		assert.Equal(t, engine.Plugged, d.Type)
		assert.Equal(t, "wasm", d.ID)
	})

	t.Run("defaults when the key is missing", func(t *testing.T) {
		t.Parallel()
		d := New(viper.New(), nil).EngineDescriptor()
		assert.Equal(t, DefaultEngineValue, d.String())
	})

	t.Run("defaults on a malformed value", func(t *testing.T) {
		t.Parallel()
		v := viper.New()
		v.Set(KeyEngine, "native/v8")
		d := New(v, nil).EngineDescriptor()
		assert.Equal(t, DefaultEngineValue, d.String())
	})
}

func TestWatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "preferences.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"scripting:\n  engine: embedded/goja\n"), 0o644))

	prefs, err := Load(path, nil)
	require.NoError(t, err)

	changed := make(chan string, 1)
	prefs.Watch(func(p *Preferences) {
		select {
		case changed <- p.EngineDescriptor().String():
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte(
		"scripting:\n  engine: polyglot/risor\n"), 0o644))

	select {
	case descriptor := <-changed:
		assert.Equal(t, "polyglot/risor", descriptor)
	case <-time.After(5 * time.Second):
		t.Fatal("preference change was not observed")
	}
}
