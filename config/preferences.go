// Package config reads the plugin's persisted preferences: the ordered
// module repository list and the selected script engine. It wraps viper so
// the host's preference file can be watched for changes.
package config

import (
	"log/slog"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/mapedit/scripting/engine"
	"github.com/mapedit/scripting/internal/helpers"
	"github.com/mapedit/scripting/modules"
)

// Preference keys.
const (
	// KeyModuleRepositories holds the ordered list of repository URI
	// strings: a directory path, a "file:" URI, or the
	// "jar:file:...!/<path>" form.
	KeyModuleRepositories = "scripting.module-repositories"

	// KeyEngine holds the persisted engine descriptor "<type>/<id>".
	KeyEngine = "scripting.engine"
)

// DefaultEngineValue selects the embedded JavaScript engine.
const DefaultEngineValue = "embedded/goja"

// Preferences is a read view over the host's persisted scripting
// preferences.
type Preferences struct {
	v *viper.Viper

	logHandler slog.Handler
	logger     *slog.Logger
}

// New wraps an already-loaded viper instance.
func New(v *viper.Viper, handler slog.Handler) *Preferences {
	handler, logger := helpers.SetupLogger(handler, "config", "Preferences")
	return &Preferences{
		v:          v,
		logHandler: handler,
		logger:     logger,
	}
}

// Load reads a preference file from disk.
func Load(path string, handler slog.Handler) (*Preferences, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return New(v, handler), nil
}

// RepositoryURIs returns the raw configured repository URI strings in
// order.
func (p *Preferences) RepositoryURIs() []string {
	values := p.v.GetStringSlice(KeyModuleRepositories)
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Repositories builds the persistent repository list from the configured
// URI strings. An entry that fails to parse or open is logged and skipped;
// one broken entry never invalidates the whole list.
func (p *Preferences) Repositories(opts ...modules.Option) []modules.Repository {
	uris := p.RepositoryURIs()
	repos := make([]modules.Repository, 0, len(uris))
	for _, uri := range uris {
		repo, err := buildRepository(uri, opts)
		if err != nil {
			p.logger.Warn("skipping configured module repository",
				"uri", uri, "error", err)
			continue
		}
		repos = append(repos, repo)
	}
	return repos
}

func buildRepository(uri string, opts []modules.Option) (modules.Repository, error) {
	if strings.HasPrefix(uri, "jar:") {
		return modules.NewZipRepositoryFromURI(uri, opts...)
	}
	return modules.NewDirRepositoryFromURI(uri, opts...)
}

// EngineDescriptor returns the persisted engine selection, falling back to
// the embedded JavaScript engine when the key is missing or malformed.
func (p *Preferences) EngineDescriptor() engine.Descriptor {
	value := strings.TrimSpace(p.v.GetString(KeyEngine))
	if value == "" {
		value = DefaultEngineValue
	}
	descriptor, err := engine.ParseDescriptor(value)
	if err != nil {
		p.logger.Warn("invalid persisted engine descriptor, using default",
			"value", value, "error", err)
		descriptor, _ = engine.ParseDescriptor(DefaultEngineValue)
	}
	return descriptor
}

// Watch subscribes to preference-file changes. onChange runs on viper's
// watch goroutine whenever the file is rewritten; callers usually rebuild
// the persistent repository partition there.
func (p *Preferences) Watch(onChange func(*Preferences)) {
	p.v.OnConfigChange(func(e fsnotify.Event) {
		p.logger.Debug("preferences changed", "file", e.Name, "op", e.Op.String())
		onChange(p)
	})
	p.v.WatchConfig()
}
