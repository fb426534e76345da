package helpers

import (
	"log/slog"
	"os"
)

// SetupLogger creates a configured logger for an engine or resolver component.
// If the provided handler is nil, a default text handler grouped under the
// component name is created.
//
// Parameters:
//   - handler: the slog.Handler to use, or nil for defaults
//   - component: the name of the component (e.g. "goja", "modules")
//   - groupName: optional additional group within the component
//
// Returns the configured handler and a logger created from it.
func SetupLogger(handler slog.Handler, component string, groupName string) (slog.Handler, *slog.Logger) {
	if handler == nil {
		defaultHandler := slog.NewTextHandler(os.Stderr, nil)
		handler = defaultHandler.WithGroup(component)
	}

	var logger *slog.Logger
	if groupName != "" {
		logger = slog.New(handler.WithGroup(groupName))
	} else {
		logger = slog.New(handler)
	}

	return handler, logger
}
