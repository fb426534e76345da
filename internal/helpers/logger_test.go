package helpers

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	t.Parallel()

	t.Run("nil handler gets a default", func(t *testing.T) {
		t.Parallel()
		handler, logger := SetupLogger(nil, "modules", "Registry")
		require.NotNil(t, handler)
		require.NotNil(t, logger)
	})

	t.Run("a provided handler is kept", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		provided := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

		handler, logger := SetupLogger(provided, "modules", "Registry")
		assert.Equal(t, provided, handler)

		logger.Debug("resolved", "id", "util")
		assert.Contains(t, buf.String(), "Registry")
		assert.Contains(t, buf.String(), "resolved")
	})

	t.Run("empty group name skips grouping", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		provided := slog.NewTextHandler(&buf, nil)

		_, logger := SetupLogger(provided, "modules", "")
		logger.Info("hello")
		assert.Contains(t, buf.String(), "hello")
	})
}
