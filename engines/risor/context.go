package risor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	risorLib "github.com/risor-io/risor"
	risorErrors "github.com/risor-io/risor/errz"
	risorParser "github.com/risor-io/risor/parser"

	"github.com/mapedit/scripting/engine"
	"github.com/mapedit/scripting/internal/helpers"
)

// Context is a live Risor execution environment. Risor evaluations are
// self-contained; the context contributes host globals and error wrapping.
type Context struct {
	descriptor engine.Descriptor
	bindings   map[string]any
	closed     bool

	logHandler slog.Handler
	logger     *slog.Logger
}

func newContext(descriptor engine.Descriptor, cfg engine.ContextConfig) (*Context, error) {
	handler, logger := helpers.SetupLogger(cfg.LogHandler, "risor", "Context")

	bindings := make(map[string]any, len(cfg.Bindings))
	for name, value := range cfg.Bindings {
		bindings[name] = value
	}
	return &Context{
		descriptor: descriptor,
		bindings:   bindings,
		logHandler: handler,
		logger:     logger,
	}, nil
}

// Descriptor implements engine.Context.
func (c *Context) Descriptor() engine.Descriptor {
	return c.descriptor
}

// Bind implements engine.Context.
func (c *Context) Bind(name string, value any) error {
	if c.closed {
		return engine.ErrContextDisposed
	}
	c.bindings[name] = value
	return nil
}

// validate parses the source up front so syntax errors surface with Risor's
// friendly messages before any evaluation side effects.
func (c *Context) validate(ctx context.Context, source string) error {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return ErrNoInstructions
	}
	if _, err := risorParser.Parse(ctx, source); err != nil {
		errMsg := err.Error()
		var friendly risorErrors.FriendlyError
		if errors.As(err, &friendly) {
			errMsg = friendly.FriendlyErrorMessage()
		}
		return fmt.Errorf("%w: %s", ErrCompileFailed, errMsg)
	}
	return nil
}

// Eval implements engine.Context.
func (c *Context) Eval(ctx context.Context, name, source string) (any, error) {
	if c.closed {
		return nil, engine.ErrContextDisposed
	}
	logger := c.logger.WithGroup("Eval").With("source", name)

	if err := c.validate(ctx, source); err != nil {
		logger.Debug("validation failed", "error", err)
		return nil, &engine.EvalError{
			Engine: c.descriptor.String(),
			Source: name,
			Err:    err,
		}
	}

	result, err := risorLib.Eval(ctx, source, risorLib.WithGlobals(c.bindings))
	if err != nil {
		logger.Debug("evaluation failed", "error", err)
		return nil, &engine.EvalError{
			Engine: c.descriptor.String(),
			Source: name,
			Err:    err,
		}
	}
	if result == nil {
		return nil, nil
	}
	return result.Interface(), nil
}

// Reset implements engine.Context. Risor evaluations don't accumulate
// script state between calls, so a reset only has to survive for the
// lifecycle contract.
func (c *Context) Reset() error {
	if c.closed {
		return engine.ErrContextDisposed
	}
	c.logger.Debug("context reset")
	return nil
}

// Close implements engine.Context.
func (c *Context) Close() error {
	c.closed = true
	return nil
}
