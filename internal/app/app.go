// Package app wires the schema loader and the runtime orchestrator into the
// command-line application lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/ctxlog"
	"github.com/vk/formengine/internal/engine"
	"github.com/vk/formengine/internal/eval"
	"github.com/vk/formengine/internal/parser"
	"github.com/vk/formengine/internal/runtime"
	"github.com/vk/formengine/internal/schema"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW         io.Writer
	logger       *slog.Logger
	config       *Config
	cache        *parser.Cache
	set          *schema.Set
	warnings     []engine.Warning
	orchestrator *runtime.Orchestrator
}

// NewApp is the constructor for the main application. It loads the schema
// eagerly; a failure to load is a fatal startup error and panics, which the
// caller recovers into a clean exit message.
func NewApp(outW io.Writer, config *Config) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	cache := parser.NewCache()
	set, warnings, err := engine.Load(ctx, config.SchemaPath, cache)
	if err != nil {
		panic(fmt.Errorf("failed to load schema: %w", err))
	}
	logger.Debug("Schema loaded.", "entities", len(set.EntityIDs()), "warnings", len(warnings))

	orchestrator := runtime.New(eval.DefaultRegistry(), cache, runtime.WithFileStat(statFile))

	return &App{
		outW:         outW,
		logger:       logger,
		config:       config,
		cache:        cache,
		set:          set,
		warnings:     warnings,
		orchestrator: orchestrator,
	}
}

// statFile resolves file sizes for MAX_FILE_SIZE validation.
func statFile(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

// Run evaluates the configured entity against the value snapshot and writes
// the report. It returns a non-nil error when evaluation found blocking
// errors, so document generation callers refuse to proceed.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	for _, w := range a.warnings {
		a.logger.Warn("Schema warning.", "entity", w.EntityID, "message", w.Message)
	}

	entity, err := a.selectEntity()
	if err != nil {
		return err
	}

	snapshot, err := a.loadValues(ctx)
	if err != nil {
		return err
	}

	result := a.orchestrator.Evaluate(ctx, entity, snapshot)
	if err := writeReport(a.outW, result, a.config.JSONOutput); err != nil {
		return err
	}

	if result.HasBlockingErrors {
		return fmt.Errorf("entity %q has blocking errors; document generation must not proceed", entity.ID)
	}
	return nil
}

func (a *App) selectEntity() (*schema.Entity, error) {
	if a.config.EntityID != "" {
		entity, ok := a.set.Entity(a.config.EntityID)
		if !ok {
			return nil, fmt.Errorf("entity %q is not defined; available: %v", a.config.EntityID, a.set.EntityIDs())
		}
		return entity, nil
	}
	ids := a.set.EntityIDs()
	if len(ids) != 1 {
		return nil, fmt.Errorf("schema defines %d entities; select one with -entity (available: %v)", len(ids), ids)
	}
	entity, _ := a.set.Entity(ids[0])
	return entity, nil
}

// loadValues reads the optional value snapshot file. Without one the entity
// evaluates against an empty snapshot, which is useful for inspecting
// defaults and required-field behavior.
func (a *App) loadValues(ctx context.Context) (map[string]cty.Value, error) {
	if a.config.ValuesPath == "" {
		return map[string]cty.Value{}, nil
	}
	return engine.DecodeValuesFile(ctx, a.config.ValuesPath)
}
