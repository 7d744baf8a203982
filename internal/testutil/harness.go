// Package testutil provides the shared harness for integration tests: it
// materializes inline HCL sources as files, runs the schema loader and the
// orchestrator, and captures log output.
package testutil

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/ctxlog"
	"github.com/vk/formengine/internal/engine"
	"github.com/vk/formengine/internal/eval"
	"github.com/vk/formengine/internal/parser"
	"github.com/vk/formengine/internal/runtime"
	"github.com/vk/formengine/internal/schema"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// LoadResult holds the outcome of loading a set of schema sources.
type LoadResult struct {
	Set      *schema.Set
	Warnings []engine.Warning
	Err      error
	Log      string
}

// LoadSchema writes the given file name -> HCL source map into a temporary
// directory and runs the loader over it with debug logging captured.
func LoadSchema(t *testing.T, files map[string]string) *LoadResult {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	logBuf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	set, warnings, err := engine.Load(ctx, dir, parser.NewCache())
	return &LoadResult{Set: set, Warnings: warnings, Err: err, Log: logBuf.String()}
}

// Evaluate loads a single-file schema and runs one orchestration pass over
// the named entity with the given value snapshot. Load failures fail the
// test; evaluation findings are returned in the Result for assertion.
func Evaluate(t *testing.T, schemaHCL, entityID string, values map[string]cty.Value) *runtime.Result {
	t.Helper()

	loaded := LoadSchema(t, map[string]string{"schema.hcl": schemaHCL})
	require.NoError(t, loaded.Err, "schema must load")

	entity, ok := loaded.Set.Entity(entityID)
	require.True(t, ok, "entity %q must exist", entityID)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	orch := runtime.New(eval.DefaultRegistry(), parser.NewCache())
	return orch.Evaluate(ctx, entity, values)
}
