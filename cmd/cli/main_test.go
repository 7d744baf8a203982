package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// A schema file with an HCL syntax error panics inside app.NewApp();
	// run() must recover it into a clean error.
	invalidHCL := `
		entity "broken" {
			field "x" "text" {
	// Missing closing braces here
	`
	filePath := writeTempFile(t, "schema.hcl", invalidHCL)

	out := &bytes.Buffer{}
	runErr := run(out, []string{filePath})

	require.Error(t, runErr)
	require.Contains(t, runErr.Error(), "application startup panicked")
	require.Contains(t, runErr.Error(), "failed to parse")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	out := &bytes.Buffer{}
	err := run(out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_EvaluatesSchema(t *testing.T) {
	t.Parallel()

	schemaPath := writeTempFile(t, "schema.hcl", `
entity "invoice" {
  field "net" "number" {}

  field "gross" "calculated" {
    formula = "net * 2"
  }
}
`)
	valuesPath := writeTempFile(t, "values.hcl", `net = 10`)

	out := &bytes.Buffer{}
	err := run(out, []string{"-values", valuesPath, schemaPath})

	require.NoError(t, err)
	require.Contains(t, out.String(), "gross")
	require.Contains(t, out.String(), "20")
}

func TestRun_BlockingErrorsFailTheRun(t *testing.T) {
	t.Parallel()

	// A required field without a value is a blocking validation error; the
	// process must exit non-zero so generation pipelines stop.
	schemaPath := writeTempFile(t, "schema.hcl", `
entity "invoice" {
  field "net" "number" {
    required = true
  }
}
`)

	out := &bytes.Buffer{}
	err := run(out, []string{schemaPath})

	require.Error(t, err)
	require.Contains(t, err.Error(), "blocking errors")
}
