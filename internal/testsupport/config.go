// Package testsupport provides shared helpers for package tests: temp
// configs seeded with unique directories and stub generator scripts.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"snapsheet/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test and a generator stubbed to emit an empty JSON object.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StorageDir = filepath.Join(base, "upload")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Generator.Command = StubGenerator(t, `{"Title":"Stub"}`)
	cfg.Generator.Script = ""
	cfg.Generator.TimeoutSeconds = 30

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithGeneratorScript replaces the stubbed generator with a script body.
func WithGeneratorScript(body string) ConfigOption {
	return func(cfg *config.Config) {
		path := filepath.Join(filepath.Dir(cfg.Paths.StorageDir), "generate.sh")
		if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
			panic(err)
		}
		cfg.Generator.Command = path
		cfg.Generator.Script = ""
	}
}

// StubGenerator writes an executable that prints the given JSON object
// to stdout and returns its path.
func StubGenerator(t testing.TB, jsonBody string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "generate.sh")
	script := "#!/bin/sh\necho '" + jsonBody + "'\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub generator: %v", err)
	}
	return path
}

// FailingGenerator writes an executable that reports a failure on
// stderr and exits nonzero.
func FailingGenerator(t testing.TB) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "generate.sh")
	script := "#!/bin/sh\necho 'generation failed' >&2\nexit 1\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write failing generator: %v", err)
	}
	return path
}
