package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"snapsheet/internal/catalog"
	"snapsheet/internal/config"
	"snapsheet/internal/daemon"
	"snapsheet/internal/logging"
	"snapsheet/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	apiAddr    string
	configPath string
	baseDir    string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("SNAPSHEET_GENERATOR_SCRIPT", "")

	cfg := testsupport.NewConfig(t, testsupport.WithGeneratorScript(`echo '{"Title":"Test Image","Desc":"A test image"}'`))

	configPath := filepath.Join(homeDir, ".config", "snapsheet", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	journal, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}

	d, err := daemon.New(cfg, journal, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	env := &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		apiAddr:    d.Addr(),
		configPath: configPath,
		baseDir:    base,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, apiAddr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--api", apiAddr}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nstorage_dir = %q\nlog_dir = %q\napi_bind = %q\n\n[generator]\ncommand = %q\nscript = %q\n",
		cfg.Paths.StorageDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		"/bin/sh",
		cfg.Generator.Command,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func seedImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("\x89PNG fake image bytes"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
