package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	return path
}

func TestEmbeddedDefaultsMatchDefault(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal(DefaultYAML(), &cfg); err != nil {
		t.Fatalf("embedded defaults do not parse: %v", err)
	}
	if cfg != Default() {
		t.Errorf("embedded defaults = %+v, want %+v", cfg, Default())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("embedded defaults invalid: %v", err)
	}
	if cfg.RCS.CommandsPerSecond != 0 {
		t.Errorf("CommandsPerSecond = %g, want 0 (no limit by default)", cfg.RCS.CommandsPerSecond)
	}
}

func TestLoadFileYAMLPartial(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bread.yaml", `
rcs:
  port: 5000
console:
  server_echo: true
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.RCS.Port != 5000 || !cfg.Console.ServerEcho {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.RCS.BufferSize != 256 || cfg.Jobs.MaxJobs != 1024 {
		t.Errorf("missing keys should keep defaults: %+v", cfg)
	}
}

func TestLoadFileTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bread.toml", `
[engine]
tick_rate = 30

[jobs]
workers = 4
max_jobs = 64

[rcs]
commands_per_second = 2.5
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Engine.TickRate != 30 || cfg.Jobs.Workers != 4 || cfg.Jobs.MaxJobs != 64 {
		t.Errorf("TOML values not applied: %+v", cfg)
	}
	if cfg.RCS.CommandsPerSecond != 2.5 {
		t.Errorf("CommandsPerSecond = %g, want 2.5", cfg.RCS.CommandsPerSecond)
	}
	if cfg.Engine.TickInterval() != time.Second/30 {
		t.Errorf("TickInterval() = %v", cfg.Engine.TickInterval())
	}
}

func TestLoadFileInvalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"bad port", "a.yaml", "rcs:\n  port: 70000\n", "rcs.port"},
		{"bad buffer", "b.yaml", "rcs:\n  buffer_size: 1\n", "rcs.buffer_size"},
		{"syntax", "c.yaml", "rcs: [", "failed to parse"},
		{"toml syntax", "d.toml", "[rcs\n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			_, err := LoadFile(path)
			if err == nil {
				t.Fatal("LoadFile() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadCustomPathMissing(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() with missing custom path should fail")
	}
}

func TestLoadCustomPath(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bread.yaml", "engine:\n  name: Toast\n")

	cfg, from, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if from != path || cfg.Engine.Name != "Toast" {
		t.Errorf("Load() = %q from %q", cfg.Engine.Name, from)
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	if cfg.RCS.ConnectTimeout() != 5*time.Second {
		t.Errorf("ConnectTimeout() = %v", cfg.RCS.ConnectTimeout())
	}
	if cfg.SSH.IdleTimeout() != 30*time.Minute {
		t.Errorf("IdleTimeout() = %v", cfg.SSH.IdleTimeout())
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bread.yaml", "log:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, path, log.New(io.Discard), func(c Config) { changes <- c })
	}()

	// Give the watcher time to register.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "bread.yaml", "log:\n  level: debug\n")

	select {
	case cfg := <-changes:
		if cfg.Log.Level != "debug" {
			t.Errorf("reloaded level = %q, want debug", cfg.Log.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}

func TestRepoDevConfigLoads(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("..", "..", "configs", "bread.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Log.Level != "debug" || !cfg.Console.ServerEcho {
		t.Errorf("dev config not applied: %+v", cfg)
	}
}
