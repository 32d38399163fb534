package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type testPipeline struct {
	Dataset    []string      `mapstructure:"dataset"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Multiplier int           `mapstructure:"multiplier"`
	BreakPause time.Duration `mapstructure:"break_pause"`
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Pipeline      testPipeline `mapstructure:"pipeline"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty config", func(t *testing.T) {
		var cfg ServiceConfig
		cfg.ApplyDefaults()
		if cfg.Name != "queuekit" {
			t.Errorf("expected name 'queuekit', got %q", cfg.Name)
		}
		if cfg.Environment != "development" || !cfg.Debug {
			t.Errorf("expected development with debug, got %q debug=%v", cfg.Environment, cfg.Debug)
		}
		if cfg.Logging.ServiceName != "queuekit" {
			t.Errorf("expected logging service name propagated, got %q", cfg.Logging.ServiceName)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr string
	}{
		{"valid", ServiceConfig{Name: "svc", Environment: "staging"}, ""},
		{"missing name", ServiceConfig{Environment: "production"}, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "qa"}, "config.environment must be one of"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
name: queuekit
environment: staging
pipeline:
  dataset: ["abc", "xyz"]
  timeout: 3s
  multiplier: 3
`)

	var cfg testConfig
	if err := LoadConfig("queuekit", &cfg, WithConfigFile(path), WithEnvPrefix("QKTEST_YAML")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected environment 'staging', got %q", cfg.Environment)
	}
	if len(cfg.Pipeline.Dataset) != 2 || cfg.Pipeline.Dataset[1] != "xyz" {
		t.Errorf("unexpected dataset %v", cfg.Pipeline.Dataset)
	}
	if cfg.Pipeline.Timeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", cfg.Pipeline.Timeout)
	}
	if cfg.Pipeline.Multiplier != 3 {
		t.Errorf("expected multiplier 3, got %d", cfg.Pipeline.Multiplier)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
pipeline:
  timeout: 3s
  multiplier: 3
`)
	t.Setenv("QKTEST_PIPELINE_TIMEOUT", "7s")
	t.Setenv("QKTEST_PIPELINE_BREAK_PAUSE", "250ms")

	var cfg testConfig
	err := LoadConfig("queuekit", &cfg,
		WithConfigFile(path),
		WithEnvPrefix("QKTEST"),
		WithDefaults(map[string]any{"pipeline.multiplier": 2, "pipeline.dataset": []string{"foo"}}),
		WithOverrides(map[string]any{"pipeline.multiplier": 9}),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Pipeline.Timeout != 7*time.Second {
		t.Errorf("env should override file, got %v", cfg.Pipeline.Timeout)
	}
	if cfg.Pipeline.BreakPause != 250*time.Millisecond {
		t.Errorf("expected nested underscore key from env, got %v", cfg.Pipeline.BreakPause)
	}
	if cfg.Pipeline.Multiplier != 9 {
		t.Errorf("override should win, got %d", cfg.Pipeline.Multiplier)
	}
	if len(cfg.Pipeline.Dataset) != 1 || cfg.Pipeline.Dataset[0] != "foo" {
		t.Errorf("default should fill unset key, got %v", cfg.Pipeline.Dataset)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "QKTEST_ENV_PIPELINE_MULTIPLIER=4\n")
	t.Cleanup(func() { os.Unsetenv("QKTEST_ENV_PIPELINE_MULTIPLIER") })

	var cfg testConfig
	err := LoadConfig("queuekit", &cfg,
		WithConfigFile(filepath.Join(dir, "missing.yml")),
		WithEnvFile(envPath),
		WithEnvPrefix("QKTEST_ENV"),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Pipeline.Multiplier != 4 {
		t.Errorf("expected multiplier from .env, got %d", cfg.Pipeline.Multiplier)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"), WithEnvPrefix("QKTEST_NONE"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", "pipeline: [unterminated")
	var cfg testConfig
	if err := LoadConfig("queuekit", &cfg, WithConfigFile(path)); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestResolverSearchOrder(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/queuekit/config.yml": true,
		"./config.yml":              true,
		"./.env":                    true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("queuekit", LoaderConfig{})
	if files.ConfigFile != "./cmd/queuekit/config.yml" {
		t.Errorf("expected cmd config first, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected ./.env, got %q", files.EnvFile)
	}

	explicit := resolver.ResolveFiles("queuekit", LoaderConfig{ConfigFile: "/etc/q.yml"})
	if explicit.ConfigFile != "/etc/q.yml" {
		t.Errorf("explicit path must win, got %q", explicit.ConfigFile)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("PIPELINE_BREAK_PAUSE")
	want := []string{"pipeline_break_pause", "pipeline.break.pause", "pipeline.break_pause"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := envKeyVariants("NAME"); len(got) != 1 || got[0] != "name" {
		t.Errorf("single segment: got %v", got)
	}
}
