package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/queuekit/pipeline"
)

const quietConfig = `
name: queuekit
environment: development
logging:
  level: error
  format: json
pipeline:
  dataset: ["ab"]
  counts: [1]
  multiplier: 2
  time_unit: 1ms
  timeout: 150ms
  break_pause: 1ms
  failure_probability: 0
  break_probability: 0
  cancel_probability: 0
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(quietConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--config", writeConfig(t))
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}

	got := lines(out)
	if len(got) != 4 {
		t.Fatalf("expected 3 values and the done line, got %q", got)
	}
	if got[3] != pipeline.DoneMessage {
		t.Errorf("last line must be the done message, got %q", got[3])
	}
	values := append([]string(nil), got[:3]...)
	sort.Strings(values)
	if strings.Join(values, ",") != "0,AA,BB" {
		t.Errorf("unexpected values %v", values)
	}
	if idx := strings.Index(out, "AA"); idx > strings.Index(out, "BB") {
		t.Error("items of one source must keep their order")
	}
}

func TestRunCommandFlagsOverrideFile(t *testing.T) {
	out, err := execute(t, "run", "--config", writeConfig(t),
		"--dataset", "x", "--counts", "0", "--multiplier", "3", "--seed", "42")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	want := []string{"XXX", pipeline.DoneMessage}
	if got := lines(out); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRunCommandValuesOnly(t *testing.T) {
	out, err := execute(t, "run", "--config", writeConfig(t), "--counts", "0", "--values-only")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if strings.Contains(out, pipeline.DoneMessage) {
		t.Errorf("markers must be filtered out, got %q", out)
	}
	if got := lines(out); strings.Join(got, "|") != "AA|BB" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestRunCommandUpperTransform(t *testing.T) {
	out, err := execute(t, "run", "--config", writeConfig(t), "--counts", "0", "--transform", "upper", "--values-only")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if got := lines(out); strings.Join(got, "|") != "A|B" {
		t.Errorf("unexpected output %q", got)
	}

	if _, err := execute(t, "run", "--config", writeConfig(t), "--transform", "reverse"); err == nil {
		t.Error("expected unknown transform to be rejected")
	}
}

func TestRunCommandRejectsInvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", writeConfig(t), "--multiplier", "-1")
	if err == nil || !strings.Contains(err.Error(), "config.pipeline") {
		t.Fatalf("expected pipeline validation error, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "queuekit ") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	opts := &rootOptions{configFile: filepath.Join(t.TempDir(), "missing.yml")}
	cfg, err := loadConfig(opts, nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	p := cfg.Pipeline
	if strings.Join(p.Dataset, ",") != "abc,xyz,foo" || len(p.Counts) != 1 || p.Counts[0] != 3 {
		t.Errorf("unexpected sources %v %v", p.Dataset, p.Counts)
	}
	if p.FailureProbability != pipeline.DefaultFailureProbability ||
		p.BreakProbability != pipeline.DefaultBreakProbability ||
		p.CancelProbability != pipeline.DefaultCancelProbability {
		t.Errorf("unexpected probabilities %+v", p)
	}
	if p.Timeout != 5*time.Second || p.Multiplier != pipeline.DefaultMultiplier {
		t.Errorf("unexpected timeout/multiplier %v %d", p.Timeout, p.Multiplier)
	}
	if cfg.Server.Port != 8080 || cfg.Telemetry.Enabled {
		t.Errorf("unexpected server/telemetry defaults %+v %+v", cfg.Server, cfg.Telemetry)
	}
	if cfg.Version == "" {
		t.Error("version should default to the build version")
	}
}
