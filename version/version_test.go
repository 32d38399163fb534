package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func stamp(t *testing.T, version, commit, branch, buildTime, goVersion string) {
	t.Helper()
	orig := [...]string{Version, GitCommit, GitBranch, BuildTime, GoVersion}
	t.Cleanup(func() {
		Version, GitCommit, GitBranch, BuildTime, GoVersion = orig[0], orig[1], orig[2], orig[3], orig[4]
	})
	Version, GitCommit, GitBranch, BuildTime, GoVersion = version, commit, branch, buildTime, goVersion
}

func TestResolveDefaults(t *testing.T) {
	stamp(t, "dev", "", "", "", "")

	info := resolve(nil)
	if info.Version != "dev" || info.IsRelease {
		t.Errorf("unexpected dev info %+v", info)
	}
	if info.BuildDate.IsZero() || info.BuildTime == "" {
		t.Error("build date should fall back to now")
	}
	if info.Short() != "dev" {
		t.Errorf("expected short 'dev', got %q", info.Short())
	}
}

func TestResolveStamped(t *testing.T) {
	stamp(t, "v1.0.0", "abc1234def", "main", "2024-01-15T10:30:00Z", "go1.22.0")

	info := resolve(nil)
	if !info.IsRelease {
		t.Error("stamped clean version should be a release")
	}
	if info.GitCommit != "abc1234" {
		t.Errorf("commit should be shortened, got %q", info.GitCommit)
	}
	if info.BuildDate.Year() != 2024 {
		t.Errorf("expected build year 2024, got %d", info.BuildDate.Year())
	}
	if got := info.Short(); got != "v1.0.0-abc1234" {
		t.Errorf("unexpected short %q", got)
	}
	if got := info.Full(); got != "v1.0.0-abc1234 (built 2024-01-15T10:30:00Z, go1.22.0)" {
		t.Errorf("unexpected full %q", got)
	}
}

func TestResolveFromBuildInfo(t *testing.T) {
	stamp(t, "dev", "", "feature/x", "", "")

	bi := &debug.BuildInfo{
		GoVersion: "go1.26.0",
		Main:      debug.Module{Path: "github.com/kbukum/queuekit", Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "vcs.time", Value: "2026-02-01T08:00:00Z"},
		},
	}
	info := resolve(bi)
	if info.Version != "v0.3.1" || info.Module != "github.com/kbukum/queuekit" {
		t.Errorf("module version should replace dev, got %+v", info)
	}
	if !info.IsDirty || info.IsRelease {
		t.Error("modified tree is dirty and not a release")
	}
	if info.GoVersion != "go1.26.0" || info.BuildTime != "2026-02-01T08:00:00Z" {
		t.Errorf("unexpected go version/build time %q %q", info.GoVersion, info.BuildTime)
	}
	if got := info.Short(); got != "v0.3.1-0123456-dirty" {
		t.Errorf("unexpected short %q", got)
	}
	if !strings.Contains(info.Full(), " feature/x ") {
		t.Errorf("non-default branch should appear in %q", info.Full())
	}
}

func TestResolveDevelModuleKeepsDev(t *testing.T) {
	stamp(t, "dev", "", "", "", "")
	info := resolve(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if info.Version != "dev" {
		t.Errorf("expected dev, got %q", info.Version)
	}
}

func TestPackageHelpers(t *testing.T) {
	if GetVersionInfo() == nil || GetShortVersion() == "" || GetFullVersion() == "" {
		t.Error("helpers must always return something")
	}
}
