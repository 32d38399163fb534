// Package version reports the build version of queuekit binaries.
//
// Release builds stamp the variables below with -ldflags, e.g.
//
//	-X github.com/kbukum/queuekit/version.Version=v1.2.0
//
// Anything left unset is recovered from the Go build info where possible.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	GitBranch = ""
	BuildTime = ""
	GoVersion = ""
)

const shortCommitLen = 7

// Info is the resolved build information.
type Info struct {
	Version   string    `json:"version"`
	Module    string    `json:"module,omitempty"`
	GitCommit string    `json:"git_commit"`
	GitBranch string    `json:"git_branch,omitempty"`
	BuildTime string    `json:"build_time"`
	GoVersion string    `json:"go_version"`
	BuildDate time.Time `json:"build_date"`
	IsRelease bool      `json:"is_release"`
	IsDirty   bool      `json:"is_dirty"`
}

// GetVersionInfo resolves the stamped variables against the binary's build info.
func GetVersionInfo() *Info {
	bi, _ := debug.ReadBuildInfo()
	return resolve(bi)
}

// GetShortVersion returns "version-commit[-dirty]", or just the version
// when no commit is known.
func GetShortVersion() string {
	return GetVersionInfo().Short()
}

// GetFullVersion returns the short form plus branch and build date.
func GetFullVersion() string {
	return GetVersionInfo().Full()
}

func resolve(bi *debug.BuildInfo) *Info {
	info := &Info{
		Version:   Version,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
	}
	if BuildTime != "" {
		if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
			info.BuildDate = t
		}
	}

	if bi != nil {
		info.Module = bi.Main.Path
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		if info.GoVersion == "" {
			info.GoVersion = bi.GoVersion
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.modified":
				info.IsDirty = s.Value == "true"
			case "vcs.time":
				if info.BuildTime == "" {
					if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
						info.BuildDate = t
						info.BuildTime = s.Value
					}
				}
			}
		}
	}

	if len(info.GitCommit) > shortCommitLen {
		info.GitCommit = info.GitCommit[:shortCommitLen]
	}
	info.IsRelease = info.Version != "dev" && !info.IsDirty && !strings.Contains(info.Version, "dirty")
	if info.BuildDate.IsZero() {
		info.BuildDate = time.Now().UTC()
		info.BuildTime = info.BuildDate.Format(time.RFC3339)
	}
	return info
}

// Short returns "version-commit[-dirty]".
func (i *Info) Short() string {
	if i.GitCommit == "" {
		return i.Version
	}
	s := i.Version + "-" + i.GitCommit
	if i.IsDirty {
		s += "-dirty"
	}
	return s
}

// Full returns Short plus a non-default branch and the build date.
func (i *Info) Full() string {
	s := i.Short()
	if i.GitBranch != "" && i.GitBranch != "main" && i.GitBranch != "master" {
		s += " " + i.GitBranch
	}
	return fmt.Sprintf("%s (built %s, %s)", s, i.BuildDate.UTC().Format(time.RFC3339), i.GoVersion)
}
