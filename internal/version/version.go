// Package version reports build information of the kwdata binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	unknownValue     = "unknown"
	commitHashLength = 7
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	BuildDate = unknownValue
	GitCommit = unknownValue
	GoVersion = runtime.Version()
)

// BuildInfo describes the running build
type BuildInfo struct {
	Version   string   `json:"version" yaml:"version"`
	BuildDate string   `json:"build_date" yaml:"build_date"`
	GitCommit string   `json:"git_commit" yaml:"git_commit"`
	GoVersion string   `json:"go_version" yaml:"go_version"`
	Dirty     bool     `json:"dirty" yaml:"dirty"`
	Module    string   `json:"module,omitempty" yaml:"module,omitempty"`
	Deps      []Module `json:"deps,omitempty" yaml:"deps,omitempty"`
}

// Module is a dependency compiled into the build
type Module struct {
	Path    string `json:"path" yaml:"path"`
	Version string `json:"version" yaml:"version"`
}

// Info returns the build information, completed from the embedded module
// data when available.
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: GoVersion,
		Dirty:     strings.HasSuffix(GitCommit, "-dirty"),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.Module = bi.Main.Path
	for _, dep := range bi.Deps {
		info.Deps = append(info.Deps, Module{Path: dep.Path, Version: dep.Version})
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.GitCommit == unknownValue:
			info.GitCommit = s.Value
		case s.Key == "vcs.modified" && s.Value == "true":
			info.Dirty = true
		}
	}
	return info
}

// String returns a human readable summary
func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "kwdata %s", b.Version)
	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	sb.WriteString("\n")

	if b.BuildDate != unknownValue && b.BuildDate != "" {
		fmt.Fprintf(&sb, "Build Date: %s\n", b.BuildDate)
	}
	if b.GitCommit != unknownValue && b.GitCommit != "" {
		commit := b.GitCommit
		if len(commit) > commitHashLength {
			commit = commit[:commitHashLength]
		}
		fmt.Fprintf(&sb, "Git Commit: %s\n", commit)
	}
	fmt.Fprintf(&sb, "Go Version: %s\n", b.GoVersion)
	return sb.String()
}

// IsRelease reports whether the build carries a release version
func IsRelease() bool {
	return Version != "dev" && !strings.Contains(Version, "-")
}
