// Package version provides build-time version information.
package version

import "fmt"

// These variables are set at build time using -ldflags
var (
	// Version is the semantic version
	Version = "0.1.0"

	// BuildTime is the UTC time when the binary was built
	BuildTime = "unknown"

	// GitCommit is the git commit hash
	GitCommit = "unknown"

	// GitBranch is the branch the binary was built from
	GitBranch = "unknown"
)

// Info returns the build information as reported by the version endpoint.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
	}
}

// String formats the build information for the command line.
func String() string {
	return fmt.Sprintf("poisson-editor %s (commit %s, branch %s, built %s)", Version, GitCommit, GitBranch, BuildTime)
}
