// Package version carries build metadata set with -ldflags -X.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GoVersion returns the Go runtime version string.
func GoVersion() string { return runtime.Version() }

// Info is the build metadata as served by the dashboard health endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	Go        string `json:"go"`
}

// Current returns the running binary's build metadata.
func Current() Info {
	return Info{Version: Version, Commit: GitCommit, BuildTime: BuildTime, Go: GoVersion()}
}

// String renders one line for `version` commands.
func String(service string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s %s/%s)",
		service, Version, GitCommit, BuildTime, GoVersion(), runtime.GOOS, runtime.GOARCH)
}
