// Package version provides build-time version information.
package version

var (
	// Version is the semantic version (set via ldflags)
	Version = "dev"

	// GitCommit is the git commit hash (set via ldflags)
	GitCommit = "unknown"

	// BuildDate is the build timestamp (set via ldflags)
	BuildDate = "unknown"
)

// Info reports the build as a struct so it can be served as JSON.
type Info struct {
	Version   string `json:"version" doc:"Semantic version"`
	GitCommit string `json:"gitCommit" doc:"Git commit hash"`
	BuildDate string `json:"buildDate" doc:"Build timestamp"`
}

// Get returns the current build information.
func Get() Info {
	return Info{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}
}

// String formats i for --version output.
func (i Info) String() string {
	return i.Version + " (commit: " + i.GitCommit + ", built: " + i.BuildDate + ")"
}
