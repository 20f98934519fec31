// Package version provides build-time version information, injected through
// ldflags at release build time.
package version

var (
	// Version is the release version (git tag or "dev")
	Version = "dev"
	// Commit is the git commit hash the binary was built from
	Commit = "dev"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
