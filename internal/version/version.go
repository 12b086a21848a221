// Package version holds the build version, overridable at link time.
package version

// Version is set via -ldflags "-X .../internal/version.Version=..." in CI.
var Version = "dev"
