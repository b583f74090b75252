// Package version exposes the daemon's build version, set via -ldflags at
// release build time, for the meta/diagnostics routes.
package version

var (
	version = "dev"
	build   = "unknown"
)

// String returns the build version for the current binary.
func String() string {
	return version
}

// Build returns the build identifier (commit or CI build number), if set.
func Build() string {
	return build
}

// ForTesting overrides the version string and returns a cleanup function
// that restores the original value. Must not be called concurrently.
func ForTesting(v string) func() {
	original := version
	version = v
	return func() { version = original }
}
