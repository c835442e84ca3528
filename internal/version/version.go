package version

import "fmt"

// Version contains the application version information.
// Set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/projgen/internal/version.Version=v0.3.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the version line printed by --version and stamped into generated plans.
func String() string {
	return fmt.Sprintf("projgen %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
