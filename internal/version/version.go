package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time via ldflags:
//
//	go build -ldflags="-X github.com/ypwhs/cp02-monitor/internal/version.Version=v1.2.3 \
//	                   -X github.com/ypwhs/cp02-monitor/internal/version.Commit=abc123"
//
// When unset, values are recovered from Go build info where possible.
var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

func init() {
	if Version == "" || Commit == "" {
		populateFromBuildInfo()
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// populateFromBuildInfo reads VCS metadata embedded by the Go toolchain
// when building from a git checkout.
func populateFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == "" && setting.Value != "" {
				Commit = setting.Value
				if len(Commit) > 7 {
					Commit = Commit[:7]
				}
			}
		case "vcs.modified":
			if setting.Value == "true" && Commit != "" {
				Commit += "-dirty"
			}
		}
	}
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
