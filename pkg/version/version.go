// Package version holds build metadata. Values are set at link time with
// -ldflags "-X github.com/Sumatoshi-tech/linemap/pkg/version.Version=...".
package version

import (
	"fmt"
	"runtime/debug"
)

const unknown = "<unknown>"

// Build metadata, overridden by -ldflags -X.
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// vcs settings keys written by the Go toolchain.
const (
	settingRevision = "vcs.revision"
	settingTime     = "vcs.time"
)

// InitBinaryVersion fills values left at their defaults from the module build info.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case settingRevision:
			if Commit == unknown {
				Commit = setting.Value
			}
		case settingTime:
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String renders the metadata on one line.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
