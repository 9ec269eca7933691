package config

import "runtime/debug"

// Set with -ldflags "-X weatherproxy/internal/config.version=1.4.0" and
// likewise for commit and buildTime.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reports the ldflags values. When commit or build time were not
// injected, the VCS stamp the go tool embeds in the binary is used instead.
func NewBuildInfo() BuildInfo {
	return buildInfoFrom(debug.ReadBuildInfo)
}

func buildInfoFrom(read func() (*debug.BuildInfo, bool)) BuildInfo {
	info := BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}

	bi, ok := read()
	if !ok || bi == nil {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "none" && s.Value != "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && s.Value != "" {
				info.BuildTime = s.Value
			}
		}
	}
	return info
}
