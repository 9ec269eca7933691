package config

import (
	"runtime/debug"
	"testing"
)

func TestNewBuildInfoVersionDefault(t *testing.T) {
	if got := NewBuildInfo().Version; got != "dev" {
		t.Errorf("NewBuildInfo().Version = %q, want %q", got, "dev")
	}
}

func TestBuildInfoFromWithoutEmbeddedInfo(t *testing.T) {
	info := buildInfoFrom(func() (*debug.BuildInfo, bool) { return nil, false })

	want := BuildInfo{Version: "dev", Commit: "none", BuildTime: "unknown"}
	if info != want {
		t.Errorf("buildInfoFrom() = %+v, want %+v", info, want)
	}
}

func TestBuildInfoFromUsesVCSStamp(t *testing.T) {
	info := buildInfoFrom(func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "3f2a9c1"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			{Key: "GOOS", Value: "linux"},
		}}, true
	})

	if info.Commit != "3f2a9c1" {
		t.Errorf("Commit = %q, want %q", info.Commit, "3f2a9c1")
	}
	if info.BuildTime != "2026-10-01T12:00:00Z" {
		t.Errorf("BuildTime = %q, want %q", info.BuildTime, "2026-10-01T12:00:00Z")
	}
}
