// Package version reports the dhcpfp build version. Release builds set the
// variables below with ldflags:
//
//	go build -ldflags "-X github.com/InfraSecConsult/dhcp-osfp-go/internal/version.Version=v0.3.0 \
//	  -X github.com/InfraSecConsult/dhcp-osfp-go/internal/version.CommitHash=$(git rev-parse --short HEAD)" ./cmd/dhcpfp
package version

import (
	"os"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	Version    = ""
	CommitHash = ""
	BuildTime  = ""
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// GetVersion returns, in order of preference, the ldflags version, the
// module version recorded by "go install", a VERSION file in the working
// directory or its parents, or "dev".
func GetVersion() string {
	if Version != "" {
		return Version
	}

	if info, ok := readBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}

	for _, path := range []string{"VERSION", "../VERSION", "../../VERSION"} {
		if content, err := os.ReadFile(path); err == nil {
			if v := strings.TrimSpace(string(content)); v != "" {
				return v
			}
		}
	}

	return "dev"
}

// Commit returns the ldflags commit hash, or the VCS revision stamped into
// the binary by the go tool.
func Commit() string {
	if CommitHash != "" {
		return CommitHash
	}
	if info, ok := readBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return ""
}

// GetFullVersion returns the version with the commit hash appended.
func GetFullVersion() string {
	v := GetVersion()
	if c := Commit(); c != "" {
		v += "+" + c
	}
	return v
}

// GetBuildInfo returns all build information, as printed by "dhcpfp version".
func GetBuildInfo() map[string]string {
	return map[string]string{
		"version":    GetVersion(),
		"commitHash": Commit(),
		"buildTime":  BuildTime,
		"goVersion":  runtime.Version(),
	}
}
