// Package version reports claridoc build information.
package version

import (
	"fmt"
	"runtime"
)

// Version is set via ldflags at build time:
//
//	-X github.com/Aman-CERP/claridoc/pkg/version.Version=$(VERSION)
var Version = "dev"

var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary.
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a one-line version string with build info.
func String() string {
	return fmt.Sprintf("claridoc %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// UserAgent is sent on outbound HTTP requests.
func UserAgent() string {
	return "claridoc/" + Version
}
