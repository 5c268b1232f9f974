package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the service current released version.
// This value can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/hrygo/chatdigest/internal/version.Version=v1.2.0"
var Version = "0.0.0-dev"

// GitCommit is the git commit hash at build time.
// Set via ldflags: -X github.com/hrygo/chatdigest/internal/version.GitCommit=$(git rev-parse HEAD)
var GitCommit = "unknown"

// BuildTime is the build timestamp in RFC3339 format.
// Set via ldflags: -X github.com/hrygo/chatdigest/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)
var BuildTime = "unknown"

// canonical returns Version with the "v" prefix semver expects.
func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// GetCurrentVersion returns the version string reported for the given mode.
// Non-prod modes always carry a "-dev" suffix so logs can tell them apart.
func GetCurrentVersion(mode string) string {
	v := strings.TrimPrefix(Version, "v")
	if mode != "prod" && semver.Prerelease(canonical(v)) == "" {
		return v + "-dev"
	}
	return v
}

// IsValid reports whether Version is a well-formed semantic version.
func IsValid() bool {
	return semver.IsValid(canonical(Version))
}

// IsPrerelease reports whether Version carries a pre-release tag.
func IsPrerelease() bool {
	return semver.Prerelease(canonical(Version)) != ""
}

// IsVersionGreaterOrEqualThan returns true if version is greater than or equal to target.
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) > -1
}

// UserAgent is sent on outgoing HTTP calls.
func UserAgent() string {
	return "chatdigest/" + strings.TrimPrefix(Version, "v")
}

func shortCommit() string {
	if GitCommit == "" || GitCommit == "unknown" {
		return ""
	}
	if len(GitCommit) > 8 {
		return GitCommit[:8]
	}
	return GitCommit
}

// String returns the version string with optional commit hash.
func String() string {
	if c := shortCommit(); c != "" {
		return fmt.Sprintf("%s-%s", Version, c)
	}
	return Version
}

// StringFull returns the complete version information including build metadata.
func StringFull() string {
	parts := []string{fmt.Sprintf("Version=%s", Version)}
	if c := shortCommit(); c != "" {
		parts = append(parts, fmt.Sprintf("Commit=%s", c))
	}
	if BuildTime != "" && BuildTime != "unknown" {
		parts = append(parts, fmt.Sprintf("BuildTime=%s", BuildTime))
	}
	return strings.Join(parts, " ")
}
