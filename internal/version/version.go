// Package version provides the arrowlog build version string.
// The version is set at build time via -ldflags.
package version

// Version is the current arrowlog version.
// Override at build time: go build -ldflags "-X github.com/flashdb/arrowlog/internal/version.Version=0.1.0"
var Version = "0.1.0"

// BuildTime is the build timestamp.
// Override at build time: go build -ldflags "-X github.com/flashdb/arrowlog/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var BuildTime = "unknown"
