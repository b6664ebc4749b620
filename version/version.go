// Package version provides build-time version information for poolprobe.
//
// Version is set at build time using ldflags:
//
//	go build -ldflags "-X github.com/go-i2p/connpool/version.Version=1.0.0"
//
// Binaries built with plain "go build" or "go install" fall back to the
// VCS data the Go toolchain embeds.
package version

import (
	"runtime/debug"
	"sync"
)

// Version is the software version, set at build time via ldflags.
// Example: go build -ldflags "-X github.com/go-i2p/connpool/version.Version=1.0.0"
var Version = "dev"

// GitCommit is the git commit hash, set at build time via ldflags.
// Example: go build -ldflags "-X github.com/go-i2p/connpool/version.GitCommit=$(git rev-parse --short HEAD)"
var GitCommit = ""

// BuildTime is when the binary was built, set at build time via ldflags.
// Example: go build -ldflags "-X github.com/go-i2p/connpool/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var BuildTime = ""

var (
	vcsOnce   sync.Once
	vcsCommit string
	vcsTime   string
)

// readVCS reads the revision and commit time embedded by the toolchain.
func readVCS() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			vcsCommit = s.Value
			if len(vcsCommit) > 7 {
				vcsCommit = vcsCommit[:7]
			}
		case "vcs.time":
			vcsTime = s.Value
		}
	}
}

// Commit returns GitCommit, or the embedded VCS revision when it is unset.
func Commit() string {
	if GitCommit != "" {
		return GitCommit
	}
	vcsOnce.Do(readVCS)
	return vcsCommit
}

// Built returns BuildTime, or the embedded VCS commit time when it is unset.
func Built() string {
	if BuildTime != "" {
		return BuildTime
	}
	vcsOnce.Do(readVCS)
	return vcsTime
}

// Full returns the version string including commit and build time if available.
func Full() string {
	v := Version
	if c := Commit(); c != "" {
		v += "-" + c
	}
	if b := Built(); b != "" {
		v += " (" + b + ")"
	}
	return v
}
