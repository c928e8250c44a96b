// Package version reports the btscout build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/btscout/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/btscout/internal/version.Commit=abc1234"
//
// Unset values are filled from the VCS stamp in the build info, then fall
// back to a dev version.
var (
	Version = ""
	Commit  = ""
)

// Info is the build description printed by "btscout version --json".
type Info struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			fromSettings(info.Settings)
		}
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromSettings fills Commit from vcs.revision (short hash, "-dirty" when
// modified) and Version from vcs.time.
func fromSettings(settings []debug.BuildSetting) {
	vcs := make(map[string]string, len(settings))
	for _, s := range settings {
		vcs[s.Key] = s.Value
	}

	if rev := vcs["vcs.revision"]; Commit == "" && rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		if vcs["vcs.modified"] == "true" {
			rev += "-dirty"
		}
		Commit = rev
	}
	if Version == "" {
		if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

// Get returns the current build description.
func Get() Info {
	return Info{
		Version:  Version,
		Commit:   Commit,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
