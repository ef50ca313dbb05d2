// Package version holds hfadmin build information and the User-Agent sent on
// every admin API request.
package version

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// EnvUserAgent replaces the generated User-Agent entirely
const EnvUserAgent = "HFADMIN_USER_AGENT"

// product is the User-Agent product token
const product = "hyperfleet-admin-core"

// Set with -ldflags "-X github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/version.Version=..."
var (
	Version   = "0.1.0"
	Commit    = "none"
	BuildDate = "unknown"
	Tag       = "none"
)

// BuildInfo describes the running binary
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
	Tag       string
	GoVersion string
	Platform  string
}

// Info returns the build information of the running binary
func Info() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		Tag:       Tag,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the multi-line form printed by `hfadmin version`
func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  Version:    %s\n", b.Version)
	fmt.Fprintf(&sb, "  Commit:     %s\n", b.Commit)
	fmt.Fprintf(&sb, "  Built:      %s\n", b.BuildDate)
	fmt.Fprintf(&sb, "  Tag:        %s\n", b.Tag)
	fmt.Fprintf(&sb, "  Go:         %s %s\n", b.GoVersion, b.Platform)
	return sb.String()
}

// UserAgent returns "hyperfleet-admin-core/<version> (<os>/<arch>; <go>)"
// unless HFADMIN_USER_AGENT is set.
func UserAgent() string {
	if ua := os.Getenv(EnvUserAgent); ua != "" {
		return ua
	}
	info := Info()
	return fmt.Sprintf("%s/%s (%s; %s)", product, info.Version, info.Platform, info.GoVersion)
}
