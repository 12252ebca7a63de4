// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

// Build metadata, overridden at link time, e.g.
// -X github.com/Sumatoshi-tech/treestore/pkg/version.Version=v1.0.0.
var (
	Version = "dev"
	Commit  = "<unknown>"
	Date    = "<unknown>"
)

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("treestore %s (commit %s, built %s)", Version, Commit, Date)
}
