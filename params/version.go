package params

import "fmt"

const (
	VersionMajor = 1
	VersionMinor = 2
	VersionPatch = 0
)

// Version holds the textual version string.
var Version = fmt.Sprintf("v%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)

// VersionWithCommit appends build metadata when the binary was built
// with commit info injected.
func VersionWithCommit(gitCommit, gitDate string) string {
	version := Version
	if len(gitCommit) >= 8 {
		version += "-" + gitCommit[:8]
	}
	if gitDate != "" {
		version += "-" + gitDate
	}
	return version
}
