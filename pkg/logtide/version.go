package logtide

import (
	"fmt"
)

const (
	// VersionMajor represents the current major version of logtide.
	VersionMajor = 0
	// VersionMinor represents the current minor version of logtide.
	VersionMinor = 3
	// VersionPatch represents the current patch version of logtide.
	VersionPatch = 0
)

// Version provides a stringified version of the current version.
var Version string

func init() {
	Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
}
