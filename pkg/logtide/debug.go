package logtide

import (
	"os"
)

// DebugEnabled controls whether or not debugging is enabled for logtide. It
// is set automatically based on the LOGTIDE_DEBUG environment variable.
var DebugEnabled bool

func init() {
	// Check whether or not debugging should be enabled.
	DebugEnabled = os.Getenv("LOGTIDE_DEBUG") == "1"
}
