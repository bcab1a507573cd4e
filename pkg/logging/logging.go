package logging

import (
	"log"
	"os"
	"sync/atomic"
)

// currentLevel is the process-wide log level. It is stored atomically so that
// the level can be adjusted after loggers have started writing.
var currentLevel uint32 = uint32(LevelInfo)

// SetLevel sets the process-wide log level.
func SetLevel(level Level) {
	atomic.StoreUint32(&currentLevel, uint32(level))
}

// CurrentLevel returns the process-wide log level.
func CurrentLevel() Level {
	return Level(atomic.LoadUint32(&currentLevel))
}

// enabled indicates whether or not output at the specified level should be
// written given the current process-wide level.
func enabled(level Level) bool {
	return level <= CurrentLevel()
}

func init() {
	// Set the global logger to use standard error. Event traces go to standard
	// output, so diagnostics have to stay off of it.
	log.SetOutput(os.Stderr)
}
