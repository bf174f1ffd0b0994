// Package obs provides the structured logger shared by the indexing
// engine, the directory walker and the build/serve commands.
package obs

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var global atomic.Pointer[zerolog.Logger]

func init() {
	l := New()
	global.Store(&l)
}

// New returns a default logger writing to stderr with a timestamp.
func New() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Logger returns the process-wide default logger. Components that need
// per-instance control should take a zerolog.Logger via constructor
// injection instead of calling this.
func Logger() zerolog.Logger {
	return *global.Load()
}

// SetLogger replaces the process-wide default logger, e.g. to change
// the level from a ServerConfig.
func SetLogger(l zerolog.Logger) {
	global.Store(&l)
}
