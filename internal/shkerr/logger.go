package shkerr

import (
	"io"
	"log"
	"os"
)

// Logger is the thin seam the rest of the module logs through, so tests
// can capture output the way the teacher's status printer captures its
// own package-level *log.Logger instead of writing straight to stderr.
type Logger struct {
	*log.Logger
}

// Default logs to stderr with no timestamp, matching the terse style of
// the build's own progress output.
func Default() *Logger {
	return &Logger{Logger: log.New(os.Stderr, "", 0)}
}

// NewLogger builds a Logger writing to an arbitrary sink, for tests.
func NewLogger(w io.Writer) *Logger {
	return &Logger{Logger: log.New(w, "", 0)}
}
