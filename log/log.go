// Package log provides the logger used by pipelines and elements.
package log

import (
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// DebugEnv enables debug logging when it parses as true.
const DebugEnv = "PIPELINE_DEBUG"

var debug bool

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv(DebugEnv))
	if err != nil {
		debug = false
	}
}

// GetLogger returns a new logger instance. Debug level is enabled with
// PIPELINE_DEBUG environment variable.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// Silent returns a logger that discards everything. Used in tests.
func Silent() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
