// Package log holds the process-wide logger used by every other package.
// It discards everything until the CLI installs a real logger with Set.
package log

import (
	"github.com/anchore/go-logger"
	"github.com/anchore/go-logger/adapter/discard"
)

// Log is the singleton used by the package-level helpers below.
var Log logger.Logger = discard.New()

// Set replaces the active logger.
func Set(l logger.Logger) {
	if l == nil {
		l = discard.New()
	}
	Log = l
}

// Get returns the active logger.
func Get() logger.Logger {
	return Log
}

func Errorf(format string, args ...interface{}) {
	Log.Errorf(format, args...)
}

func Error(args ...interface{}) {
	Log.Error(args...)
}

func Warnf(format string, args ...interface{}) {
	Log.Warnf(format, args...)
}

func Warn(args ...interface{}) {
	Log.Warn(args...)
}

func Infof(format string, args ...interface{}) {
	Log.Infof(format, args...)
}

func Info(args ...interface{}) {
	Log.Info(args...)
}

func Debugf(format string, args ...interface{}) {
	Log.Debugf(format, args...)
}

func Debug(args ...interface{}) {
	Log.Debug(args...)
}

func Tracef(format string, args ...interface{}) {
	Log.Tracef(format, args...)
}

func Trace(args ...interface{}) {
	Log.Trace(args...)
}

// WithFields returns a message logger carrying the given key/value pairs.
func WithFields(fields ...interface{}) logger.MessageLogger {
	return Log.WithFields(fields...)
}
