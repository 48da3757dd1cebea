// Package util provides low-level helpers shared by all other packages.
package util

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger writes levelled messages to stderr.  It is a thin veneer over
// logrus that maps the -v count onto logrus levels.
type Logger struct {
	level LogLevel
	log   *logrus.Logger
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level: LogLevel(verbosity),
		log:   logrus.New(),
	}
	l.log.SetOutput(os.Stderr)
	l.log.SetLevel(logrusLevel(l.level))
	l.SetTimestamps(verbosity >= int(LogDebug))
	return l
}

func logrusLevel(level LogLevel) logrus.Level {
	switch {
	case level <= LogQuiet:
		return logrus.ErrorLevel
	case level == LogNormal:
		return logrus.InfoLevel
	case level == LogVerbose:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: !on,
		FullTimestamp:    on,
		TimestampFormat:  "15:04:05.000",
	})
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) { l.log.SetOutput(w) }

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// WithField returns an entry that tags every message with key=value.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.log.WithField(key, value)
}

// Info prints when verbosity ≥ 1.
func (l *Logger) Info(format string, args ...interface{}) { l.log.Infof(format, args...) }

// Warn prints when verbosity ≥ 1.
func (l *Logger) Warn(format string, args ...interface{}) { l.log.Warnf(format, args...) }

// Verbose prints when verbosity ≥ 2.
func (l *Logger) Verbose(format string, args ...interface{}) { l.log.Debugf(format, args...) }

// Debug prints when verbosity ≥ 3.
func (l *Logger) Debug(format string, args ...interface{}) { l.log.Tracef(format, args...) }

// Error always prints regardless of verbosity.
func (l *Logger) Error(format string, args ...interface{}) { l.log.Errorf(format, args...) }
