// Package logger configures the process-wide structured logger used across
// the connection layer.
package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// New creates a logrus logger writing to stderr with prefixed, timestamped
// output.  level is one of "debug", "info", "warn", "error" (case
// insensitive); unknown values fall back to info so a typo in a config file
// degrades verbosity instead of crashing startup.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	}
	log.SetLevel(ParseLevel(level))
	return log
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "info", "":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithComponent returns an entry tagged with the component name, the
// convention every package in this module uses for its log lines.
func WithComponent(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("prefix", name)
}

// Validate reports whether level names a supported verbosity.  Used by
// config loading to reject bad values eagerly while New stays forgiving.
func Validate(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("logger: unknown level %q", level)
}
