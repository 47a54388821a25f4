// Package logger provides the process-wide structured logger used by every
// other package. It wraps logrus the way the rest of the fleet does:
// package-level functions backed by a single configured instance, so callers
// never pass a logger value around.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log  = logrus.New()
	once sync.Once
)

// Init configures the shared logger from LOG_LEVEL (debug|info|warn|error,
// default info). Safe to call multiple times; only the first call applies.
func Init() {
	once.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		log.SetLevel(levelFromEnv())
	})
}

func levelFromEnv() logrus.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Fields is re-exported so callers don't need to import logrus directly.
type Fields = logrus.Fields

func Info(args ...interface{})                  { log.Info(args...) }
func Infof(format string, args ...interface{})  { log.Infof(format, args...) }
func Warn(args ...interface{})                  { log.Warn(args...) }
func Warnf(format string, args ...interface{})  { log.Warnf(format, args...) }
func Error(args ...interface{})                 { log.Error(args...) }
func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }
func Debug(args ...interface{})                 { log.Debug(args...) }
func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }

// WithFields returns an entry preloaded with structured context, for the
// call sites that want a source name / keyword / episode ID attached to
// every line of a single operation.
func WithFields(fields Fields) *logrus.Entry {
	return log.WithFields(fields)
}
