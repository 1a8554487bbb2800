// Package obslog provides the run's structured logger: a single logrus
// instance tagged with a build ID, used by the scheduler and the build
// command. The banner-prefixed build output, the progress lines, the
// log-file warnings of the executor and finalizer, the run summary and the
// final failed-package list do not go through this logger; they are written
// straight to stdout/stderr.
package obslog

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Logger tagged with the run's build ID.
type Logger struct {
	logger  *logrus.Logger
	buildID string
}

// New creates a Logger writing JSON-formatted entries to stderr, so stdout
// stays free for the build's own progress and banner output.
func New(buildID string, debugLevel int) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	switch {
	case debugLevel >= 2:
		l.SetLevel(logrus.TraceLevel)
	case debugLevel == 1:
		l.SetLevel(logrus.DebugLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	return &Logger{logger: l, buildID: buildID}
}

func (l *Logger) entry(component string) *logrus.Entry {
	return l.logger.WithFields(logrus.Fields{
		"build_id":  l.buildID,
		"component": component,
	})
}

// Component returns an entry pre-tagged for a given component name, so
// callers can chain .WithField for package/stage-specific context.
func (l *Logger) Component(component string) *logrus.Entry {
	return l.entry(component)
}

func (l *Logger) Info(component, msg string)  { l.entry(component).Info(msg) }
func (l *Logger) Debug(component, msg string) { l.entry(component).Debug(msg) }
func (l *Logger) Warn(component, msg string)  { l.entry(component).Warn(msg) }
func (l *Logger) Error(component, msg string, err error) {
	l.entry(component).WithError(err).Error(msg)
}
