package logging

import (
	"io"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/sirupsen/logrus"
)

// LogrusAdapter implements watermill.LoggerAdapter on top of logrus
type LogrusAdapter struct {
	entry *logrus.Entry
}

// NewLogger builds a logrus logger for the given level and format ("json" or "text").
// Unknown levels fall back to info.
func NewLogger(level, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	if out != nil {
		logger.SetOutput(out)
	}

	if format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}

// NewLogrusAdapter wraps logger as a watermill.LoggerAdapter
func NewLogrusAdapter(logger *logrus.Logger) watermill.LoggerAdapter {
	return &LogrusAdapter{entry: logrus.NewEntry(logger)}
}

// Error logs msg with err at error level
func (l *LogrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).WithError(err).Error(msg)
}

// Info logs msg at info level
func (l *LogrusAdapter) Info(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

// Debug logs msg at debug level
func (l *LogrusAdapter) Debug(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

// Trace logs msg at trace level
func (l *LogrusAdapter) Trace(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Trace(msg)
}

// With returns an adapter that adds fields to every entry
func (l *LogrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LogrusAdapter{entry: l.entry.WithFields(logrus.Fields(fields))}
}
