// Package context provides logger plumbing over context.Context: handlers
// seed a request-scoped logrus entry carrying correlating fields, and the
// stores retrieve it with GetLogger wherever they need to log.
package context

import (
	"context"

	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

// WithLogger returns a context carrying the given logger entry.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger for the context, falling back to the
// standard logger when none was attached.
func GetLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// GetLoggerWithFields returns the context's logger with the given fields
// attached.
func GetLoggerWithFields(ctx context.Context, fields map[string]interface{}) *logrus.Entry {
	return GetLogger(ctx).WithFields(logrus.Fields(fields))
}
