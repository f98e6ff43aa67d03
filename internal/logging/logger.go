package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

var log = newLogger(os.Stdout)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(jsonFormatter())
	l.SetLevel(logrus.InfoLevel)
	return l
}

func jsonFormatter() logrus.Formatter {
	return &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
	}
}

// Setup applies the configured level and format to the shared logger.
func Setup(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	if format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(jsonFormatter())
	}
	return nil
}

// SetOutput redirects the shared logger, mostly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Logger returns the shared logger.
func Logger() *logrus.Logger {
	return log
}

// NewContext returns a context whose log entries carry the given fields.
func NewContext(ctx context.Context, fields logrus.Fields) context.Context {
	if existing, ok := ctx.Value(ctxKey{}).(logrus.Fields); ok {
		merged := make(logrus.Fields, len(existing)+len(fields))
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
		fields = merged
	}
	return context.WithValue(ctx, ctxKey{}, fields)
}

// WithContext returns a logger entry carrying the fields stored in ctx.
func WithContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(log)
	if ctx == nil {
		return entry
	}
	if fields, ok := ctx.Value(ctxKey{}).(logrus.Fields); ok {
		entry = entry.WithFields(fields)
	}
	return entry
}

// WithFields returns a logger entry with additional custom fields
func WithFields(ctx context.Context, fields map[string]interface{}) *logrus.Entry {
	return WithContext(ctx).WithFields(fields)
}

// Infof logs a formatted info message.
func Infof(ctx context.Context, format string, args ...interface{}) {
	WithContext(ctx).Infof(format, args...)
}

// Warnf logs a formatted warning message.
func Warnf(ctx context.Context, format string, args ...interface{}) {
	WithContext(ctx).Warnf(format, args...)
}

// Errorf logs a formatted error message.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	WithContext(ctx).Errorf(format, args...)
}

// Debugf logs a formatted debug message.
func Debugf(ctx context.Context, format string, args ...interface{}) {
	WithContext(ctx).Debugf(format, args...)
}
