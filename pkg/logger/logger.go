// Package logger wraps logrus with the structured field conventions used
// across the gateway.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger carries a logrus logger plus accumulated context fields.
type Logger struct {
	*logrus.Logger
	fields logrus.Fields
}

// Config holds logger configuration.
type Config struct {
	Level  string
	Format string
	Output string
}

// New creates a logger from the given configuration.
func New(config Config) (*Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	switch config.Format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	var output io.Writer
	switch config.Output {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	log.SetOutput(output)

	return &Logger{Logger: log, fields: make(logrus.Fields)}, nil
}

// WithField returns a logger with an additional context field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	fields := make(logrus.Fields, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{Logger: l.Logger, fields: fields}
}

// WithFields returns a logger with additional context fields.
func (l *Logger) WithFields(fields logrus.Fields) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{Logger: l.Logger, fields: merged}
}

// WithError adds an error field to the logger context.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

// Debug logs a debug message with the accumulated fields.
func (l *Logger) Debug(args ...interface{}) { l.Logger.WithFields(l.fields).Debug(args...) }

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Logger.WithFields(l.fields).Debugf(format, args...)
}

// Info logs an info message.
func (l *Logger) Info(args ...interface{}) { l.Logger.WithFields(l.fields).Info(args...) }

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Logger.WithFields(l.fields).Infof(format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(args ...interface{}) { l.Logger.WithFields(l.fields).Warn(args...) }

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Logger.WithFields(l.fields).Warnf(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(args ...interface{}) { l.Logger.WithFields(l.fields).Error(args...) }

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Logger.WithFields(l.fields).Errorf(format, args...)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(args ...interface{}) { l.Logger.WithFields(l.fields).Fatal(args...) }

// RequestLogger creates a logger with request-specific fields.
func (l *Logger) RequestLogger(requestID, method, path, remoteAddr string) *Logger {
	return l.WithFields(logrus.Fields{
		"request_id":  requestID,
		"method":      method,
		"path":        path,
		"remote_addr": remoteAddr,
		"component":   "proxy",
	})
}

// BackendLogger creates a logger with backend-specific fields.
func (l *Logger) BackendLogger(serverID, serverURL string) *Logger {
	return l.WithFields(logrus.Fields{
		"server_id":  serverID,
		"server_url": serverURL,
		"component":  "backend",
	})
}

// ProbeLogger creates a logger for the health monitor.
func (l *Logger) ProbeLogger() *Logger {
	return l.WithField("component", "health_monitor")
}

// GatewayLogger creates a logger for the gateway service.
func (l *Logger) GatewayLogger() *Logger {
	return l.WithField("component", "gateway")
}
