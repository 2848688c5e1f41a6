// Package common provides the protocol types, configuration and logging
// utilities shared by the rpc client and server.
package common

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// --------------------------------------------------------------------------
// Log Levels
// --------------------------------------------------------------------------

// LogLevel selects the verbosity of a logger.
type LogLevel int

const (
	CRITICAL LogLevel = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

// ParseLogLevel converts a string level to a LogLevel
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warning", "warn":
		return WARNING, nil
	case "error":
		return ERROR, nil
	case "critical":
		return CRITICAL, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error, critical", level)
	}
}

// --------------------------------------------------------------------------
// Named Loggers
// --------------------------------------------------------------------------

// Logger is a named, leveled logger. One instance exists per name; the
// level can be adjusted at runtime.
type Logger struct {
	name  string
	entry *logrus.Entry
	level LogLevel
	mu    sync.Mutex
}

var (
	loggersMu sync.Mutex
	loggers   = map[string]*Logger{}
	backend   = newBackend()
)

func newBackend() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	// Per-logger levels gate the calls; the backend passes everything.
	l.SetLevel(logrus.DebugLevel)
	return l
}

// GetLogger returns the logger registered under name, creating it at INFO
// on first use.
func GetLogger(name string) *Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[name]; ok {
		return l
	}
	l := &Logger{
		name:  name,
		entry: backend.WithField("pkg", name),
		level: INFO,
	}
	loggers[name] = l
	return l
}

// SetLevel adjusts the logger's verbosity.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) enabled(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level >= level
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.enabled(DEBUG) {
		l.entry.Debugf(format, args...)
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l.enabled(INFO) {
		l.entry.Infof(format, args...)
	}
}

func (l *Logger) Warningf(format string, args ...interface{}) {
	if l.enabled(WARNING) {
		l.entry.Warnf(format, args...)
	}
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.enabled(ERROR) {
		l.entry.Errorf(format, args...)
	}
}

func (l *Logger) Panicf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers sets every component logger to the configured level.
func InitLoggers(logLevel string) error {
	level, err := ParseLogLevel(logLevel)
	if err != nil {
		return err
	}
	for _, name := range []string{
		"engine", "storage", "rpc", "rpc/server", "rpc/client",
		"transport", "replication",
	} {
		GetLogger(name).SetLevel(level)
	}
	return nil
}
