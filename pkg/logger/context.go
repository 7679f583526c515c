package logger

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type ctxKey struct{}

// LoggerCtxKey is the context key under which the request logger is stored.
var LoggerCtxKey = ctxKey{}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger
)

// ContextWithLogger returns a copy of ctx carrying the given logger.
func ContextWithLogger(ctx context.Context, log Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, log)
}

// FromContext returns the logger stored in ctx, falling back to the process
// default when the context carries none.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if log, ok := ctx.Value(LoggerCtxKey).(Logger); ok && log != nil {
			return log
		}
	}
	return getDefault()
}

// SetDefault replaces the process-wide fallback logger.
func SetDefault(log Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = log
}

func getDefault() Logger {
	defaultMu.RLock()
	if defaultLogger != nil {
		defer defaultMu.RUnlock()
		return defaultLogger
	}
	defaultMu.RUnlock()
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// IsTestEnvironment reports whether the process is running under go test.
func IsTestEnvironment() bool {
	if flag.Lookup("test.v") != nil {
		return true
	}
	exe := filepath.Base(os.Args[0])
	return strings.HasSuffix(exe, ".test") || strings.Contains(exe, "__debug_bin")
}
