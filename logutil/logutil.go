// Package logutil holds the process-wide logger and the fatal assertion
// helpers used by the container packages. Expected negative results are never
// reported here; only invariant violations are.
package logutil

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

// Logger returns the shared logger, initializing a console logger on first
// use.
func Logger() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l := zap.Must(cfg.Build(zap.AddCallerSkip(1)))
	if global.CompareAndSwap(nil, l) {
		return l
	}
	return global.Load()
}

// SetLogger replaces the shared logger, for callers that already configured
// their own.
func SetLogger(l *zap.Logger) {
	global.Store(l)
}

// Fatalf logs an invariant violation and panics. These are programming
// errors (double free, lock retry exhaustion, lost rekey node), not
// recoverable conditions.
func Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	Logger().Error(msg)
	panic(msg)
}

// Assert panics with msg when cond is false.
func Assert(cond bool, msg string) {
	if !cond {
		Fatalf("%s", msg)
	}
}
