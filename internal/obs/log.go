package obs

import (
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once  sync.Once
	base  *zap.Logger
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// EnableDebug globally enables debug logs.
func EnableDebug(v bool) {
	if v {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.InfoLevel)
}

type Fields map[string]any

func logger() *zap.Logger {
	once.Do(func() {
		if base != nil {
			return
		}
		cfg := zap.NewProductionConfig()
		cfg.Level = level
		cfg.Sampling = nil
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		base = l
	})
	return base
}

// SetLogger replaces the process logger. Tests use zap.NewNop or an observer core.
func SetLogger(l *zap.Logger) {
	once.Do(func() {})
	base = l
}

// Sync flushes buffered log entries.
func Sync() { _ = logger().Sync() }

func toZap(f Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}

func Info(msg string, f Fields)  { logger().Info(msg, toZap(f)...) }
func Warn(msg string, f Fields)  { logger().Warn(msg, toZap(f)...) }
func Error(msg string, f Fields) { logger().Error(msg, toZap(f)...) }
func Debug(msg string, f Fields) { logger().Debug(msg, toZap(f)...) }

// Snippet trims upstream bodies before they are logged.
func Snippet(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}
