package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log levels accepted by Get.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *zap.SugaredLogger
	once         sync.Once
)

// Get returns a singleton logger configured with the provided level.
// The first call initializes the logger; subsequent calls ignore the level
// and return the already initialized instance.
func Get(level string) *zap.SugaredLogger {
	once.Do(func() {
		globalLogger = newZapLogger(level)
	})
	return globalLogger
}

func newZapLogger(level string) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	switch level {
	case DebugLevel:
		lvl = zapcore.DebugLevel
	case WarnLevel:
		lvl = zapcore.WarnLevel
	case ErrorLevel:
		lvl = zapcore.ErrorLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		// Fall back to a no-frills logger rather than failing startup.
		log = zap.NewNop()
	}
	return log.Sugar()
}
