package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LogLevelEnvVar selects the level: debug, info, warn or error. Unset
	// means silent.
	LogLevelEnvVar = "NODECFG_LOG_LEVEL"

	// LogFileEnvVar sends log output to a file instead of stderr, which
	// keeps the wizard screen clean while debugging it.
	LogFileEnvVar = "NODECFG_LOG_FILE"
)

var logger = zap.NewNop()

// Initialize builds the global logger. An empty level falls back to
// $NODECFG_LOG_LEVEL; if that is empty too the logger is a no-op. Unknown
// levels mean info.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	out := "stderr"
	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeCaller = zapcore.ShortCallerEncoder
	encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if path := os.Getenv(LogFileEnvVar); path != "" {
		out = path
		encoder.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	built, err := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "console",
		EncoderConfig:    encoder,
		OutputPaths:      []string{out},
		ErrorOutputPaths: []string{"stderr"},
	}.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = built
	return nil
}

// InitializeFromEnv is Initialize("").
func InitializeFromEnv() error {
	return Initialize("")
}

// SetLogger replaces the global logger; nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

func Debug(msg string, fields ...zap.Field) { logger.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { logger.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { logger.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { logger.Error(msg, fields...) }

// LogMutation records a document edit at debug level.
func LogMutation(op, instanceID string, fields ...zap.Field) {
	logger.Debug("Document mutation",
		append([]zap.Field{zap.String("op", op), zap.String("instance", instanceID)}, fields...)...)
}

func LogHTTPRequest(method, url string) {
	logger.Debug("HTTP request", zap.String("method", method), zap.String("url", url))
}

func LogHTTPResponse(url string, statusCode, size int) {
	logger.Debug("HTTP response",
		zap.String("url", url),
		zap.Int("status_code", statusCode),
		zap.Int("bytes", size))
}

// Sync flushes buffered entries.
func Sync() {
	_ = logger.Sync()
}
