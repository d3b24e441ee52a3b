// Package logger builds the zap loggers used by the server and worker, and
// cleans untrusted values before they reach a log line.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewProductionLogger returns a JSON logger at info level, or debug level when debugMode is set.
// Error entries carry stack traces.
func NewProductionLogger(debugMode bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(Level(debugMode))
	cfg.Encoding = "json"
	cfg.DisableStacktrace = false
	cfg.EncoderConfig = encoderConfig()
	return cfg.Build()
}

// Level maps the debug switch to a zap level
func Level(debugMode bool) zapcore.Level {
	if debugMode {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.FunctionKey = zapcore.OmitKey
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.SecondsDurationEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	return enc
}
