package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		debug bool
		want  zapcore.Level
	}{
		{false, zapcore.InfoLevel},
		{true, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		log, err := NewProductionLogger(tt.debug)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !log.Core().Enabled(tt.want) {
			t.Errorf("Expected level %s to be enabled", tt.want)
		}
		if tt.want == zapcore.InfoLevel && log.Core().Enabled(zapcore.DebugLevel) {
			t.Error("Expected debug level to be disabled")
		}
	}
}
