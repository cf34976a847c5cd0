package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNew_Level(t *testing.T) {
	tests := []struct {
		level   string
		debug   bool
		enabled zapcore.Level
		hidden  zapcore.Level
	}{
		{"info", false, zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", false, zapcore.WarnLevel, zapcore.InfoLevel},
		{"debug", true, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"nonsense", false, zapcore.InfoLevel, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(tt.level, tt.debug)
			assert.True(t, l.Core().Enabled(tt.enabled))
			assert.False(t, l.Core().Enabled(tt.hidden))
		})
	}
}
