package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one step below Debug.
const TraceLevel = zapcore.DebugLevel - 1

// LevelFromString parses a level name. "trace" is accepted alongside zap's
// own names.
func LevelFromString(level string) (zapcore.Level, error) {
	if strings.EqualFold(strings.TrimSpace(level), "trace") {
		return TraceLevel, nil
	}
	return zapcore.ParseLevel(strings.TrimSpace(level))
}
