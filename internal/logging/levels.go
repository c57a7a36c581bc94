package logging

import "go.uber.org/zap/zapcore"

// TraceLevel is more verbose than Debug. Zap has no built-in trace level,
// so a custom level below Debug is registered here.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name, including the custom "trace" level.
func LevelFromString(s string) (zapcore.Level, error) {
	if s == "trace" {
		return TraceLevel, nil
	}
	var level zapcore.Level
	err := level.UnmarshalText([]byte(s))
	return level, err
}
