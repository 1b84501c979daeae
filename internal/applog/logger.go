// Package applog builds the development logger shared by the three CLI
// binaries: console encoding, no caller/stacktrace noise, one logger per
// invocation. Logging here is diagnostic only; nothing it writes ever
// changes the emitted assembly or DOT text.
package applog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.SugaredLogger scoped to component (e.g. "codegen",
// "cfg", "semantic") at the given level.
func New(component string, level zapcore.Level) (*zap.SugaredLogger, error) {
	cc := zap.NewDevelopmentConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)

	log, err := cc.Build()
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("component", component)).Sugar(), nil
}

// Level resolves a CLI invocation's effective log level: an explicit
// --verbose flag always wins debug; otherwise a config file's LogLevel
// string is parsed, falling back to info.
func Level(verbose bool, configLevel string) zapcore.Level {
	if verbose {
		return zapcore.DebugLevel
	}
	return LevelFromString(configLevel)
}

// LevelFromString maps a config-file LogLevel name to a zapcore.Level,
// falling back to info on an empty or unrecognized string.
func LevelFromString(s string) zapcore.Level {
	if s == "" {
		return zapcore.InfoLevel
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
