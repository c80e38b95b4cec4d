package cli

import (
	"context"
	"strings"

	"github.com/seekerror/logw"
)

// logLevel mirrors the four levels logw exposes leveled functions for.
// Only logw's leveled logging functions are used here, not any
// configuration surface of the package, so the CAROBOOK_LOG_LEVEL
// environment variable is gated by hand at each call site.
type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarning
	levelError
)

func parseLogLevel(s string) logLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "error":
		return levelError
	case "warning", "":
		return levelWarning
	default:
		return levelWarning
	}
}

// runLogger gates logw call sites on the configured minimum level and an
// explicit --debug override.
type runLogger struct {
	min   logLevel
	debug bool
}

func newRunLogger(env map[string]string, debug bool) *runLogger {
	return &runLogger{min: parseLogLevel(env["CAROBOOK_LOG_LEVEL"]), debug: debug}
}

func (l *runLogger) enabled(level logLevel) bool {
	if l.debug && level == levelDebug {
		return true
	}
	return level >= l.min
}

func (l *runLogger) Debugf(ctx context.Context, format string, a ...any) {
	if l.enabled(levelDebug) {
		logw.Debugf(ctx, format, a...)
	}
}

func (l *runLogger) Infof(ctx context.Context, format string, a ...any) {
	if l.enabled(levelInfo) {
		logw.Infof(ctx, format, a...)
	}
}

func (l *runLogger) Warningf(ctx context.Context, format string, a ...any) {
	if l.enabled(levelWarning) {
		logw.Warningf(ctx, format, a...)
	}
}

func (l *runLogger) Errorf(ctx context.Context, format string, a ...any) {
	if l.enabled(levelError) {
		logw.Errorf(ctx, format, a...)
	}
}
