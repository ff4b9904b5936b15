package voicecall

import (
	"fmt"
	"log/slog"
)

// Logger is the interface for logging in voicecall.
type Logger interface {
	ErrorPrintf(format string, args ...any)
	WarnPrintf(format string, args ...any)
	InfoPrintf(format string, args ...any)
	DebugPrintf(format string, args ...any)
}

// DefaultLogger returns a Logger writing to slog.Default().
func DefaultLogger() Logger {
	return slogLogger{}
}

// SlogLogger creates a Logger from a slog.Logger.
func SlogLogger(l *slog.Logger) Logger {
	return slogLogger{l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) logger() *slog.Logger {
	if s.l == nil {
		return slog.Default()
	}
	return s.l
}

func (s slogLogger) ErrorPrintf(format string, args ...any) {
	s.logger().Error("voicecall: " + fmt.Sprintf(format, args...))
}

func (s slogLogger) WarnPrintf(format string, args ...any) {
	s.logger().Warn("voicecall: " + fmt.Sprintf(format, args...))
}

func (s slogLogger) InfoPrintf(format string, args ...any) {
	s.logger().Info("voicecall: " + fmt.Sprintf(format, args...))
}

func (s slogLogger) DebugPrintf(format string, args ...any) {
	s.logger().Debug("voicecall: " + fmt.Sprintf(format, args...))
}
