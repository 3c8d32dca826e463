package authgate

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogLogger adapts a *slog.Logger to the Logger interface. The format string
// becomes the message; args are forwarded as slog attributes when they come in
// key/value pairs, otherwise the message is rendered with fmt.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{logger: l}
}

func (s *SlogLogger) Debug(format string, args ...any) { s.log(slog.LevelDebug, format, args...) }
func (s *SlogLogger) Info(format string, args ...any)  { s.log(slog.LevelInfo, format, args...) }
func (s *SlogLogger) Warn(format string, args ...any)  { s.log(slog.LevelWarn, format, args...) }
func (s *SlogLogger) Error(format string, args ...any) { s.log(slog.LevelError, format, args...) }

func (s *SlogLogger) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if len(args)%2 == 0 && allStringKeys(args) {
		s.logger.Log(ctx, level, format, args...)
		return
	}
	s.logger.Log(ctx, level, fmt.Sprintf(format, args...))
}

func allStringKeys(args []any) bool {
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}
