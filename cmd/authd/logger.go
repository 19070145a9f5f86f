package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/campusportal/go-auth"
)

// slogLogger adapts slog to auth.Logger
type slogLogger struct {
	log *slog.Logger
}

var _ auth.Logger = slogLogger{}

func (l slogLogger) Debug(format string, args ...any) { l.log.Debug(fmt.Sprintf(format, args...)) }
func (l slogLogger) Info(format string, args ...any)  { l.log.Info(fmt.Sprintf(format, args...)) }
func (l slogLogger) Warn(format string, args ...any)  { l.log.Warn(fmt.Sprintf(format, args...)) }
func (l slogLogger) Error(format string, args ...any) { l.log.Error(fmt.Sprintf(format, args...)) }

func newLogger(w io.Writer, format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("component", "authd")
}
