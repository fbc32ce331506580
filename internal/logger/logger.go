// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides a leveled, structured logger used by every other
// package in this module instead of fmt.Println/log.Printf.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/torrentfuse/torrentfuse/cfg"
)

// Severity levels, ordered the same way cfg.LogSeverity is. TRACE sits below
// slog's own Debug level since the severity vocabulary here has one more
// rung than slog's built-in four.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

func severityToLevel(s cfg.LogSeverity) slog.Level {
	switch s {
	case cfg.LogSeverityTrace:
		return LevelTrace
	case cfg.LogSeverityDebug:
		return LevelDebug
	case cfg.LogSeverityInfo:
		return LevelInfo
	case cfg.LogSeverityWarning:
		return LevelWarn
	case cfg.LogSeverityError:
		return LevelError
	case cfg.LogSeverityOff:
		return LevelOff
	default:
		return LevelInfo
	}
}

func levelName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return "TRACE"
	case l < LevelInfo:
		return "DEBUG"
	case l < LevelWarn:
		return "INFO"
	case l < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// Logger wraps slog.Logger, mapping this module's five severities onto
// slog's levels and tagging every record with "severity" rather than slog's
// default "level" key.
type Logger struct {
	slog *slog.Logger
}

// New builds a Logger writing to stderr at the given severity, in either
// "text" or "json" format.
func New(severity cfg.LogSeverity, format cfg.LogFormat) *Logger {
	return NewWithWriter(os.Stderr, severity, format)
}

// NewWithWriter is New with an explicit destination, used by tests.
func NewWithWriter(w io.Writer, severity cfg.LogSeverity, format cfg.LogFormat) *Logger {
	level := severityToLevel(severity)
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				lvl, _ := a.Value.Any().(slog.Level)
				a.Key = "severity"
				a.Value = slog.StringValue(levelName(lvl))
			case slog.MessageKey:
				a.Key = "message"
			case slog.TimeKey:
				a.Key = "time"
			}
			return a
		},
	}

	var handler slog.Handler
	if format == cfg.LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{slog: slog.New(handler)}
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

func (l *Logger) Trace(msg string, args ...any) { l.slog.Log(context.Background(), LevelTrace, msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }
