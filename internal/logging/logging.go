// Package logging builds the structured logger shared by all components.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// Options selects the log outputs.
type Options struct {
	// Level is the minimum level. It may be changed later through Logger.Level.
	Level slog.Level

	// Format is "text" or "json".
	Format string

	// Output receives the text or JSON stream. Nil disables it.
	Output io.Writer

	// Journal adds a systemd journal handler when the journal is reachable.
	Journal bool
}

// Logger is a configured *slog.Logger with an adjustable level.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// Level returns the level variable shared by every handler.
func (l *Logger) Level() *slog.LevelVar {
	return l.level
}

// SetLevel changes the level of all handlers.
func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// New builds a logger that fans out to every configured handler. A journal
// that cannot be opened is reported on the stream handler and skipped.
func New(opts Options) *Logger {
	level := new(slog.LevelVar)
	level.Set(opts.Level)

	var handlers []slog.Handler
	var stream slog.Handler
	if opts.Output != nil {
		ho := &slog.HandlerOptions{Level: level}
		if opts.Format == "json" {
			stream = slog.NewJSONHandler(opts.Output, ho)
		} else {
			stream = slog.NewTextHandler(opts.Output, ho)
		}
		handlers = append(handlers, stream)
	}

	if opts.Journal {
		jh, err := slogjournal.NewHandler(&slogjournal.Options{
			Level: level,
			ReplaceGroup: func(key string) string {
				return journalKey(key)
			},
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				a.Key = journalKey(a.Key)
				return a
			},
		})
		if err != nil {
			if stream != nil {
				r := slog.NewRecord(time.Now(), slog.LevelWarn, "systemd journal unavailable", 0)
				r.Add("err", err)
				_ = stream.Handle(context.Background(), r)
			}
		} else {
			handlers = append(handlers, jh)
		}
	}

	if len(handlers) == 0 {
		return &Logger{Logger: slog.New(slog.DiscardHandler), level: level}
	}
	return &Logger{Logger: slog.New(slogmulti.Fanout(handlers...)), level: level}
}

// Open builds a logger writing to path, or to stderr when path is empty.
// The returned closer closes the file.
func Open(path string, opts Options) (*Logger, io.Closer, error) {
	if path == "" {
		opts.Output = os.Stderr
		return New(opts), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	opts.Output = f
	return New(opts), f, nil
}

// ParseLevel parses debug, info, warn or error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Component returns a child logger tagged with the component name.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	return l.With("component", name)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// journalKey converts a key to the journal's upper-case field syntax.
func journalKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		}
		return '_'
	}, s)
}
