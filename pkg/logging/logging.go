// Package logging configures zerolog for the CLI and the server.
package logging

import (
	"fmt"
	"io"
	stdLog "log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where and how the global logger writes.
type Options struct {
	Level  string
	Format string // "text" (console) or "json"
	// File, when set, receives a copy of every record, rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
	Out        io.Writer
}

var (
	mu        sync.Mutex
	logWriter io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	rotating  *lumberjack.Logger
)

func init() {
	log.Logger = zerolog.New(logWriter).With().Timestamp().Logger().Level(zerolog.ErrorLevel)
}

// stdLogWriter forwards output of the standard library logger (used by some
// dependencies) to zerolog at debug level.
type stdLogWriter struct {
	logger zerolog.Logger
}

func (w *stdLogWriter) Write(p []byte) (int, error) {
	w.logger.Debug().Msg(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// Configure installs the global logger described by opts.
func Configure(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	level := ParseLevel(opts.Level)
	zerolog.SetGlobalLevel(level)

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	var w io.Writer
	if strings.EqualFold(opts.Format, "json") {
		w = out
	} else {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	if rotating != nil {
		_ = rotating.Close()
		rotating = nil
	}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		rotating = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 5),
			MaxBackups: orDefault(opts.MaxBackups, 3),
		}
		// The file always receives JSON.
		w = zerolog.MultiLevelWriter(w, rotating)
	}
	logWriter = w

	ctx := zerolog.New(w).With().Timestamp()
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	stdLog.SetFlags(0)
	stdLog.SetOutput(&stdLogWriter{logger: log.Logger})
	return nil
}

// ConfigureGlobal sets the global level and points the default logger at
// the console writer.
func ConfigureGlobal(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(logWriter).With().Timestamp().Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger
}

// NewLogger returns a logger tagged with component that writes through the
// global writer.
func NewLogger(component string, level zerolog.Level) zerolog.Logger {
	mu.Lock()
	w := logWriter
	mu.Unlock()
	return NewLoggerWithWriter(component, level, w)
}

// NewLoggerWithWriter returns a JSON logger tagged with component.
func NewLoggerWithWriter(component string, level zerolog.Level, w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
}

// ParseLevel converts a level name, defaulting to error on empty or unknown
// input.
func ParseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.ErrorLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.ErrorLevel
	}
	return level
}

// Close flushes and closes the rotating file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotating == nil {
		return nil
	}
	err := rotating.Close()
	rotating = nil
	return err
}

// Rotate starts a new log file, keeping the current one as a backup. It is a
// no-op without a log file.
func Rotate() error {
	mu.Lock()
	defer mu.Unlock()
	if rotating == nil {
		return nil
	}
	return rotating.Rotate()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
