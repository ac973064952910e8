package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/onnxport/internal/env"
)

const (
	defaultLogFile    = "logs/onnxport.log"
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

type options struct {
	console   io.Writer
	logFile   string
	level     slog.Leveler
	logToFile bool
	noColor   bool
}

// Option configures the logger.
type Option func(*options)

// WithLogToFile enables or disables the rotating JSON log file.
func WithLogToFile(enabled bool) Option {
	return func(o *options) {
		o.logToFile = enabled
	}
}

// WithLogFile sets the path of the log file.
func WithLogFile(path string) Option {
	return func(o *options) {
		if path != "" {
			o.logFile = path
		}
	}
}

// WithConsole sets the writer console logs are written to. Defaults to stderr.
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		o.console = w
	}
}

// WithLevel overrides the level derived from the environment.
func WithLevel(level slog.Leveler) Option {
	return func(o *options) {
		o.level = level
	}
}

// New builds a logger for the given environment.
// Console output is colored with tint when stderr is a terminal; the log
// file, if enabled, receives JSON records and is rotated by lumberjack.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := &options{
		console: os.Stderr,
		logFile: defaultLogFile,
		level:   levelFor(environment),
	}
	for _, opt := range opts {
		opt(o)
	}

	if f, ok := o.console.(*os.File); ok {
		o.noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	} else {
		o.noColor = true
	}

	handlers := []slog.Handler{
		tint.NewHandler(o.console, &tint.Options{
			Level:      o.level,
			TimeFormat: time.Kitchen,
			NoColor:    o.noColor,
		}),
	}

	if o.logToFile {
		rotator := &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: o.level}))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}

	return slog.New(&fanout{handlers: handlers})
}

func levelFor(environment env.Environment) slog.Level {
	if environment.IsDevelopment() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
