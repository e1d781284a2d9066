package lgr

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
)

// Logger is the process-wide structured logger.
var Logger = New(Options{Level: LevelFromEnv(os.Getenv("LOG_LEVEL"))})

type Options struct {
	Level slog.Level
	// File, when set, also writes JSON records to a rotating log file.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func New(opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: replaceAttr,
	}

	var handler slog.Handler = NewPrettyHandler(os.Stdout, PrettyHandlerOptions{SlogOpts: *handlerOpts})
	if opts.File != "" {
		handler = &fanoutHandler{handlers: []slog.Handler{
			handler,
			slog.NewJSONHandler(rotatingFile(opts), handlerOpts),
		}}
	}

	return slog.New(&traceHandler{Handler: handler})
}

// Configure replaces the process-wide logger.
func Configure(opts Options) {
	Logger = New(opts)
}

func rotatingFile(opts Options) io.Writer {
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}

	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize, // MB
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays, // days
		Compress:   true,
	}
}

// LevelFromEnv maps a LOG_LEVEL value to a slog level, defaulting to info.
func LevelFromEnv(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
