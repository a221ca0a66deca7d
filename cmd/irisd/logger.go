package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the process logger. format is auto|console|json; auto picks
// the console writer when out is a terminal. A non-empty file adds a rotating
// JSON log next to the terminal output.
func newLogger(out io.Writer, level, format, file string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q", level)
	}

	var w io.Writer = out
	switch strings.ToLower(format) {
	case "console":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "", "auto":
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		}
	case "json":
	default:
		return zerolog.Nop(), nil, fmt.Errorf("invalid log format %q", format)
	}

	var closer io.Closer
	if file != "" {
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = zerolog.MultiLevelWriter(w, lj)
		closer = lj
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), closer, nil
}

// httpLogLevel maps a process log level to the HTTP layer's per-request level.
func httpLogLevel(level string) string {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return "debug"
	case "warn", "error", "fatal", "panic":
		return "error"
	case "disabled":
		return "off"
	default:
		return "info"
	}
}
