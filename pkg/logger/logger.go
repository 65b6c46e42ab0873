package logger

import (
	"io"
	"os"

	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is usable before Init; it writes JSON to stdout until a log file is configured.
var Log = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Init writes logs to a rotating file, mirrored to stdout when echo is set.
func Init(logFilePath string, echo bool) {
	var writer io.Writer = &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10, // MB
		MaxBackups: 3,
		Compress:   true,
	}
	if echo {
		writer = io.MultiWriter(os.Stdout, writer)
	}
	Log = slog.New(slog.NewJSONHandler(writer, nil))
	slog.SetDefault(Log)
}

// Discard silences logging, used by tests.
func Discard() {
	Log = slog.New(slog.NewJSONHandler(io.Discard, nil))
}
