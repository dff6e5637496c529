package locallogger

import (
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// NewHandler returns a slog handler that writes JSON log lines to a
// size-rotated file at the given path. Rotation keeps a small number of
// compressed backups so the agent cannot fill the disk on a chatty day.
func NewHandler(logFilePath string) slog.Handler {
	lj := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAgeDays,
		Compress:   true,
	}

	return slog.NewJSONHandler(lj, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
}
