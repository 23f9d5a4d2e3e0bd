package main

import (
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bamsammich/dirsync/internal/ui"
)

// newLogger builds the run logger: a text handler on stderr whose level
// follows --verbose/--quiet, plus a JSON handler on a rotated file when
// logFile is set. The returned func closes the file.
func newLogger(verbose, quiet bool, logFile string) (*slog.Logger, func()) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	} else if !quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	if logFile == "" {
		return slog.New(textHandler), func() {}
	}

	lf := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
	}
	jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	closeLog := func() { _ = lf.Close() }
	return slog.New(ui.NewMultiHandler(textHandler, jsonHandler)), closeLog
}
