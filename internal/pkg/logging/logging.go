package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"adabank/internal/config"
)

var defaultLogger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
})

// Init configures the process-wide logger. The transaction log is never routed
// here; this is diagnostics only.
func Init(cfg *config.Config) {
	var w io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
	}

	opts := log.Options{ReportTimestamp: true}
	if cfg.Logging.Format == "json" {
		opts.Formatter = log.JSONFormatter
	}

	defaultLogger = log.NewWithOptions(w, opts)
	if level, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		defaultLogger.SetLevel(level)
	}
}

// With returns a logger carrying the given key/value context.
func With(keyvals ...interface{}) *log.Logger {
	return defaultLogger.With(keyvals...)
}

func Debug(msg string, keyvals ...interface{}) {
	defaultLogger.Debug(msg, keyvals...)
}

func Info(msg string, keyvals ...interface{}) {
	defaultLogger.Info(msg, keyvals...)
}

func Warn(msg string, keyvals ...interface{}) {
	defaultLogger.Warn(msg, keyvals...)
}

func Error(msg string, keyvals ...interface{}) {
	defaultLogger.Error(msg, keyvals...)
}

func Fatal(msg string, keyvals ...interface{}) {
	defaultLogger.Fatal(msg, keyvals...)
}
