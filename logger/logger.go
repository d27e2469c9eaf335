// Package logger builds the zap logger used by every pipeline stage.
//
// Each run writes to the console and appends to a dated run-log file
// (logs/logfile_2006-01-02.txt) so that several runs on the same day
// share one file, separated by their headers.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fin-nlp/config"
)

// Header describes a run; it is written once at the top of every run.
type Header struct {
	RunID       string
	Program     string
	Source      string
	Destination string
	Tables      []string
}

// New returns a logger writing to stdout and the dated run-log file.
// The returned cleanup func flushes and closes the file.
func New(cfg config.LoggingConfig, now time.Time) (*zap.SugaredLogger, func(), error) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	path := FilePath(cfg.Dir, now)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run log: %w", err)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder(), zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(fileEncoder(), zapcore.AddSync(f), level),
	)
	log := zap.New(core).Sugar()

	cleanup := func() {
		_ = log.Sync()
		_ = f.Close()
	}
	return log, cleanup, nil
}

// NewWriter builds a logger over an arbitrary sink; used by tests and by
// callers that want the run-log format without a file.
func NewWriter(w zapcore.WriteSyncer) *zap.SugaredLogger {
	return zap.New(zapcore.NewCore(fileEncoder(), w, zapcore.DebugLevel)).Sugar()
}

// FilePath returns the run-log file for the given day
func FilePath(dir string, now time.Time) string {
	return filepath.Join(dir, "logfile_"+now.Format("2006-01-02")+".txt")
}

// WriteHeader logs the per-run header block
func WriteHeader(log *zap.SugaredLogger, h Header, start time.Time) {
	log.Infof("********** Starting log: %s", start.Format("2006-01-02 15:04:05"))
	log.Infof("********** Run ID: %s", h.RunID)
	log.Infof("********** Running program: %s", h.Program)
	if h.Source != "" {
		log.Infof("********** Source: %s", h.Source)
	}
	if h.Destination != "" {
		log.Infof("********** Destination: %s", h.Destination)
	}
	if len(h.Tables) > 0 {
		log.Infof("********** Tables: %s", strings.Join(h.Tables, ", "))
	}
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func fileEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.CallerKey = ""
	return zapcore.NewConsoleEncoder(cfg)
}
