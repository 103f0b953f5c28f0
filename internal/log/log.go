// Copyright (c) 2022 Netskope, Inc. All rights reserved.

package log

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls where and how verbosely the tool logs.
type Options struct {
	Dir    string // log directory, default /tmp
	Name   string // file name without extension, default binary name
	Debug  bool
	Stdout bool // log to stdout instead of a file
}

// NewLogger returns a logger using the Zap structured logger and a func that
// flushes it and closes the log file.
// If Stdout is false, a file-based logger appending to <Dir>/<Name>.log is used.
func NewLogger(opts Options) (*zap.Logger, func() error, error) {
	if opts.Stdout {
		logger := newLogger(os.Stdout, opts.Debug)
		// Sync on a terminal fails with EINVAL on some platforms.
		return logger, func() error { _ = logger.Sync(); return nil }, nil
	}

	file, err := openLogFile(opts.Dir, opts.Name)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(file, opts.Debug)
	return logger, func() error {
		_ = logger.Sync()
		return file.Close()
	}, nil
}

func newLogger(w io.Writer, debug bool) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.EpochTimeEncoder
	cfg.LevelKey = "lv"
	cfg.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(l.CapitalString()[:2])
	}

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
		cfg.CallerKey = "call"
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(w), level)
	if debug {
		return zap.New(core, zap.AddCaller())
	}
	return zap.New(core)
}

// LogFilePath returns the file a non-stdout logger writes to.
func LogFilePath(dir, name string) string {
	if dir == "" {
		dir = "/tmp"
	}
	if name == "" {
		name = filepath.Base(os.Args[0])
	}
	return filepath.Join(dir, name+".log")
}

func openLogFile(dir, name string) (*os.File, error) {
	path := LogFilePath(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
