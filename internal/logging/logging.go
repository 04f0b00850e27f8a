// Package logging builds the application logger: logrus with a text
// formatter, written to stderr and to a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger.
type Options struct {
	// File is the log file. Empty logs to stderr only.
	File string

	// Level is debug, info, warn or error.
	Level string

	// Verbose forces the debug level.
	Verbose bool

	MaxSizeMB  int
	MaxBackups int

	// Stderr replaces os.Stderr, for tests.
	Stderr io.Writer
}

// New returns the logger and a closer for its file.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	if opts.File == "" {
		logger.SetOutput(stderr)
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(stderr, file))

	return logger, file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
