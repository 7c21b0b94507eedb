package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// New builds the application logger. It writes to stdout and, when file is
// non-empty, also appends to file. The returned close func releases the file.
// An unparsable level falls back to info and is reported as a warning on the logger.
func New(level, file string) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	logger.SetOutput(os.Stdout)

	closeFn := func() error { return nil }
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log directory for '%s': %w", file, err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file '%s': %w", file, err)
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, f))
		closeFn = f.Close
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
		logger.Warnf("Invalid log level '%s', using default 'info'. Error: %v", level, err)
	} else {
		logger.SetLevel(parsed)
	}
	return logger, closeFn, nil
}
