// Package logger builds the process logger from configuration.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"batterycode-go/internal/config"
)

// New returns a logger writing to stdout, and additionally to a rotating
// file when cfg.FilePath is set. The returned closer releases the file.
func New(cfg config.LoggerConfig, stdout io.Writer) (*logrus.Logger, io.Closer, error) {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		l, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	log := logrus.New()
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FullTimestamp:   true,
		})
	default:
		return nil, nil, fmt.Errorf("unsupported log format: %s (supported: text, json)", cfg.Format)
	}

	if stdout == nil {
		stdout = os.Stdout
	}
	var closer io.Closer = nopCloser{}
	writers := []io.Writer{stdout}
	if cfg.FilePath != "" {
		rot := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
		}
		writers = append(writers, rot)
		closer = rot
	}
	log.SetOutput(io.MultiWriter(writers...))

	log.WithFields(logrus.Fields{
		"level":  level.String(),
		"format": cfg.Format,
		"file":   cfg.FilePath,
	}).Debug("logger initialised")

	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
