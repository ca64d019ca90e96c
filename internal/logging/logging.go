// Package logging configures logrus for the service and provides the
// gin request logging middleware.
package logging

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the global logrus logger. With toFile set, logs go
// to a size-rotated file under logDir instead of stderr.
func Setup(debug bool, toFile bool, logDir string) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	if !toFile {
		return
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.WithError(err).Warn("failed to create log directory, logging to stderr")
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "missionctl.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotated))
}
