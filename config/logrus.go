package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrick/logrotate/rotator"
	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
	rot  *rotator.Rotator
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logLevelFromEnv())
	logg.SetOutput(os.Stdout)

	if logFile := strings.TrimSpace(os.Getenv("LOG_FILE")); logFile != "" {
		if err := initLogRotator(logFile); err != nil {
			logg.WithField("log_file", logFile).Error("failed to open log file, logging to stdout only: " + err.Error())
		}
	}
}

// initLogRotator tees the logger into a size-rotated file (10 MiB, 3 files kept).
func initLogRotator(logFile string) error {
	if dir := filepath.Dir(logFile); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return err
	}
	rot = r
	logg.SetOutput(io.MultiWriter(os.Stdout, rot))
	return nil
}

// CloseLogRotator flushes the rotated log file on shutdown.
func CloseLogRotator() {
	if rot != nil {
		rot.Close()
	}
}

func logLevelFromEnv() logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if err != nil {
		return logrus.ErrorLevel
	}
	return lvl
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	if logger == nil || err == nil {
		return
	}
	if data != nil {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
			"data":     data,
		}).Error(err.Error())
	} else {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
		}).Error(err.Error())
	}
}
