package util

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerMu      sync.RWMutex
	defaultLogger = newConsoleLogger(zapcore.InfoLevel, nil)
	logFile       *os.File
)

// ParseLevel parses a string log level.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = nil
	return cfg
}

func newConsoleLogger(level zapcore.Level, file *os.File) *zap.Logger {
	enc := zapcore.NewConsoleEncoder(encoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level),
	}
	if file != nil {
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(file), level))
	}
	return zap.New(zapcore.NewTee(cores...))
}

// InitLogger initializes the default logger with config. filePath may be
// empty to log to stdout only.
func InitLogger(level string, filePath string) {
	var file *os.File
	if filePath != "" {
		if err := EnsureDir(filepath.Dir(filePath)); err == nil {
			f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				file = f
			}
		}
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = file
	defaultLogger = newConsoleLogger(ParseLevel(level), file)
}

// SetLogger replaces the default logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = l
}

// L returns the default logger.
func L() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return defaultLogger
}

// Named returns a sugared logger tagged with a component name.
func Named(component string) *zap.SugaredLogger {
	return L().Named(component).Sugar()
}

// SyncLogger flushes buffered log entries and closes the log file.
func SyncLogger() {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	_ = defaultLogger.Sync()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Debug logs a debug message using the default logger.
func Debug(format string, args ...interface{}) {
	L().Sugar().Debugf(format, args...)
}

// Info logs an info message using the default logger.
func Info(format string, args ...interface{}) {
	L().Sugar().Infof(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	L().Sugar().Warnf(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	L().Sugar().Errorf(format, args...)
}
