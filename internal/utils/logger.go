package utils

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents an enumeration of log levels
type LogLevel int

const (
	Critical LogLevel = 50
	Fatal    LogLevel = Critical
	Error    LogLevel = 40
	Warning  LogLevel = 30
	Info     LogLevel = 20
	Debug    LogLevel = 10
	NotSet   LogLevel = 0
)

// ParseLogLevel maps a textual level (debug, info, warn, error) to a LogLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warning
	case "error":
		return Error
	case "critical", "fatal":
		return Critical
	default:
		return Info
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch {
	case l <= Debug:
		return zapcore.DebugLevel
	case l <= Info:
		return zapcore.InfoLevel
	case l <= Warning:
		return zapcore.WarnLevel
	case l <= Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.DPanicLevel
	}
}

var (
	defaultLevel  = Info
	defaultFormat = "console"
)

// ConfigureLogging sets the level and encoding used by loggers created afterwards.
func ConfigureLogging(level LogLevel, format string) {
	defaultLevel = level
	if format != "" {
		defaultFormat = format
	}
}

// Logger provides structured logging with a component prefix
type Logger struct {
	prefix string
	level  zap.AtomicLevel
	sugar  *zap.SugaredLogger
}

// NewLogger creates a new logger with a given prefix
func NewLogger(prefix string, logLevel ...LogLevel) *Logger {
	lvl := defaultLevel
	if len(logLevel) > 0 {
		lvl = logLevel[0]
	}
	atom := zap.NewAtomicLevelAt(lvl.zapLevel())

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if defaultFormat == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), atom)
	return &Logger{
		prefix: prefix,
		level:  atom,
		sugar:  zap.New(core).Named(prefix).Sugar(),
	}
}

// NewNopLogger returns a logger that discards everything. Used by tests.
func NewNopLogger() *Logger {
	return &Logger{
		prefix: "nop",
		level:  zap.NewAtomicLevel(),
		sugar:  zap.NewNop().Sugar(),
	}
}

// SetLogLevel sets the logging level
func (l *Logger) SetLogLevel(logLevel LogLevel) {
	l.level.SetLevel(logLevel.zapLevel())
}

// With returns a child logger that always carries the given key/value pairs.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{prefix: l.prefix, level: l.level, sugar: l.sugar.With(keyvals...)}
}

// Info logs an informational message
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.sugar.Infow(msg, keyvals...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.sugar.Errorw(msg, keyvals...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.sugar.Warnw(msg, keyvals...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.sugar.Debugw(msg, keyvals...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
