package util

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogLevel represents logging severity levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// Logger provides leveled logging. Output goes to stderr so that stdout
// carries nothing but the report.
type Logger struct {
	mu       sync.Mutex
	level    LogLevel
	logger   *log.Logger
	out      io.Writer
	file     *os.File
	filePath string
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the default logger instance.
func GetLogger() *Logger {
	once.Do(func() {
		defaultLogger = NewLogger(LevelInfo, "")
	})
	return defaultLogger
}

// NewLogger creates a new logger with the specified level and optional file path.
func NewLogger(level LogLevel, filePath string) *Logger {
	return newLogger(level, filePath, os.Stderr)
}

// NewWriterLogger creates a logger that writes only to w.
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	return newLogger(level, "", w)
}

func newLogger(level LogLevel, filePath string, out io.Writer) *Logger {
	l := &Logger{
		level: level,
		out:   out,
	}

	file, err := openLogFile(filePath)
	if err == nil {
		l.file = file
		l.filePath = filePath
	}
	l.logger = log.New(l.writer(), "", 0)

	return l
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func (l *Logger) writer() io.Writer {
	if l.file == nil {
		return l.out
	}
	return io.MultiWriter(l.out, l.file)
}

// SetFile switches the log file to path. An empty path stops file logging.
// On error the current file stays in use.
func (l *Logger) SetFile(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if path == l.filePath {
		return nil
	}

	file, err := openLogFile(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	if l.file != nil {
		l.file.Close()
	}
	l.file = file
	l.filePath = path
	l.logger.SetOutput(l.writer())
	return nil
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// ParseLevel parses a string log level.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Close closes the log file if open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)

	l.logger.Printf("[%s] %s: %s", timestamp, levelNames[level], msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Debug logs a debug message using the default logger.
func Debug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// Info logs an info message using the default logger.
func Info(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// InitLogger initializes the default logger with config. Later calls apply
// the level and switch the log file when it changed.
func InitLogger(level string, filePath string) {
	initialized := false
	once.Do(func() {
		defaultLogger = NewLogger(ParseLevel(level), filePath)
		initialized = true
	})
	if initialized {
		return
	}
	defaultLogger.SetLevel(ParseLevel(level))
	if err := defaultLogger.SetFile(filePath); err != nil {
		defaultLogger.Warn("Keeping previous log file: %v", err)
	}
}
