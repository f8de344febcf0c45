// Package logger provides leveled logging for the collector.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

type leveledLogger struct {
	level  Level
	logger *log.Logger
}

var std = &leveledLogger{
	level:  InfoLevel,
	logger: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
}

// Init configures the default logger. Format "text" adds the caller's file
// and line to each entry; any other value keeps timestamps only.
func Init(level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	std = &leveledLogger{
		level:  ParseLevel(level),
		logger: log.New(os.Stderr, "", flags),
	}
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	std.logger.SetOutput(w)
}

func (l *leveledLogger) logf(lv Level, tag, format string, args ...any) {
	if l.level > lv {
		return
	}
	_ = l.logger.Output(3, fmt.Sprintf(tag+" "+format, args...))
}

func Debug(format string, args ...any) { std.logf(DebugLevel, "[DEBUG]", format, args...) }
func Info(format string, args ...any)  { std.logf(InfoLevel, "[INFO]", format, args...) }
func Warn(format string, args ...any)  { std.logf(WarnLevel, "[WARN]", format, args...) }
func Error(format string, args ...any) { std.logf(ErrorLevel, "[ERROR]", format, args...) }

// Fatal logs at error level and exits the process.
func Fatal(format string, args ...any) {
	_ = std.logger.Output(2, fmt.Sprintf("[FATAL] "+format, args...))
	os.Exit(1)
}
