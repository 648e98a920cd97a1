// Package logger provides the process-wide leveled logger. It writes
// plain timestamped lines to a log file, the console, or both, and is
// safe to call before Init: messages are dropped until configured.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Level orders log severities from most to least verbose.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "INFO"
	}
}

type sink struct {
	level   Level
	out     *log.Logger
	enabled bool
}

var global *sink

// Init configures the global logger. When logFile is set its parent
// directory is created and lines are appended; console output is added
// when requested or when no file is given.
func Init(enabled bool, levelStr, logFile string, console bool) error {
	if !enabled {
		global = &sink{enabled: false}
		return nil
	}

	var writers []io.Writer
	if logFile != "" {
		if dir := filepath.Dir(logFile); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
	}
	if console || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	global = &sink{
		level:   parseLevel(levelStr),
		out:     log.New(io.MultiWriter(writers...), "", 0),
		enabled: true,
	}
	return nil
}

func parseLevel(levelStr string) Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func logAt(level Level, format string, args ...interface{}) {
	if global == nil || !global.enabled || global.level > level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	global.out.Printf("[%s] [%s] %s", ts, level, fmt.Sprintf(format, args...))
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) { logAt(Debug, format, args...) }

// Infof logs at info level.
func Infof(format string, args ...interface{}) { logAt(Info, format, args...) }

// Warnf logs at warn level.
func Warnf(format string, args ...interface{}) { logAt(Warn, format, args...) }

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) { logAt(Error, format, args...) }
