package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger provides leveled logging for every component of a run.
// A single instance is created in main and handed to each constructor.
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	debug *log.Logger

	debugEnabled bool
	now          func() time.Time
}

// NewLogger creates a Logger writing INFO/WARN/DEBUG to stdout and ERROR to stderr.
func NewLogger(debug bool) *Logger {
	return NewLoggerTo(os.Stdout, os.Stderr, debug)
}

// NewLoggerTo creates a Logger with explicit writers.
func NewLoggerTo(out, errOut io.Writer, debug bool) *Logger {
	return &Logger{
		info:         log.New(out, "", 0),
		warn:         log.New(out, "", 0),
		err:          log.New(errOut, "", 0),
		debug:        log.New(out, "", 0),
		debugEnabled: debug,
		now:          time.Now,
	}
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *Logger {
	return NewLoggerTo(io.Discard, io.Discard, false)
}

func (l *Logger) timestamp() string {
	return l.now().Format("2006-01-02 15:04:05")
}

func (l *Logger) Info(format string, args ...any) {
	l.info.Printf(fmt.Sprintf("[%s] \033[32mINFO\033[0m  %s\n", l.timestamp(), format), args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.warn.Printf(fmt.Sprintf("[%s] \033[33mWARN\033[0m  %s\n", l.timestamp(), format), args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.err.Printf(fmt.Sprintf("[%s] \033[31mERROR\033[0m %s\n", l.timestamp(), format), args...)
}

func (l *Logger) Debug(format string, args ...any) {
	if !l.debugEnabled {
		return
	}
	l.debug.Printf(fmt.Sprintf("[%s] \033[36mDEBUG\033[0m %s\n", l.timestamp(), format), args...)
}

// DebugEnabled reports whether Debug output is written.
func (l *Logger) DebugEnabled() bool {
	return l.debugEnabled
}
