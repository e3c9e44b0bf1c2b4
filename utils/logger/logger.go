// Package logger provides the leveled, colorized console logging used
// across sonora: flat Info/Warn/Error calls taking a single argument,
// routed through colorstring so level tags stand out on a terminal.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mitchellh/colorstring"
)

// Level identifies a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelTags = map[Level]string{
	LevelDebug: "[blue]DEBUG[reset]",
	LevelInfo:  "[green]INFO[reset]",
	LevelWarn:  "[yellow]WARN[reset]",
	LevelError: "[red]ERROR[reset]",
}

// Logger writes colorized, leveled lines to an output stream. The zero
// value is not usable; construct with New or use the package-level
// default logger.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
	min Level
}

// New creates a Logger writing to out. Messages below min are dropped.
func New(out io.Writer, min Level) *Logger {
	return &Logger{out: out, min: min}
}

var std = New(os.Stdout, LevelDebug)

// SetOutput redirects the package-level default logger.
func SetOutput(w io.Writer) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.out = w
}

// SetLevel changes the minimum level the default logger emits.
func SetLevel(l Level) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.min = l
}

func (l *Logger) log(level Level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.min {
		return
	}

	ts := time.Now().Format("15:04:05")
	line := colorstring.Color(fmt.Sprintf("[dim]%s[reset] %s %s\n", ts, levelTags[level], msg))
	io.WriteString(l.out, line)
}

func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg) }
func (l *Logger) Info(msg string)  { l.log(LevelInfo, msg) }
func (l *Logger) Warn(msg string)  { l.log(LevelWarn, msg) }

// Error logs err at error level. A nil err is a no-op, so callers can
// write logger.Error(err) directly against a function's err return.
func (l *Logger) Error(err error) {
	if err == nil {
		return
	}
	l.log(LevelError, err.Error())
}

// Package-level helpers delegate to std for flat logger.Info /
// logger.Error call sites.

func Debug(msg string) { std.Debug(msg) }
func Info(msg string)  { std.Info(msg) }
func Warn(msg string)  { std.Warn(msg) }
func Error(err error)  { std.Error(err) }
