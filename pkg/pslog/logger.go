// Package pslog provides the leveled, prefix-forking Logger used across
// proxystore-go: the Store, the endpoint daemon, the peer fabric, and the
// relay server all fork a child logger off their parent rather than
// constructing their own from scratch.
package pslog

import (
	"fmt"
	"log"
	"os"
	"strings"

	termutil "github.com/andrew-d/go-termutil"
)

// LogLevel specifies the verbosity of a Logger.
type LogLevel int

const (
	LogLevelUnknown LogLevel = iota
	LogLevelPanic
	LogLevelFatal
	LogLevelError
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

var logLevelNames = [...]string{
	"unknown", "panic", "fatal", "error", "warning", "info", "debug", "trace",
}

var logLevelColors = [...]string{
	"", "35", "31", "31", "33", "36", "90", "90",
}

var nameToLogLevel = func() map[string]LogLevel {
	m := make(map[string]LogLevel, len(logLevelNames))
	for i, name := range logLevelNames {
		m[name] = LogLevel(i)
	}
	return m
}()

// StringToLogLevel converts a case-insensitive level name to a LogLevel,
// returning LogLevelUnknown if the name is not recognized.
func StringToLogLevel(s string) LogLevel {
	lvl, ok := nameToLogLevel[strings.ToLower(s)]
	if !ok {
		return LogLevelUnknown
	}
	return lvl
}

func (l LogLevel) String() string {
	if l < LogLevelUnknown || l > LogLevelTrace {
		return logLevelNames[LogLevelUnknown]
	}
	return logLevelNames[l]
}

// Logger is a leveled logging component that can fork a child logger with
// an extra prefix segment, the way every long-lived proxystore component
// (Store, Endpoint, peer Manager, relay Server) derives its own logger from
// its parent's.
type Logger interface {
	// Log emits args if logLevel is enabled.
	Log(logLevel LogLevel, args ...interface{})
	// Logf emits a formatted message if logLevel is enabled.
	Logf(logLevel LogLevel, f string, args ...interface{})

	ELogf(f string, args ...interface{})
	WLogf(f string, args ...interface{})
	ILogf(f string, args ...interface{})
	DLogf(f string, args ...interface{})
	TLogf(f string, args ...interface{})

	// PanicOnError logs and panics if err is non-nil; it is a no-op otherwise.
	PanicOnError(err error)

	// Errorf returns an error whose message carries this Logger's prefix,
	// without emitting a log line.
	Errorf(f string, args ...interface{}) error

	// Prefix returns the accumulated prefix for this logger.
	Prefix() string

	// Fork returns a new Logger with an additional prefix segment appended.
	Fork(prefix string, args ...interface{}) Logger

	GetLogLevel() LogLevel
	SetLogLevel(level LogLevel)
}

type basicLogger struct {
	prefix   string
	logLevel LogLevel
	out      *log.Logger
	color    bool
}

const defaultLogFlags = log.Ldate | log.Ltime | log.Lmicroseconds

// New creates a root Logger writing to os.Stderr at the given level.
// Color output is only used when stderr is attached to a terminal,
// mirroring the teacher's TTY-aware prefix coloring.
func New(prefix string, level LogLevel) Logger {
	return &basicLogger{
		prefix:   prefix,
		logLevel: level,
		out:      log.New(os.Stderr, "", defaultLogFlags),
		color:    termutil.Isatty(os.Stderr.Fd()),
	}
}

func (l *basicLogger) Prefix() string { return l.prefix }

func (l *basicLogger) GetLogLevel() LogLevel      { return l.logLevel }
func (l *basicLogger) SetLogLevel(level LogLevel) { l.logLevel = level }

func (l *basicLogger) levelTag(level LogLevel) string {
	name := strings.ToUpper(level.String())
	if !l.color {
		return name
	}
	code := logLevelColors[LogLevelUnknown]
	if level >= LogLevelUnknown && level <= LogLevelTrace {
		code = logLevelColors[level]
	}
	if code == "" {
		return name
	}
	return "\x1b[" + code + "m" + name + "\x1b[0m"
}

func (l *basicLogger) Log(level LogLevel, args ...interface{}) {
	if level > l.logLevel {
		return
	}
	msg := fmt.Sprint(args...)
	l.emit(level, msg)
}

func (l *basicLogger) Logf(level LogLevel, f string, args ...interface{}) {
	if level > l.logLevel {
		return
	}
	l.emit(level, fmt.Sprintf(f, args...))
}

func (l *basicLogger) emit(level LogLevel, msg string) {
	if l.prefix != "" {
		msg = l.prefix + ": " + msg
	}
	l.out.Printf("[%s] %s", l.levelTag(level), msg)
}

func (l *basicLogger) ELogf(f string, args ...interface{}) { l.Logf(LogLevelError, f, args...) }
func (l *basicLogger) WLogf(f string, args ...interface{}) { l.Logf(LogLevelWarning, f, args...) }
func (l *basicLogger) ILogf(f string, args ...interface{}) { l.Logf(LogLevelInfo, f, args...) }
func (l *basicLogger) DLogf(f string, args ...interface{}) { l.Logf(LogLevelDebug, f, args...) }
func (l *basicLogger) TLogf(f string, args ...interface{}) { l.Logf(LogLevelTrace, f, args...) }

func (l *basicLogger) PanicOnError(err error) {
	if err == nil {
		return
	}
	l.Logf(LogLevelPanic, "fatal: %s", err)
	panic(err)
}

func (l *basicLogger) Errorf(f string, args ...interface{}) error {
	msg := fmt.Sprintf(f, args...)
	if l.prefix != "" {
		msg = l.prefix + ": " + msg
	}
	return fmt.Errorf("%s", msg)
}

func (l *basicLogger) Fork(prefix string, args ...interface{}) Logger {
	seg := fmt.Sprintf(prefix, args...)
	newPrefix := seg
	if l.prefix != "" {
		newPrefix = l.prefix + "/" + seg
	}
	return &basicLogger{
		prefix:   newPrefix,
		logLevel: l.logLevel,
		out:      l.out,
		color:    l.color,
	}
}

// Nop returns a Logger that discards everything below Panic.
func Nop() Logger {
	return New("", LogLevelPanic)
}
