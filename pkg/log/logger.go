// Leveled logging for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package log provides the leveled, prefixed logging used by the drive
// daemon and the capture tools. Each component holds its own prefixed
// logger; output goes to stderr in colored text by default, or to a
// rotating file sink in plain text or JSON.
//
// The control loop itself logs only on state transitions (calibration
// done, trips, mode rejections), never per tick.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (lv Level) String() string {
	switch lv {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ParseLevel maps a config string to a Level. Unknown strings fall back
// to LevelInfo so a typo in a config file cannot silence the log.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	}
	return LevelInfo
}

// Format selects the wire form of emitted records.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Fields carries structured key/value context on a record.
type Fields map[string]interface{}

var levelColors = [...]string{
	LevelDebug: "\x1b[36m",
	LevelInfo:  "\x1b[32m",
	LevelWarn:  "\x1b[33m",
	LevelError: "\x1b[31m",
}

const colorReset = "\x1b[0m"

// Logger emits records for one component. Safe for concurrent use.
type Logger struct {
	mu     sync.Mutex
	prefix string
	w      io.Writer
	level  Level
	format Format
	color  bool
}

// New returns a stderr text logger for the named component. Colors are on
// unless NO_COLOR is set.
func New(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		w:      os.Stderr,
		level:  LevelInfo,
		format: FormatText,
		color:  os.Getenv("NO_COLOR") == "",
	}
}

// SetLevel sets the minimum severity that is emitted.
func (l *Logger) SetLevel(lv Level) {
	l.mu.Lock()
	l.level = lv
	l.mu.Unlock()
}

// Level returns the current minimum severity.
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetWriter redirects output, e.g. to a rotating file sink or io.Discard
// in tests.
func (l *Logger) SetWriter(w io.Writer) {
	l.mu.Lock()
	l.w = w
	l.mu.Unlock()
}

// SetFormat switches between text and JSON records.
func (l *Logger) SetFormat(f Format) {
	l.mu.Lock()
	l.format = f
	l.mu.Unlock()
}

// SetColorize enables or disables ANSI colors in text output.
func (l *Logger) SetColorize(on bool) {
	l.mu.Lock()
	l.color = on
	l.mu.Unlock()
}

// WithPrefix returns a logger for a subcomponent sharing this logger's
// writer and settings at the time of the call.
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		prefix: prefix,
		w:      l.w,
		level:  l.level,
		format: l.format,
		color:  l.color,
	}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.emit(LevelDebug, format, args, nil)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.emit(LevelInfo, format, args, nil)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit(LevelWarn, format, args, nil)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.emit(LevelError, format, args, nil)
}

// Errorf is an alias for Error kept for call sites that read better with
// the f suffix.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.emit(LevelError, format, args, nil)
}

// WithField starts a structured record with one field attached.
func (l *Logger) WithField(key string, value interface{}) *Entry {
	return &Entry{l: l, fields: Fields{key: value}}
}

// WithFields starts a structured record with the given fields attached.
func (l *Logger) WithFields(f Fields) *Entry {
	fields := make(Fields, len(f))
	for k, v := range f {
		fields[k] = v
	}
	return &Entry{l: l, fields: fields}
}

// Entry is a record under construction with structured fields.
type Entry struct {
	l      *Logger
	fields Fields
}

// WithField adds one more field and returns the entry for chaining.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	e.fields[key] = value
	return e
}

func (e *Entry) Debug(format string, args ...interface{}) {
	e.l.emit(LevelDebug, format, args, e.fields)
}

func (e *Entry) Info(format string, args ...interface{}) {
	e.l.emit(LevelInfo, format, args, e.fields)
}

func (e *Entry) Warn(format string, args ...interface{}) {
	e.l.emit(LevelWarn, format, args, e.fields)
}

func (e *Entry) Error(format string, args ...interface{}) {
	e.l.emit(LevelError, format, args, e.fields)
}

type jsonRecord struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Logger  string `json:"logger"`
	Message string `json:"message"`
	Fields  Fields `json:"fields,omitempty"`
}

func (l *Logger) emit(lv Level, format string, args []interface{}, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lv < l.level {
		return
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	if l.format == FormatJSON {
		rec := jsonRecord{
			Time:    time.Now().Format(time.RFC3339Nano),
			Level:   lv.String(),
			Logger:  l.prefix,
			Message: msg,
			Fields:  fields,
		}
		b, err := json.Marshal(rec)
		if err != nil {
			fmt.Fprintf(l.w, `{"level":"ERROR","message":"marshal log record: %v"}`+"\n", err)
			return
		}
		l.w.Write(append(b, '\n'))
		return
	}

	var sb strings.Builder
	sb.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	fmt.Fprintf(&sb, " [%-5s] ", lv)
	if l.color {
		sb.WriteString(levelColors[lv])
	}
	sb.WriteString(l.prefix)
	if l.color {
		sb.WriteString(colorReset)
	}
	sb.WriteString(": ")
	sb.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, fields[k])
		}
		sb.WriteString("}")
	}
	sb.WriteByte('\n')
	io.WriteString(l.w, sb.String())
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// Default returns the process-wide logger, creating it on first use.
func Default() *Logger {
	defaultOnce.Do(func() {
		if defaultLog == nil {
			defaultLog = New("rcdriver")
		}
	})
	return defaultLog
}

// SetDefault installs the process-wide logger. Call before the first use
// of the package-level helpers.
func SetDefault(l *Logger) {
	defaultLog = l
}

// FromEnv applies RCDRIVER_LOG_LEVEL (debug/info/warn/error) and
// RCDRIVER_LOG_FORMAT (text/json) to the logger.
func FromEnv(l *Logger) {
	if s := os.Getenv("RCDRIVER_LOG_LEVEL"); s != "" {
		l.SetLevel(ParseLevel(s))
	}
	switch strings.ToLower(os.Getenv("RCDRIVER_LOG_FORMAT")) {
	case "json":
		l.SetFormat(FormatJSON)
	case "text":
		l.SetFormat(FormatText)
	}
}

func Debug(format string, args ...interface{}) { Default().Debug(format, args...) }
func Info(format string, args ...interface{})  { Default().Info(format, args...) }
func Warn(format string, args ...interface{})  { Default().Warn(format, args...) }
func Error(format string, args ...interface{}) { Default().Error(format, args...) }
