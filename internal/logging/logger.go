// Package logging provides the leveled, structured logger shared by the
// interceptor's components.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"
)

// Level is a logging severity. Off suppresses everything.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	Off
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Off:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a configuration string to a Level. The empty string
// selects Info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug, nil
	case "info", "":
		return Info, nil
	case "warn", "warning":
		return Warn, nil
	case "error":
		return Error, nil
	case "off":
		return Off, nil
	default:
		return Level(0), fmt.Errorf("unsupported log level %q", s)
	}
}

// Format controls how entries are rendered.
type Format int

const (
	Text Format = iota
	JSON
)

// ParseFormat converts a configuration string to a Format. The empty string
// selects Text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return Text, nil
	case "json":
		return JSON, nil
	default:
		return Format(0), fmt.Errorf("unsupported log format %q", s)
	}
}

// Field is one structured key/value pair attached to an entry.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for building a Field.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Logger is the leveled structured logging surface. With returns a child
// logger whose fields are prepended to every entry.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Nop returns a logger that discards everything.
func Nop() Logger { return &sink{level: Off, out: log.New(io.Discard, "", 0)} }

type sink struct {
	level  Level
	format Format
	fields []Field
	out    *log.Logger
}

// New constructs a Logger writing to out at the given level and format.
func New(level Level, format Format, out io.Writer) Logger {
	return &sink{
		level:  level,
		format: format,
		out:    log.New(out, "", log.LstdFlags),
	}
}

func (s *sink) With(fields ...Field) Logger {
	child := *s
	child.fields = make([]Field, 0, len(s.fields)+len(fields))
	child.fields = append(child.fields, s.fields...)
	child.fields = append(child.fields, fields...)
	return &child
}

func (s *sink) Debug(msg string, fields ...Field) { s.emit(Debug, msg, fields) }
func (s *sink) Info(msg string, fields ...Field)  { s.emit(Info, msg, fields) }
func (s *sink) Warn(msg string, fields ...Field)  { s.emit(Warn, msg, fields) }
func (s *sink) Error(msg string, fields ...Field) { s.emit(Error, msg, fields) }

func (s *sink) emit(level Level, msg string, fields []Field) {
	if level < s.level || s.level == Off {
		return
	}
	if len(s.fields) > 0 {
		fields = append(append([]Field{}, s.fields...), fields...)
	}
	if s.format == JSON {
		s.emitJSON(level, msg, fields)
		return
	}
	s.emitText(level, msg, fields)
}

func (s *sink) emitText(level Level, msg string, fields []Field) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	for _, f := range fields {
		if f.Key == "" {
			continue
		}
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	s.out.Print(b.String())
}

func (s *sink) emitJSON(level Level, msg string, fields []Field) {
	payload := map[string]any{
		"time":  time.Now().Format(time.RFC3339Nano),
		"level": level.String(),
		"msg":   msg,
	}
	for _, f := range fields {
		if f.Key == "" {
			continue
		}
		payload[f.Key] = f.Value
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.out.Printf("[ERROR] marshal log payload: %v", err)
		return
	}
	s.out.Print(string(data))
}
