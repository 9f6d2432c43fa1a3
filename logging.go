package ctypes

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

// Logger writes leveled lines as plain text or as JSON objects.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	plain    *log.Logger
	json     bool
	minLevel int
	fields   map[string]any
}

// NewLogger logs entries at minLevel or more urgent to w.
func NewLogger(w io.Writer, minLevel int, asJSON bool) *Logger {
	return &Logger{
		out:      w,
		plain:    log.New(w, "", log.LstdFlags),
		json:     asJSON,
		minLevel: minLevel,
	}
}

// DiscardLogger drops everything.
func DiscardLogger() *Logger {
	return NewLogger(io.Discard, -1, false)
}

// With returns a logger that adds fields to every JSON entry.
func (l *Logger) With(fields map[string]any) *Logger {
	nl := &Logger{out: l.out, plain: l.plain, json: l.json, minLevel: l.minLevel}
	nl.fields = make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		nl.fields[k] = v
	}
	for k, v := range fields {
		nl.fields[k] = v
	}
	return nl
}

func (l *Logger) Enabled(level int) bool {
	return l != nil && level <= l.minLevel
}

func (l *Logger) Logf(level int, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.json {
		if level <= LOG_ERR {
			msg = "ERROR: " + msg
		}
		l.plain.Println(msg)
		return
	}

	entry := make(map[string]any, len(l.fields)+3)
	for k, v := range l.fields {
		entry[k] = v
	}
	entry["message"] = msg
	entry["timestamp"] = time.Now().Format(time.RFC3339)
	entry["level"] = logLevelToString(level)
	b, err := json.Marshal(entry)
	if err != nil {
		// fall back to plain text
		l.plain.Println(msg)
		return
	}
	b = append(b, '\n')
	_, _ = l.out.Write(b)
}

func (l *Logger) Debugf(format string, args ...any) { l.Logf(LOG_DEBUG, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.Logf(LOG_INFO, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.Logf(LOG_WARNING, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.Logf(LOG_ERR, format, args...) }

// logLevelToString converts log level number to string name
func logLevelToString(level int) string {
	switch level {
	case LOG_EMERG:
		return "emerg"
	case LOG_ALERT:
		return "alert"
	case LOG_CRIT:
		return "crit"
	case LOG_ERR:
		return "error"
	case LOG_WARNING:
		return "warn"
	case LOG_NOTICE:
		return "notice"
	case LOG_INFO:
		return "info"
	case LOG_DEBUG:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLogLevel accepts a level name or its RFC 5424 number.
func ParseLogLevel(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l := LOG_EMERG; l <= LOG_DEBUG; l++ {
		if s == logLevelToString(l) || s == fmt.Sprint(l) {
			return l, nil
		}
	}
	switch s {
	case "warning":
		return LOG_WARNING, nil
	case "err":
		return LOG_ERR, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
