package ctypes

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_PlainLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LOG_WARNING, false)
	l.Debugf("debug line")
	l.Warnf("warn %d", 1)
	l.Errorf("broke")
	out := buf.String()
	if strings.Contains(out, "debug line") {
		t.Errorf("debug line written at warn level: %q", out)
	}
	if !strings.Contains(out, "warn 1") {
		t.Errorf("warn line missing: %q", out)
	}
	if !strings.Contains(out, "ERROR: broke") {
		t.Errorf("error prefix missing: %q", out)
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LOG_DEBUG, true).With(map[string]any{"binding": 3})
	l.Infof("hello %s", "there")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("not JSON: %q: %v", buf.String(), err)
	}
	if entry["message"] != "hello there" || entry["level"] != "info" || entry["binding"] != 3.0 {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestDiscardLogger(t *testing.T) {
	l := DiscardLogger()
	if l.Enabled(LOG_EMERG) {
		t.Error("discard logger enabled")
	}
	l.Errorf("nothing")
	var nl *Logger
	if nl.Enabled(LOG_ERR) {
		t.Error("nil logger enabled")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"debug", LOG_DEBUG},
		{"WARN", LOG_WARNING},
		{"warning", LOG_WARNING},
		{"err", LOG_ERR},
		{"error", LOG_ERR},
		{" info ", LOG_INFO},
		{"0", LOG_EMERG},
		{"7", LOG_DEBUG},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %d, %v, want %d", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("ParseLogLevel(verbose) succeeded")
	}
}
