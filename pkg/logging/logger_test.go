package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	return m
}

func TestContextLogger_CarriesRequestIDAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(LogConfig{Level: LevelDebug, Format: "json"}, &buf)

	ctx := WithRequestID(context.Background(), "req-123")
	l.WithComponent("vision").WithContext(ctx).Info("scan done", Int("items", 4))

	m := decodeLine(t, &buf)
	if m["msg"] != "scan done" {
		t.Errorf("msg = %v", m["msg"])
	}
	if m["request_id"] != "req-123" {
		t.Errorf("request_id = %v", m["request_id"])
	}
	if m["component"] != "vision" {
		t.Errorf("component = %v", m["component"])
	}
	if m["items"] != float64(4) {
		t.Errorf("items = %v", m["items"])
	}
}

func TestLogger_ErrorAddsCaller(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(LogConfig{Level: LevelInfo}, &buf)
	l.Error("upstream failed", errors.New("boom"))

	m := decodeLine(t, &buf)
	if m["error"] != "boom" {
		t.Errorf("error = %v", m["error"])
	}
	caller, _ := m["caller"].(string)
	if !strings.HasPrefix(caller, "logger_test.go:") {
		t.Errorf("caller = %q", caller)
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(LogConfig{Level: LevelWarn}, &buf)
	l.Info("quiet")
	l.Debug("quieter")
	if buf.Len() != 0 {
		t.Errorf("expected nothing below warn, got %q", buf.String())
	}
}

func TestAsyncLogger_FlushesOnClose(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&Logger{config: LogConfig{Level: LevelInfo, EnableAsync: true}}, &buf)
	for i := 0; i < 10; i++ {
		l.Info("line")
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 10 {
		t.Errorf("lines = %d, want 10", got)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": LevelDebug, "WARN": LevelWarn, "warning": LevelWarn,
		"error": LevelError, "": LevelInfo, "nonsense": LevelInfo, "trace": LevelTrace,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestID_Missing(t *testing.T) {
	if RequestID(context.Background()) != "" {
		t.Error("expected empty request id")
	}
}
