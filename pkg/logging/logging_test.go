package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogBuffer_GetRecent_Wraps(t *testing.T) {
	buf := NewLogBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		buf.Add(Entry{Message: msg})
	}

	got := buf.GetRecent(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	want := []string{"b", "c", "d"}
	for i, w := range want {
		if got[i].Message != w {
			t.Errorf("entry[%d] = %q, want %q", i, got[i].Message, w)
		}
	}

	last := buf.GetRecent(1)
	if len(last) != 1 || last[0].Message != "d" {
		t.Errorf("expected most recent entry 'd', got %v", last)
	}
}

func TestBufferHandler_RecordsAttrs(t *testing.T) {
	buf := NewLogBuffer(10)
	logger := slog.New(NewBufferHandler(buf, nil)).With("component", "host")

	logger.Warn("dispatch failed", "type", "GET_CONFIG")

	entries := buf.GetRecent(10)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != "WARN" {
		t.Errorf("expected WARN, got %s", e.Level)
	}
	if e.Attrs["component"] != "host" {
		t.Errorf("expected component attr, got %v", e.Attrs["component"])
	}
	if e.Attrs["type"] != "GET_CONFIG" {
		t.Errorf("expected type attr, got %v", e.Attrs["type"])
	}
}

func TestBufferHandler_LevelFilter(t *testing.T) {
	buf := NewLogBuffer(10)
	logger := slog.New(NewBufferHandler(buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("ignored")
	logger.Error("kept")

	entries := buf.GetRecent(10)
	if len(entries) != 1 || entries[0].Message != "kept" {
		t.Errorf("expected only the error entry, got %v", entries)
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "host.log")

	logger, closer, err := New(Options{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("host started", "pid", 42)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "host started") {
		t.Errorf("expected message in log file, got %q", string(data))
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "chatty"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
