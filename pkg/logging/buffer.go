package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is a captured log record.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
	Attrs   map[string]any
}

// LogBuffer is a fixed-size ring of recent log entries.
type LogBuffer struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewLogBuffer creates a buffer holding up to size entries.
func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = 100
	}
	return &LogBuffer{entries: make([]Entry, size)}
}

// Add appends an entry, evicting the oldest when full.
func (b *LogBuffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// GetRecent returns up to n entries, oldest first.
func (b *LogBuffer) GetRecent(n int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ordered []Entry
	if b.full {
		ordered = append(ordered, b.entries[b.next:]...)
	}
	ordered = append(ordered, b.entries[:b.next]...)
	if n < len(ordered) {
		ordered = ordered[len(ordered)-n:]
	}
	out := make([]Entry, len(ordered))
	copy(out, ordered)
	return out
}

// BufferHandler is a slog.Handler that records into a LogBuffer.
type BufferHandler struct {
	buffer *LogBuffer
	level  slog.Leveler
	attrs  []slog.Attr
}

// NewBufferHandler creates a handler. A nil opts records every level.
func NewBufferHandler(buffer *LogBuffer, opts *slog.HandlerOptions) *BufferHandler {
	h := &BufferHandler{buffer: buffer, level: slog.LevelDebug}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	h.buffer.Add(Entry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
		Attrs:   attrs,
	})
	return nil
}

// WithAttrs implements slog.Handler.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &BufferHandler{buffer: h.buffer, level: h.level, attrs: merged}
}

// WithGroup implements slog.Handler. Groups are flattened.
func (h *BufferHandler) WithGroup(string) slog.Handler {
	return h
}
