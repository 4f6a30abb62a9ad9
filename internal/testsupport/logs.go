package testsupport

import (
	"context"
	"log/slog"
	"sync"
)

// LogRecord is a captured log line with its flattened attributes.
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// LogRecorder is a slog.Handler that keeps every record in memory.
type LogRecorder struct {
	mu      *sync.Mutex
	records *[]LogRecord
	attrs   []slog.Attr
}

// NewLogRecorder returns a recorder and a logger writing into it.
func NewLogRecorder() (*LogRecorder, *slog.Logger) {
	rec := &LogRecorder{mu: &sync.Mutex{}, records: &[]LogRecord{}}
	return rec, slog.New(rec)
}

func (r *LogRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *LogRecorder) Handle(_ context.Context, record slog.Record) error {
	attrs := make(map[string]string, record.NumAttrs()+len(r.attrs))
	for _, attr := range r.attrs {
		attrs[attr.Key] = attr.Value.Resolve().String()
	}
	record.Attrs(func(attr slog.Attr) bool {
		attrs[attr.Key] = attr.Value.Resolve().String()
		return true
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.records = append(*r.records, LogRecord{Level: record.Level, Message: record.Message, Attrs: attrs})
	return nil
}

func (r *LogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogRecorder{mu: r.mu, records: r.records, attrs: append(append([]slog.Attr(nil), r.attrs...), attrs...)}
}

func (r *LogRecorder) WithGroup(string) slog.Handler { return r }

// Records returns a snapshot of the captured records.
func (r *LogRecorder) Records() []LogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LogRecord(nil), (*r.records)...)
}

// Count returns how many records have the given level and message.
func (r *LogRecorder) Count(level slog.Level, message string) int {
	n := 0
	for _, rec := range r.Records() {
		if rec.Level == level && rec.Message == message {
			n++
		}
	}
	return n
}

// Find returns the first record with the given message.
func (r *LogRecorder) Find(message string) (LogRecord, bool) {
	for _, rec := range r.Records() {
		if rec.Message == message {
			return rec, true
		}
	}
	return LogRecord{}, false
}
