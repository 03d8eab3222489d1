package logging

import (
	"sync"
	"time"
)

// LogEntry represents a single buffered log line along with the time it was written.
type LogEntry struct {
	Timestamp time.Time
	Message   string
}

// LogBufferWriter is an io.Writer which retains the most recent log lines in a fixed-size ring. The CLI attaches
// one so it can echo recent history when a campaign aborts before console logging is configured.
type LogBufferWriter struct {
	// lock guards all fields below
	lock sync.Mutex

	// entries is the ring of retained log lines
	entries []LogEntry

	// next is the index in entries that the next write goes to
	next int

	// count is the number of valid entries, capped at len(entries)
	count int
}

// NewLogBufferWriter creates a LogBufferWriter which retains up to capacity entries.
func NewLogBufferWriter(capacity int) *LogBufferWriter {
	if capacity < 1 {
		capacity = 1
	}
	return &LogBufferWriter{entries: make([]LogEntry, capacity)}
}

// Write implements io.Writer. Each call is retained as a single entry, evicting the oldest one when full.
func (w *LogBufferWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.entries[w.next] = LogEntry{Timestamp: time.Now(), Message: string(p)}
	w.next = (w.next + 1) % len(w.entries)
	if w.count < len(w.entries) {
		w.count++
	}
	return len(p), nil
}

// Entries returns up to limit of the most recent entries, oldest first. A non-positive limit returns everything
// retained.
func (w *LogBufferWriter) Entries(limit int) []LogEntry {
	w.lock.Lock()
	defer w.lock.Unlock()

	n := w.count
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]LogEntry, n)
	start := w.next - n
	if start < 0 {
		start += len(w.entries)
	}
	for i := 0; i < n; i++ {
		result[i] = w.entries[(start+i)%len(w.entries)]
	}
	return result
}

// Len returns the number of retained entries.
func (w *LogBufferWriter) Len() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.count
}

// Reset discards every retained entry.
func (w *LogBufferWriter) Reset() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.next = 0
	w.count = 0
}
