package aura

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// LogEntry is one timestamped line in the diagnostics log.
type LogEntry struct {
	Timestamp time.Time
	Message   string
}

// DiagnosticsLog is an append-only event log surfaced to the presentation
// layer. It grows unbounded in memory; Tail bounds what gets displayed.
type DiagnosticsLog struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewDiagnosticsLog() *DiagnosticsLog {
	return &DiagnosticsLog{}
}

func (l *DiagnosticsLog) Append(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Timestamp: time.Now(), Message: msg})
}

func (l *DiagnosticsLog) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

func (l *DiagnosticsLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Tail returns a copy of the most recent n entries, oldest first.
func (l *DiagnosticsLog) Tail(n int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]LogEntry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Contains reports whether any entry includes the given substring.
// Convenient for the presentation layer's search box and for tests.
func (l *DiagnosticsLog) Contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
