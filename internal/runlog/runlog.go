// Package runlog collects the diagnostic trail of a single watch run.
// The log is created per run and threaded explicitly through the pipeline
// and the tender client; nothing accumulates in globals.
package runlog

import (
	"fmt"
	"log"
	"sync"
	"time"
)

type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Entry is one diagnostic line.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

// Log is the diagnostics sink for one run. The pipeline writes from a
// single flow, but the API may read concurrently, hence the mutex.
type Log struct {
	mu      sync.Mutex
	entries []Entry

	// Mirror echoes entries to the process log. Tests turn it off.
	Mirror bool
}

func New() *Log {
	return &Log{Mirror: true}
}

func (l *Log) Infof(format string, args ...any)  { l.add(LevelInfo, format, args...) }
func (l *Log) Warnf(format string, args ...any)  { l.add(LevelWarn, format, args...) }
func (l *Log) Errorf(format string, args ...any) { l.add(LevelError, format, args...) }

func (l *Log) add(level Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	l.entries = append(l.entries, Entry{Time: time.Now(), Level: level, Message: msg})
	mirror := l.Mirror
	l.mu.Unlock()

	if mirror {
		log.Printf("[Watch] %s: %s", level, msg)
	}
}

// Entries returns a copy of the collected diagnostics in order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports how many entries have been recorded.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
