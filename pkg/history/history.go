// Package history keeps the short-lived record of recent successful scans.
// The log is in-memory only and lost at session end.
package history

import (
	"sync"
	"time"

	"stationcodes/pkg/index"
)

// Limit is the maximum number of retained entries.
const Limit = 10

// Entry is one successful camera-driven scan.
type Entry struct {
	Location  string         `json:"location"`
	Area      index.AreaType `json:"-"`
	Timestamp string         `json:"timestamp"`
}

// Log is a bounded, newest-first scan history. A location appears at most
// once; re-scanning moves it to the front.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func NewLog() *Log {
	return &Log{now: time.Now}
}

// Record prepends a scan for location, dropping any previous entry for the
// same location and truncating to Limit.
func (l *Log) Record(location string, area index.AreaType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := make([]Entry, 0, len(l.entries)+1)
	kept = append(kept, Entry{
		Location:  location,
		Area:      area,
		Timestamp: l.now().Format("15:04:05"),
	})
	for _, e := range l.entries {
		if e.Location == location {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) > Limit {
		kept = kept[:Limit]
	}
	l.entries = kept
}

// List returns the entries newest first.
func (l *Log) List() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
