package monitor

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gavinwade12/canLogger/protocols/slcan"
)

// History capacity bounds.
const (
	MinHistoryCapacity     = 500
	MaxHistoryCapacity     = 2000
	DefaultHistoryCapacity = MinHistoryCapacity
)

// LoggingState reports whether decoded frames should be logged. The log reads
// it and never changes it.
type LoggingState interface {
	Active() bool
	Paused() bool
}

// LoggingFlags is a LoggingState safe for concurrent use.
type LoggingFlags struct {
	active atomic.Bool
	paused atomic.Bool
}

// Active reports whether logging is switched on.
func (f *LoggingFlags) Active() bool { return f.active.Load() }

// Paused reports whether logging is temporarily suspended.
func (f *LoggingFlags) Paused() bool { return f.paused.Load() }

// SetActive turns logging on or off.
func (f *LoggingFlags) SetActive(v bool) { f.active.Store(v) }

// SetPaused pauses or resumes an active log.
func (f *LoggingFlags) SetPaused(v bool) { f.paused.Store(v) }

// FormatLogEntry renders f as "{id} {data}". A frame without data is logged
// as its id alone.
func FormatLogEntry(f slcan.Frame) string {
	if len(f.Data) == 0 {
		return f.ID
	}
	return f.ID + " " + f.FormattedData()
}

// HistoryLog is a fixed capacity ring of formatted frames, oldest evicted
// first.
type HistoryLog struct {
	state LoggingState

	mu      sync.RWMutex
	entries []string
	start   int
	size    int
}

// NewHistoryLog returns a log holding capacity entries, clamped into
// [MinHistoryCapacity, MaxHistoryCapacity].
func NewHistoryLog(capacity int, state LoggingState) *HistoryLog {
	return &HistoryLog{
		state:   state,
		entries: make([]string, clampCapacity(capacity)),
	}
}

func clampCapacity(n int) int {
	switch {
	case n < MinHistoryCapacity:
		return MinHistoryCapacity
	case n > MaxHistoryCapacity:
		return MaxHistoryCapacity
	}
	return n
}

// Capacity returns the maximum number of entries kept.
func (h *HistoryLog) Capacity() int {
	return len(h.entries)
}

// Append logs f if logging is active and not paused. It reports whether the
// entry was recorded.
func (h *HistoryLog) Append(f slcan.Frame) bool {
	if h.state == nil || !h.state.Active() || h.state.Paused() {
		return false
	}

	h.mu.Lock()
	h.push(FormatLogEntry(f))
	h.mu.Unlock()
	return true
}

// push expects h.mu to be held.
func (h *HistoryLog) push(entry string) {
	c := len(h.entries)
	if h.size < c {
		h.entries[(h.start+h.size)%c] = entry
		h.size++
		return
	}
	h.entries[h.start] = entry
	h.start = (h.start + 1) % c
}

// Clear empties the log.
func (h *HistoryLog) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clear()
}

func (h *HistoryLog) clear() {
	for i := range h.entries {
		h.entries[i] = ""
	}
	h.start, h.size = 0, 0
}

// ImportReplace overwrites the log with lines, ignoring blank ones. When
// there are more lines than the capacity, the last ones are kept. It returns
// the number of entries held afterwards.
func (h *HistoryLog) ImportReplace(lines []string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clear()
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		h.push(l)
	}
	return h.size
}

// Export returns the entries oldest first.
func (h *HistoryLog) Export() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.entries[(h.start+i)%len(h.entries)]
	}
	return out
}

// Len returns the number of entries held.
func (h *HistoryLog) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}
