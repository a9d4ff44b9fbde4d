package monitor

import (
	"fmt"
	"sync"
	"time"
)

// DefaultConsoleCapacity is how many console lines are kept by default.
const DefaultConsoleCapacity = 50

// Console keeps the most recent adapter traffic that isn't a decoded frame:
// opaque lines received and every line transmitted.
type Console struct {
	capacity int
	now      func() time.Time

	mu    sync.RWMutex
	lines []string
}

// NewConsole returns a console keeping capacity lines. Non-positive capacities
// use DefaultConsoleCapacity.
func NewConsole(capacity int, now func() time.Time) *Console {
	if capacity <= 0 {
		capacity = DefaultConsoleCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &Console{capacity: capacity, now: now}
}

// Received records a line that came from the adapter.
func (c *Console) Received(text string) {
	c.add("RX ←", text)
}

// Sent records a line written to the adapter.
func (c *Console) Sent(text string) {
	c.add("TX →", text)
}

// Failed records a line that could not be sent.
func (c *Console) Failed(text string) {
	c.add("TX →", "ERR: "+text)
}

func (c *Console) add(dir, text string) {
	line := fmt.Sprintf("[%s] %s %s", c.now().Format("15:04:05"), dir, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	if over := len(c.lines) - c.capacity; over > 0 {
		c.lines = append(c.lines[:0], c.lines[over:]...)
	}
}

// Lines returns the console oldest first.
func (c *Console) Lines() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Clear empties the console.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}
