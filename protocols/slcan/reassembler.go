package slcan

import "strings"

// Limits applied to the reassembly buffer. Once the partial line left after
// splitting passes ReassemblyCeiling bytes it's cut down to its last
// ReassemblyKeep bytes.
const (
	ReassemblyCeiling int = 8192
	ReassemblyKeep    int = 2048
)

// Reassembler turns arbitrarily chunked text into complete delimiter
// terminated lines. It isn't safe for concurrent use.
type Reassembler struct {
	buf      string
	overruns int
}

// Feed appends chunk to the buffer and returns every complete line, trimmed,
// in arrival order. Empty lines are dropped. The trailing partial line is kept
// for the next call.
func (r *Reassembler) Feed(chunk string) []string {
	r.buf += chunk

	var lines []string
	if strings.IndexByte(r.buf, Delimiter) >= 0 {
		parts := strings.Split(r.buf, string(Delimiter))
		r.buf = parts[len(parts)-1]

		lines = make([]string, 0, len(parts)-1)
		for _, p := range parts[:len(parts)-1] {
			if p = strings.TrimSpace(p); p != "" {
				lines = append(lines, p)
			}
		}
	}

	if len(r.buf) > ReassemblyCeiling {
		r.buf = r.buf[len(r.buf)-ReassemblyKeep:]
		r.overruns++
	}
	return lines
}

// Overruns returns how many times the buffer was truncated.
func (r *Reassembler) Overruns() int {
	return r.overruns
}

// Buffered returns the number of bytes waiting for a delimiter.
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}

// Reset drops any partial line.
func (r *Reassembler) Reset() {
	r.buf = ""
}
