package slcan

import (
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// FakeAdapter is an io.ReadWriteCloser that behaves like an SLCAN adapter
// attached to a busy bus without being connected to real hardware. Every
// latency tick it produces a frame with random data for one of its ids and
// hands it out in randomly sized pieces, so readers see the same unaligned
// chunks a serial link delivers. Written lines are recorded and acknowledged.
type FakeAdapter struct {
	latency time.Duration
	ids     []string
	ticker  *time.Ticker
	done    chan struct{}

	mu      sync.Mutex
	pending string
	written []string
	partial string
	closed  bool
	rnd     *rand.Rand
}

// NewFakeAdapter returns a fake adapter producing a frame per latency tick for
// the given ids. Without ids it produces frames for 100, 200 and 18FEF100.
func NewFakeAdapter(latency time.Duration, ids ...string) *FakeAdapter {
	if len(ids) == 0 {
		ids = []string{"100", "200", "18FEF100"}
	}
	return &FakeAdapter{
		latency: latency,
		ids:     ids,
		ticker:  time.NewTicker(latency),
		done:    make(chan struct{}),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Read waits for the next tick when nothing is pending and then returns part
// of the pending text.
func (a *FakeAdapter) Read(b []byte) (int, error) {
	a.mu.Lock()
	for a.pending == "" {
		if a.closed {
			a.mu.Unlock()
			return 0, io.EOF
		}
		a.mu.Unlock()
		select {
		case <-a.done:
			return 0, io.EOF
		case <-a.ticker.C:
		}
		a.mu.Lock()
		a.pending += a.randomFrame() + string(Delimiter)
	}
	defer a.mu.Unlock()

	n := 1 + a.rnd.Intn(len(a.pending))
	if n > len(b) {
		n = len(b)
	}
	copy(b, a.pending[:n])
	a.pending = a.pending[n:]
	return n, nil
}

// Write records every complete line and queues the adapter's acknowledgement:
// 'z' for a standard frame, 'Z' for an extended one, an empty line otherwise.
func (a *FakeAdapter) Write(b []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, io.ErrClosedPipe
	}

	a.partial += string(b)
	for {
		i := strings.IndexByte(a.partial, Delimiter)
		if i < 0 {
			break
		}
		line := a.partial[:i]
		a.partial = a.partial[i+1:]
		a.written = append(a.written, line)

		switch {
		case strings.HasPrefix(line, string(MarkerStandardData)):
			a.pending += "z" + string(Delimiter)
		case strings.HasPrefix(line, string(MarkerExtendedData)):
			a.pending += "Z" + string(Delimiter)
		default:
			a.pending += string(Delimiter)
		}
	}
	return len(b), nil
}

// Written returns the lines written so far, without delimiters.
func (a *FakeAdapter) Written() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.written))
	copy(out, a.written)
	return out
}

// Inject queues raw text to be returned by Read ahead of generated frames.
func (a *FakeAdapter) Inject(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending += text
}

// Close stops the adapter. Pending reads return io.EOF.
func (a *FakeAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.ticker.Stop()
	close(a.done)
	return nil
}

func (a *FakeAdapter) randomFrame() string {
	id := a.ids[a.rnd.Intn(len(a.ids))]
	data := make([]byte, a.rnd.Intn(9))
	a.rnd.Read(data)
	return EncodeFrame(id, FormatData(data))
}
