package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/gavinwade12/canLogger/protocols/slcan"
	"github.com/pkg/errors"
)

var errUnplugged = errors.New("unplugged")

// testTransport records every line sent and fails the lines in fail.
type testTransport struct {
	mu    sync.Mutex
	lines []string
	times []time.Time
	fail  map[string]bool
}

func newTestTransport(fail ...string) *testTransport {
	t := &testTransport{fail: make(map[string]bool)}
	for _, f := range fail {
		t.fail[f] = true
	}
	return t
}

func (t *testTransport) Send(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail[line] {
		return errUnplugged
	}
	t.lines = append(t.lines, line)
	t.times = append(t.times, time.Now())
	return nil
}

func (t *testTransport) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

func (t *testTransport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

func (t *testTransport) Times() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]time.Time, len(t.times))
	copy(out, t.times)
	return out
}

func mustParse(line string) slcan.Frame {
	f, err := slcan.ParseLine(line)
	if err != nil {
		panic(err)
	}
	return f
}

var fixedTime = time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }
