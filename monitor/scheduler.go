package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gavinwade12/canLogger/protocols/slcan"
	"github.com/google/uuid"
)

type task struct {
	cancel context.CancelFunc
}

// Scheduler runs the timed transmissions: macro repeats, which stop on their
// own after a number of sends, and periodic transmissions, which run until
// stopped by key.
type Scheduler struct {
	send   slcan.SendFunc
	logger slcan.Logger

	mu       sync.Mutex
	macros   map[string]*task
	periodic map[string]*task
	wg       sync.WaitGroup
	// stopped is set by StopAll and refuses new tasks until Resume.
	stopped bool

	// onChange is called with the number of periodic tasks after it changes.
	onChange func(active int)
}

// NewScheduler returns a scheduler sending through send.
func NewScheduler(send slcan.SendFunc, l slcan.Logger) *Scheduler {
	if l == nil {
		l = slcan.NopLogger
	}
	return &Scheduler{
		send:     send,
		logger:   l,
		macros:   make(map[string]*task),
		periodic: make(map[string]*task),
	}
}

// RunMacro sends line right away and, when count > 1 and period > 0, again
// every period until count sends have happened. It returns a handle for
// CancelMacro, or "" when the single send completed the macro. Nothing is
// sent while the scheduler is stopped.
func (s *Scheduler) RunMacro(line string, count int, period time.Duration) string {
	if count <= 1 || period <= 0 {
		if !s.Stopped() {
			s.fire(context.Background(), line)
		}
		return ""
	}

	ctx, cancel := context.WithCancel(context.Background())
	handle := uuid.NewString()
	t := &task{cancel: cancel}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return ""
	}
	s.macros[handle] = t
	s.wg.Add(1)
	s.mu.Unlock()

	s.fire(ctx, line)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, line, period, count-1)

		s.mu.Lock()
		if s.macros[handle] == t {
			delete(s.macros, handle)
		}
		s.mu.Unlock()
		cancel()
	}()
	return handle
}

// MacroRunning reports whether the macro behind handle has sends left.
func (s *Scheduler) MacroRunning(handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.macros[handle]
	return ok
}

// CancelMacro stops a running macro. It reports whether the handle was live.
func (s *Scheduler) CancelMacro(handle string) bool {
	s.mu.Lock()
	t, ok := s.macros[handle]
	delete(s.macros, handle)
	s.mu.Unlock()

	if ok {
		t.cancel()
	}
	return ok
}

// Start sends line and keeps sending it every period under key until Stop is
// called. Starting a key that is already running, or starting anything while
// the scheduler is stopped, changes nothing and returns false.
func (s *Scheduler) Start(key, line string, period time.Duration) bool {
	if period <= 0 {
		period = MinPeriod
	}

	s.mu.Lock()
	if _, ok := s.periodic[key]; ok || s.stopped {
		s.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.periodic[key] = &task{cancel: cancel}
	s.wg.Add(1)
	active := len(s.periodic)
	s.mu.Unlock()
	s.changed(active)

	s.logger.Debugf("starting periodic %s every %s", key, period)
	s.fire(ctx, line)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, line, period, -1)
	}()
	return true
}

// Stop cancels the periodic transmission under key. It reports whether one was
// running.
func (s *Scheduler) Stop(key string) bool {
	s.mu.Lock()
	t, ok := s.periodic[key]
	delete(s.periodic, key)
	active := len(s.periodic)
	s.mu.Unlock()

	if !ok {
		return false
	}
	t.cancel()
	s.changed(active)
	s.logger.Debugf("stopped periodic %s", key)
	return true
}

// Active reports whether a periodic transmission runs under key.
func (s *Scheduler) Active(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.periodic[key]
	return ok
}

// ActiveKeys returns the keys of the running periodic transmissions, sorted.
func (s *Scheduler) ActiveKeys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.periodic))
	for k := range s.periodic {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// StopAll cancels every macro and periodic transmission and waits for their
// goroutines to return. The scheduler then refuses new tasks until Resume, so
// nothing is sent by it once StopAll returns.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	s.stopped = true
	tasks := make([]*task, 0, len(s.macros)+len(s.periodic))
	for _, t := range s.macros {
		tasks = append(tasks, t)
	}
	for _, t := range s.periodic {
		tasks = append(tasks, t)
	}
	s.macros = make(map[string]*task)
	s.periodic = make(map[string]*task)
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	s.wg.Wait()
	s.changed(0)
}

// Resume lets the scheduler accept tasks again after StopAll.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.stopped = false
	s.mu.Unlock()
}

// Stopped reports whether StopAll was called without a Resume since.
func (s *Scheduler) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// loop sends line every period until ctx is done or remaining sends have
// happened. A negative remaining never runs out.
func (s *Scheduler) loop(ctx context.Context, line string, period time.Duration, remaining int) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for remaining != 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.fire(ctx, line)
		if remaining > 0 {
			remaining--
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, line string) {
	if ctx.Err() != nil {
		return
	}
	if err := s.send(ctx, line); err != nil {
		s.logger.Warnf("scheduled send of %s: %v", line, err)
	}
}

func (s *Scheduler) changed(active int) {
	if s.onChange != nil {
		s.onChange(active)
	}
}
