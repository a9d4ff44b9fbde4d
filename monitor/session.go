// Package monitor ties the SLCAN decoder to the state a bus monitor keeps
// while connected: the latest value per identifier, a bounded history of
// frames, a console of adapter traffic, and the rules and timers that send
// frames back onto the bus.
package monitor

import (
	"context"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gavinwade12/canLogger/protocols/slcan"
	"github.com/pkg/errors"
)

var (
	// ErrSessionClosed is returned for sends on a session that isn't open.
	ErrSessionClosed = errors.New("session closed")

	// ErrUnknownCommand is returned when a saved command, macro or graph
	// isn't configured.
	ErrUnknownCommand = errors.New("unknown command")
)

// maxConsecutiveReadErrors is how many reads in a row may fail before Run
// gives up on the transport.
const maxConsecutiveReadErrors = 3

// Transport sends a line to the adapter, appending the delimiter.
type Transport interface {
	Send(ctx context.Context, line string) error
}

// ChunkReader delivers raw text from the adapter.
type ChunkReader interface {
	NextChunk(ctx context.Context) (string, error)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l slcan.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics sets the counters updated by the session.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithObserver registers f to be called with the cache entry of every decoded
// frame. It runs on the decode path, so it must not block.
func WithObserver(f func(CachedMessage)) Option {
	return func(s *Session) { s.observer = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is the state of one connection to an adapter. Chunks from the
// adapter are handled one at a time in arrival order; snapshots and sends can
// be used from any goroutine.
type Session struct {
	transport Transport
	cfg       Config
	logger    slcan.Logger
	metrics   *Metrics
	now       func() time.Time
	observer  func(CachedMessage)

	open    atomic.Bool
	busOpen atomic.Bool

	// mu serializes the decode pipeline.
	mu          sync.Mutex
	reassembler slcan.Reassembler
	overruns    int

	flags     LoggingFlags
	cache     *MessageCache
	history   *HistoryLog
	console   *Console
	rules     *RuleEngine
	scheduler *Scheduler
	samples   *SeriesHistory

	cfgMu    sync.RWMutex
	commands map[string]SavedCommand
	macros   map[string]Macro
	graphs   []GraphSeries
}

// NewSession returns a closed session sending through t. cfg is expected to
// be normalized already.
func NewSession(t Transport, cfg Config, opts ...Option) (*Session, error) {
	s := &Session{
		transport: t,
		cfg:       cfg,
		logger:    slcan.NopLogger,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slcan.NopLogger
	}
	if s.metrics == nil {
		m, err := NewMetrics(nil)
		if err != nil {
			return nil, err
		}
		s.metrics = m
	}

	s.cache = NewMessageCache()
	s.history = NewHistoryLog(cfg.HistoryCapacity, &s.flags)
	s.console = NewConsole(cfg.ConsoleCapacity, s.now)
	s.rules = NewRuleEngine(s.Send, s.logger, s.metrics)
	s.scheduler = NewScheduler(s.Send, s.logger)
	s.scheduler.onChange = func(n int) { s.metrics.periodicTransmits.Set(float64(n)) }
	s.samples = NewSeriesHistory(cfg.GraphSamples)

	s.rules.SetRules(cfg.Rules)
	s.SetSavedCommands(cfg.Commands)
	s.SetMacros(cfg.Macros)
	s.SetGraphs(cfg.Graphs)
	return s, nil
}

// Open makes the session live. Logging starts active.
func (s *Session) Open() {
	s.scheduler.Resume()
	if s.open.Swap(true) {
		return
	}
	s.flags.SetActive(true)
	s.flags.SetPaused(false)
	s.logger.Infof("session opened")
}

// Close stops every timer, then clears the cache, history, console and
// buffered input. No frame is sent by the session after Close returns.
// Closing a closed session does nothing.
func (s *Session) Close() {
	if !s.open.Swap(false) {
		return
	}
	s.scheduler.StopAll()

	s.mu.Lock()
	s.reassembler.Reset()
	s.cache.Reset()
	s.history.Clear()
	s.mu.Unlock()

	s.console.Clear()
	s.samples.Reset()
	s.busOpen.Store(false)
	s.metrics.cachedIdentifiers.Set(0)
	s.logger.Infof("session closed")
}

// IsOpen reports whether the session is live.
func (s *Session) IsOpen() bool {
	return s.open.Load()
}

// Metrics returns the session's counters.
func (s *Session) Metrics() *Metrics {
	return s.metrics
}

// Config returns the configuration the session was created with.
func (s *Session) Config() Config {
	return s.cfg
}

// HandleChunk feeds raw adapter text through the decoder. Each complete
// frame updates the cache and history and is run through the rules before
// the next line is looked at. Chunks given to a closed session are dropped.
func (s *Session) HandleChunk(ctx context.Context, chunk string) {
	if !s.IsOpen() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.reassembler.Feed(chunk)
	if n := s.reassembler.Overruns(); n != s.overruns {
		s.metrics.bufferOverruns.Add(float64(n - s.overruns))
		s.logger.Warnf("reassembly buffer overrun, %d total", n)
		s.overruns = n
	}

	for _, line := range lines {
		s.handleLine(ctx, line)
	}
}

// handleLine expects s.mu to be held.
func (s *Session) handleLine(ctx context.Context, line string) {
	if len(line) < 4 {
		s.metrics.linesUnrecognized.Inc()
		s.console.Received(line)
		return
	}

	f, err := slcan.ParseLine(line)
	switch {
	case errors.Is(err, slcan.ErrUnrecognizedLine):
		s.metrics.linesUnrecognized.Inc()
		s.console.Received(line)
		return
	case err != nil:
		s.metrics.framesMalformed.Inc()
		s.logger.Debugf("dropping line: %v", err)
		return
	}

	s.metrics.framesDecoded.Inc()
	m := s.cache.Upsert(f, s.now())
	s.metrics.cachedIdentifiers.Set(float64(s.cache.Len()))
	s.history.Append(f)
	s.rules.Evaluate(ctx, f, f.FormattedData())

	if s.observer != nil {
		s.observer(m)
	}
}

// Run reads chunks from r and handles them until ctx is done or r fails. It
// returns nil when ctx ends the loop.
func (s *Session) Run(ctx context.Context, r ChunkReader) error {
	errCount := 0
	for {
		chunk, err := r.NextChunk(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, slcan.ErrPortClosed) {
				return err
			}

			errCount++
			s.logger.Warnf("reading from adapter: %v", err)
			if errCount == maxConsecutiveReadErrors {
				return errors.Wrapf(err, "%d consecutive read errors", errCount)
			}
			continue
		}
		errCount = 0

		s.HandleChunk(ctx, chunk)
	}
}

// Send writes line to the adapter and records it in the console. A failure
// is recorded in the console and counted as well as returned.
func (s *Session) Send(ctx context.Context, line string) error {
	if !s.IsOpen() {
		return ErrSessionClosed
	}

	if err := s.transport.Send(ctx, line); err != nil {
		s.metrics.transmitFailures.Inc()
		s.console.Failed(line)
		return errors.Wrapf(err, "sending %q", line)
	}
	s.metrics.transmits.Inc()
	s.console.Sent(line)

	switch cmd := slcan.ParseCommand(line); cmd.Type {
	case slcan.CommandOpen:
		s.busOpen.Store(true)
	case slcan.CommandClose:
		s.busOpen.Store(false)
	case slcan.CommandFrame:
	default:
		s.logger.Debugf("sent %s command %q", cmd.Type, cmd.Raw)
	}
	return nil
}

// Transmit sends a data frame built from id and hex data.
func (s *Session) Transmit(ctx context.Context, id, dataHex string) error {
	return s.Send(ctx, slcan.EncodeFrame(id, dataHex))
}

// OpenBus sets the bus speed in kbit/s and puts the adapter on the bus.
func (s *Session) OpenBus(ctx context.Context, kbit int) error {
	if err := slcan.OpenBus(ctx, s.Send, kbit); err != nil {
		return err
	}
	s.logger.Infof("bus open at %d kbit/s", kbit)
	return nil
}

// CloseBus takes the adapter off the bus.
func (s *Session) CloseBus(ctx context.Context) error {
	if err := slcan.CloseBus(ctx, s.Send); err != nil {
		return err
	}
	s.logger.Infof("bus closed")
	return nil
}

// BusOpen reports whether the last open or close command sent put the
// adapter on the bus.
func (s *Session) BusOpen() bool {
	return s.busOpen.Load()
}

// SetLogging switches the history log on or off.
func (s *Session) SetLogging(active bool) {
	s.flags.SetActive(active)
}

// SetPaused suspends or resumes the history log. Frames seen while paused are
// never logged.
func (s *Session) SetPaused(paused bool) {
	s.flags.SetPaused(paused)
}

// LoggingState returns the history log's flags.
func (s *Session) LoggingState() LoggingState {
	return &s.flags
}

// Messages returns the cache ordered by id.
func (s *Session) Messages() []CachedMessage {
	return s.cache.Snapshot()
}

// Message returns the cached entry for id.
func (s *Session) Message(id string) (CachedMessage, bool) {
	return s.cache.Get(id)
}

// History returns the logged frames oldest first.
func (s *Session) History() []string {
	return s.history.Export()
}

// ClearHistory empties the history log.
func (s *Session) ClearHistory() {
	s.history.Clear()
}

// ImportHistory replaces the log with lines and returns how many were kept.
func (s *Session) ImportHistory(lines []string) int {
	return s.history.ImportReplace(lines)
}

// ConsoleLines returns the console oldest first.
func (s *Session) ConsoleLines() []string {
	return s.console.Lines()
}

// ClearConsole empties the console.
func (s *Session) ClearConsole() {
	s.console.Clear()
}

// Overruns returns the number of reassembly buffer truncations.
func (s *Session) Overruns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overruns
}

// SetRules replaces the rule set. Rules are expected to be normalized.
func (s *Session) SetRules(rules []Rule) {
	s.rules.SetRules(rules)
}

// Rules returns the configured rules.
func (s *Session) Rules() []Rule {
	return s.rules.Rules()
}

// SetSavedCommands replaces the saved commands. Running periodic
// transmissions are left alone.
func (s *Session) SetSavedCommands(cmds []SavedCommand) {
	m := make(map[string]SavedCommand, len(cmds))
	for _, c := range cmds {
		m[c.Key] = c
	}
	s.cfgMu.Lock()
	s.commands = m
	s.cfgMu.Unlock()
}

// SavedCommand returns the saved command under key.
func (s *Session) SavedCommand(key string) (SavedCommand, bool) {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	c, ok := s.commands[key]
	return c, ok
}

// SavedCommands returns the saved commands ordered by key.
func (s *Session) SavedCommands() []SavedCommand {
	s.cfgMu.RLock()
	out := make([]SavedCommand, 0, len(s.commands))
	for _, c := range s.commands {
		out = append(out, c)
	}
	s.cfgMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// TogglePeriodic starts the saved command under key when it isn't running and
// stops it when it is. It returns whether the command runs afterwards.
func (s *Session) TogglePeriodic(key string) (bool, error) {
	if !s.IsOpen() {
		return false, ErrSessionClosed
	}
	c, ok := s.SavedCommand(key)
	if !ok {
		return false, errors.Wrapf(ErrUnknownCommand, "saved command %q", key)
	}

	if s.scheduler.Stop(key) {
		return false, nil
	}
	if !s.scheduler.Start(key, c.Line(), c.Period()) && !s.scheduler.Active(key) {
		return false, ErrSessionClosed
	}
	return true, nil
}

// StartPeriodic starts the saved command under key. Starting a running
// command changes nothing.
func (s *Session) StartPeriodic(key string) error {
	if !s.IsOpen() {
		return ErrSessionClosed
	}
	c, ok := s.SavedCommand(key)
	if !ok {
		return errors.Wrapf(ErrUnknownCommand, "saved command %q", key)
	}
	if !s.scheduler.Start(key, c.Line(), c.Period()) && !s.scheduler.Active(key) {
		return ErrSessionClosed
	}
	return nil
}

// StopPeriodic stops the saved command under key and reports whether it was
// running.
func (s *Session) StopPeriodic(key string) bool {
	return s.scheduler.Stop(key)
}

// ActiveKeys returns the keys of the running periodic transmissions, sorted.
func (s *Session) ActiveKeys() []string {
	return s.scheduler.ActiveKeys()
}

// SetMacros replaces the macro buttons.
func (s *Session) SetMacros(macros []Macro) {
	m := make(map[string]Macro, len(macros))
	for _, mc := range macros {
		m[mc.ID] = mc
	}
	s.cfgMu.Lock()
	s.macros = m
	s.cfgMu.Unlock()
}

// Macros returns the macro buttons ordered by id.
func (s *Session) Macros() []Macro {
	s.cfgMu.RLock()
	out := make([]Macro, 0, len(s.macros))
	for _, m := range s.macros {
		out = append(out, m)
	}
	s.cfgMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PressMacro runs the macro with the given id. The returned handle cancels
// the remaining repeats, and is empty when the macro sends only once.
func (s *Session) PressMacro(id string) (string, error) {
	if !s.IsOpen() {
		return "", ErrSessionClosed
	}
	s.cfgMu.RLock()
	m, ok := s.macros[id]
	s.cfgMu.RUnlock()
	if !ok {
		return "", errors.Wrapf(ErrUnknownCommand, "macro %q", id)
	}

	s.metrics.macroRuns.Inc()
	return s.RunMacro(m.Line(), m.RepeatCount, m.RepeatPeriod()), nil
}

// RunMacro sends line count times, period apart. See Scheduler.RunMacro.
func (s *Session) RunMacro(line string, count int, period time.Duration) string {
	return s.scheduler.RunMacro(line, count, period)
}

// MacroRunning reports whether the macro behind handle has sends left.
func (s *Session) MacroRunning(handle string) bool {
	return s.scheduler.MacroRunning(handle)
}

// CancelMacro stops the remaining repeats of a macro.
func (s *Session) CancelMacro(handle string) bool {
	return s.scheduler.CancelMacro(handle)
}

// SetGraphs replaces the graph series. Recorded samples are kept.
func (s *Session) SetGraphs(graphs []GraphSeries) {
	cp := make([]GraphSeries, len(graphs))
	copy(cp, graphs)
	s.cfgMu.Lock()
	s.graphs = cp
	s.cfgMu.Unlock()
}

// Graph returns the series with the given id.
func (s *Session) Graph(id string) (GraphSeries, bool) {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	for _, g := range s.graphs {
		if g.ID == id {
			return g, true
		}
	}
	return GraphSeries{}, false
}

// SampleGraphs takes a sample of every series whose source id is cached and
// returns the values by series id.
func (s *Session) SampleGraphs() map[string]uint64 {
	s.cfgMu.RLock()
	graphs := s.graphs
	s.cfgMu.RUnlock()

	out := make(map[string]uint64, len(graphs))
	for _, g := range graphs {
		v, ok := g.Sample(s.cache)
		if !ok {
			continue
		}
		s.samples.Record(g.ID, v)
		out[g.ID] = v
	}
	return out
}

// Graphs returns the configured graph series.
func (s *Session) Graphs() []GraphSeries {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	out := make([]GraphSeries, len(s.graphs))
	copy(out, s.graphs)
	return out
}

// GraphSamples returns the recorded samples of a series oldest first.
func (s *Session) GraphSamples(id string) []uint64 {
	return s.samples.Samples(id)
}
