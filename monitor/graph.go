package monitor

import (
	"strings"
	"sync"

	"github.com/gavinwade12/canLogger/protocols/slcan"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultGraphSamples is how many samples are kept per graph.
const DefaultGraphSamples = 60

// GraphSeries plots a bit field of one identifier's data.
type GraphSeries struct {
	ID          string  `mapstructure:"id" yaml:"id" json:"id"`
	SourceCanID string  `mapstructure:"canId" yaml:"canId" json:"canId"`
	BitOffset   int     `mapstructure:"bitOffset" yaml:"bitOffset" json:"bitOffset"`
	BitLength   int     `mapstructure:"bitLength" yaml:"bitLength" json:"bitLength"`
	MinVal      float64 `mapstructure:"minVal" yaml:"minVal" json:"minVal"`
	MaxVal      float64 `mapstructure:"maxVal" yaml:"maxVal" json:"maxVal"`
	Label       string  `mapstructure:"label" yaml:"label" json:"label"`
}

// Normalize validates g, pads its source id to match decoded frames and
// assigns an id when missing.
func (g *GraphSeries) Normalize() error {
	g.SourceCanID = strings.ToUpper(slcan.StripSpace(g.SourceCanID))
	if err := validateFrameFields(g.SourceCanID, ""); err != nil {
		return errors.Wrapf(err, "graph %q", g.Label)
	}
	g.SourceCanID = padID(g.SourceCanID)

	if g.BitOffset < 0 || g.BitLength < 1 || g.BitLength > 64 {
		return errors.Wrapf(ErrInvalidConfig, "graph %q: bit field %d+%d", g.Label, g.BitOffset, g.BitLength)
	}
	if g.MaxVal < g.MinVal {
		g.MinVal, g.MaxVal = g.MaxVal, g.MinVal
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// Sample extracts the series' field from the latest cached frame of its
// source id. It reports false when the id hasn't been seen.
func (g GraphSeries) Sample(c *MessageCache) (uint64, bool) {
	m, ok := c.Get(g.SourceCanID)
	if !ok {
		return 0, false
	}
	return slcan.ExtractBits(m.Data, g.BitOffset, g.BitLength), true
}

// Scale maps v onto 0..1 between MinVal and MaxVal. Values outside the range
// are clamped. An empty range is treated as a range of 1.
func (g GraphSeries) Scale(v uint64) float64 {
	span := g.MaxVal - g.MinVal
	if span == 0 {
		span = 1
	}
	f := (float64(v) - g.MinVal) / span
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// SeriesHistory keeps the most recent samples of each graph.
type SeriesHistory struct {
	capacity int

	mu      sync.RWMutex
	samples map[string][]uint64
}

// NewSeriesHistory keeps the last capacity samples of every series.
func NewSeriesHistory(capacity int) *SeriesHistory {
	if capacity <= 0 {
		capacity = DefaultGraphSamples
	}
	return &SeriesHistory{capacity: capacity, samples: make(map[string][]uint64)}
}

// Record appends v to the samples of id, dropping the oldest past capacity.
func (h *SeriesHistory) Record(id string, v uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := append(h.samples[id], v)
	if over := len(s) - h.capacity; over > 0 {
		s = append(s[:0], s[over:]...)
	}
	h.samples[id] = s
}

// Samples returns the samples of id oldest first.
func (h *SeriesHistory) Samples(id string) []uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]uint64, len(h.samples[id]))
	copy(out, h.samples[id])
	return out
}

// Reset drops every sample.
func (h *SeriesHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = make(map[string][]uint64)
}
