package monitor

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus counters for a session.
type Metrics struct {
	registry *prometheus.Registry

	framesDecoded     prometheus.Counter
	framesMalformed   prometheus.Counter
	linesUnrecognized prometheus.Counter
	bufferOverruns    prometheus.Counter
	transmits         prometheus.Counter
	transmitFailures  prometheus.Counter
	ruleFires         prometheus.Counter
	macroRuns         prometheus.Counter
	periodicTransmits prometheus.Gauge
	cachedIdentifiers prometheus.Gauge
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "canlogger",
		Name:      name,
		Help:      help,
	})
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "canlogger",
		Name:      name,
		Help:      help,
	})
}

// NewMetrics creates the counters and registers them with reg. A nil reg gets
// a private registry, so several sessions can live in one process.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry:          reg,
		framesDecoded:     newCounter("frames_decoded_total", "Total number of frames decoded from the stream"),
		framesMalformed:   newCounter("frames_malformed_total", "Total number of lines with a frame marker that failed to decode"),
		linesUnrecognized: newCounter("lines_unrecognized_total", "Total number of lines passed through as console text"),
		bufferOverruns:    newCounter("buffer_overruns_total", "Total number of reassembly buffer truncations"),
		transmits:         newCounter("transmits_total", "Total number of lines written to the adapter"),
		transmitFailures:  newCounter("transmit_failures_total", "Total number of failed writes to the adapter"),
		ruleFires:         newCounter("rule_fires_total", "Total number of rule actions fired"),
		macroRuns:         newCounter("macro_runs_total", "Total number of macro presses"),
		periodicTransmits: newGauge("periodic_transmits_active", "Number of periodic transmissions currently running"),
		cachedIdentifiers: newGauge("cached_identifiers", "Number of identifiers in the message cache"),
	}

	for _, c := range []prometheus.Collector{
		m.framesDecoded,
		m.framesMalformed,
		m.linesUnrecognized,
		m.bufferOverruns,
		m.transmits,
		m.transmitFailures,
		m.ruleFires,
		m.macroRuns,
		m.periodicTransmits,
		m.cachedIdentifiers,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering session metrics")
		}
	}
	return m, nil
}

// Registry returns the registry the counters live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
