package monitor

import (
	"github.com/gavinwade12/canLogger/protocols/slcan"
	"github.com/pkg/errors"
)

// DefaultBusSpeed is the bus speed in kbit/s used when none is configured.
const DefaultBusSpeed = 250

// Config holds the session settings read from the configuration file.
type Config struct {
	BusSpeed        int `mapstructure:"speed"`
	HistoryCapacity int `mapstructure:"historyCapacity"`
	ConsoleCapacity int `mapstructure:"consoleCapacity"`
	GraphSamples    int `mapstructure:"graphSamples"`

	Rules    []Rule         `mapstructure:"rules"`
	Commands []SavedCommand `mapstructure:"tx"`
	Macros   []Macro        `mapstructure:"macros"`
	Graphs   []GraphSeries  `mapstructure:"graphs"`
}

// DefaultConfig returns a Config with the default sizes and macros.
func DefaultConfig() Config {
	return Config{
		BusSpeed:        DefaultBusSpeed,
		HistoryCapacity: DefaultHistoryCapacity,
		ConsoleCapacity: DefaultConsoleCapacity,
		GraphSamples:    DefaultGraphSamples,
		Macros:          DefaultMacros(),
	}
}

// Normalize fills in defaults and validates every record. The first invalid
// record is returned as the error.
func (c *Config) Normalize() error {
	if c.BusSpeed == 0 {
		c.BusSpeed = DefaultBusSpeed
	}
	if _, err := slcan.BitrateCommand(c.BusSpeed); err != nil {
		return errors.Wrap(err, "bus speed")
	}
	c.HistoryCapacity = clampCapacity(c.HistoryCapacity)
	if c.ConsoleCapacity <= 0 {
		c.ConsoleCapacity = DefaultConsoleCapacity
	}
	if c.GraphSamples <= 0 {
		c.GraphSamples = DefaultGraphSamples
	}
	if c.Macros == nil {
		c.Macros = DefaultMacros()
	}

	for i := range c.Rules {
		if err := c.Rules[i].Normalize(); err != nil {
			return err
		}
	}
	for i := range c.Commands {
		if err := c.Commands[i].Normalize(); err != nil {
			return err
		}
	}
	for i := range c.Macros {
		if err := c.Macros[i].Normalize(); err != nil {
			return err
		}
	}
	for i := range c.Graphs {
		if err := c.Graphs[i].Normalize(); err != nil {
			return err
		}
	}
	return nil
}
