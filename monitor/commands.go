package monitor

import (
	"strings"
	"time"

	"github.com/gavinwade12/canLogger/protocols/slcan"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrInvalidConfig is returned when a configuration record fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// MinPeriod is the shortest period accepted for a periodic transmission.
const MinPeriod = 10 * time.Millisecond

// SavedCommand is a frame the user can send on demand or periodically.
type SavedCommand struct {
	Key      string `mapstructure:"key" yaml:"key" json:"key"`
	Name     string `mapstructure:"name" yaml:"name" json:"name"`
	ID       string `mapstructure:"id" yaml:"id" json:"id"`
	Data     string `mapstructure:"data" yaml:"data" json:"data"`
	PeriodMs int    `mapstructure:"periodMs" yaml:"periodMs" json:"periodMs"`
}

// Line returns the wire line for the command.
func (c SavedCommand) Line() string {
	return slcan.EncodeFrame(c.ID, c.Data)
}

// Period returns the repeat period of the command.
func (c SavedCommand) Period() time.Duration {
	return time.Duration(c.PeriodMs) * time.Millisecond
}

// Normalize validates c and fills in the derived fields: a missing key gets a
// random one, the id and data are upper-cased and stripped of whitespace, and
// the period is raised to MinPeriod.
func (c *SavedCommand) Normalize() error {
	c.ID = strings.ToUpper(slcan.StripSpace(c.ID))
	c.Data = strings.ToUpper(slcan.StripSpace(c.Data))
	if err := validateFrameFields(c.ID, c.Data); err != nil {
		return errors.Wrapf(err, "saved command %q", c.Name)
	}

	if c.Key == "" {
		c.Key = uuid.NewString()
	}
	if c.Period() < MinPeriod {
		c.PeriodMs = int(MinPeriod / time.Millisecond)
	}
	return nil
}

func validateFrameFields(id, data string) error {
	if id == "" || len(id) > slcan.ExtendedIDLength || !slcan.IsHex(id) {
		return errors.Wrapf(ErrInvalidConfig, "id %q must be 1 to %d hex digits", id, slcan.ExtendedIDLength)
	}
	if data != "" && (!slcan.IsHex(data) || len(data)%2 != 0) {
		return errors.Wrapf(ErrInvalidConfig, "data %q must be whole hex bytes", data)
	}
	return nil
}

// Macro modes.
const (
	MacroModeText = "text"
	MacroModeHex  = "hex"
)

// Macro is a short adapter command bound to a button, optionally repeated.
type Macro struct {
	ID             string `mapstructure:"id" yaml:"id" json:"id"`
	Name           string `mapstructure:"name" yaml:"name" json:"name"`
	Command        string `mapstructure:"command" yaml:"command" json:"command"`
	Mode           string `mapstructure:"mode" yaml:"mode" json:"mode"`
	RepeatCount    int    `mapstructure:"repeatCount" yaml:"repeatCount" json:"repeatCount"`
	RepeatPeriodMs int    `mapstructure:"repeatPeriodMs" yaml:"repeatPeriodMs" json:"repeatPeriodMs"`
}

// Line returns the text sent for the macro. Hex macros drop whitespace and
// are upper-cased; text macros go out as typed.
func (m Macro) Line() string {
	if m.Mode == MacroModeHex {
		return strings.ToUpper(slcan.StripSpace(m.Command))
	}
	return m.Command
}

// RepeatPeriod returns the gap between repeated sends.
func (m Macro) RepeatPeriod() time.Duration {
	return time.Duration(m.RepeatPeriodMs) * time.Millisecond
}

// Normalize validates m, gives it an id when it has none and clamps the
// repeat settings to a single immediate send at minimum.
func (m *Macro) Normalize() error {
	if m.Command == "" {
		return errors.Wrapf(ErrInvalidConfig, "macro %q has no command", m.Name)
	}
	switch m.Mode {
	case "":
		m.Mode = MacroModeText
	case MacroModeText:
	case MacroModeHex:
		if !slcan.IsHex(m.Line()) {
			return errors.Wrapf(ErrInvalidConfig, "macro %q: %q is not hex", m.Name, m.Command)
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "macro %q: unknown mode %q", m.Name, m.Mode)
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.RepeatCount < 1 {
		m.RepeatCount = 1
	}
	if m.RepeatPeriodMs < 0 {
		m.RepeatPeriodMs = 0
	}
	return nil
}

// DefaultMacros returns the macro buttons available before any are
// configured.
func DefaultMacros() []Macro {
	return []Macro{
		{ID: "1", Name: "VER", Command: slcan.CommandLineVersion, Mode: MacroModeText, RepeatCount: 1},
		{ID: "2", Name: "STAT", Command: slcan.CommandLineStatus, Mode: MacroModeText, RepeatCount: 1},
		{ID: "3", Name: "FLAG", Command: "W", Mode: MacroModeText, RepeatCount: 1},
		{ID: "4", Name: "HELP", Command: "?", Mode: MacroModeText, RepeatCount: 1},
		{ID: "5", Name: "OPEN", Command: slcan.CommandLineOpen, Mode: MacroModeText, RepeatCount: 1},
		{ID: "6", Name: "CLS", Command: slcan.CommandLineClose, Mode: MacroModeText, RepeatCount: 1},
	}
}
