package monitor

import (
	"context"
	"strings"
	"sync"

	"github.com/gavinwade12/canLogger/protocols/slcan"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Rule sends a response frame whenever a matching frame is seen on the bus.
type Rule struct {
	ID          string `mapstructure:"id" yaml:"id" json:"id"`
	Name        string `mapstructure:"name" yaml:"name" json:"name"`
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	TriggerID   string `mapstructure:"triggerId" yaml:"triggerId" json:"triggerId"`
	TriggerData string `mapstructure:"triggerData" yaml:"triggerData" json:"triggerData"`
	ActionID    string `mapstructure:"actionId" yaml:"actionId" json:"actionId"`
	ActionData  string `mapstructure:"actionData" yaml:"actionData" json:"actionData"`
}

// Matches reports whether the rule fires for frame f, whose data formats as
// formatted. An empty TriggerData matches any data.
func (r Rule) Matches(f slcan.Frame, formatted string) bool {
	if !r.Enabled || f.ID != r.TriggerID {
		return false
	}
	return r.TriggerData == "" || strings.Contains(formatted, r.TriggerData)
}

// ActionLine returns the wire line sent when the rule fires.
func (r Rule) ActionLine() string {
	return slcan.EncodeFrame(r.ActionID, r.ActionData)
}

// Normalize validates r and brings it into the shape decoded frames use: the
// trigger id is upper-cased and padded the same way EncodeFrame pads ids,
// trigger data is upper-cased, and a missing id is generated.
func (r *Rule) Normalize() error {
	r.TriggerID = strings.ToUpper(slcan.StripSpace(r.TriggerID))
	r.ActionID = strings.ToUpper(slcan.StripSpace(r.ActionID))
	r.ActionData = strings.ToUpper(slcan.StripSpace(r.ActionData))
	r.TriggerData = strings.ToUpper(strings.TrimSpace(r.TriggerData))

	if err := validateFrameFields(r.TriggerID, ""); err != nil {
		return errors.Wrapf(err, "rule %q trigger", r.Name)
	}
	if err := validateFrameFields(r.ActionID, r.ActionData); err != nil {
		return errors.Wrapf(err, "rule %q action", r.Name)
	}
	r.TriggerID = padID(r.TriggerID)

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func padID(id string) string {
	width := slcan.StandardIDLength
	if len(id) > width {
		width = slcan.ExtendedIDLength
	}
	return strings.Repeat("0", width-len(id)) + id
}

// RuleEngine evaluates every decoded frame against the configured rules.
type RuleEngine struct {
	send    slcan.SendFunc
	logger  slcan.Logger
	metrics *Metrics

	mu    sync.RWMutex
	rules []Rule
}

// NewRuleEngine returns an engine sending rule actions through send.
func NewRuleEngine(send slcan.SendFunc, l slcan.Logger, m *Metrics) *RuleEngine {
	if l == nil {
		l = slcan.NopLogger
	}
	return &RuleEngine{send: send, logger: l, metrics: m}
}

// SetRules replaces the rule set.
func (e *RuleEngine) SetRules(rules []Rule) {
	cp := make([]Rule, len(rules))
	copy(cp, rules)

	e.mu.Lock()
	e.rules = cp
	e.mu.Unlock()
}

// Rules returns a copy of the rule set.
func (e *RuleEngine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp := make([]Rule, len(e.rules))
	copy(cp, e.rules)
	return cp
}

// Evaluate runs every rule against f and sends the action of each one that
// matches. A failed send is logged and does not stop the remaining rules. It
// returns the number of rules that fired.
func (e *RuleEngine) Evaluate(ctx context.Context, f slcan.Frame, formatted string) int {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	fired := 0
	for _, r := range rules {
		if !r.Matches(f, formatted) {
			continue
		}
		fired++
		if e.metrics != nil {
			e.metrics.ruleFires.Inc()
		}

		line := r.ActionLine()
		e.logger.Debugf("rule %q matched %s, sending %s", r.Name, f.ID, line)
		if err := e.send(ctx, line); err != nil {
			e.logger.Warnf("rule %q: %v", r.Name, err)
		}
	}
	return fired
}
