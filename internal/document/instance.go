package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/rules"
	"github.com/muurk/nodecfg/internal/units"
)

// Reserved instance keys. Everything else is a type-specific parameter.
const (
	FieldType        = "_type"
	FieldNickname    = "nickname"
	FieldDefaultRule = "default_rule"
	FieldSchedule    = "schedule"
	FieldUnits       = "units"
	FieldIP          = "ip"
	FieldPin         = "pin"
	FieldTargets     = "targets"
)

// InstanceConfig is one device or sensor.
type InstanceConfig struct {
	ID          string
	Type        string
	Nickname    string
	DefaultRule rules.Value
	Schedule    map[string]rules.Value
	Params      map[string]any

	// New marks instances added in this session. Not serialized.
	New bool

	// ruleUnits is the last valid unit system, used while the units
	// parameter holds text that does not parse.
	ruleUnits units.Units
}

func newInstance(id string) *InstanceConfig {
	return &InstanceConfig{
		ID:       id,
		Schedule: make(map[string]rules.Value),
		Params:   make(map[string]any),
		New:      true,
	}
}

// Category returns the instance category derived from its id.
func (c *InstanceConfig) Category() catalog.Category {
	cat, _ := catalog.CategoryOf(c.ID)
	return cat
}

// Param returns a parameter rendered as a string. Missing parameters and
// list values render as "".
func (c *InstanceConfig) Param(key string) string {
	switch v := c.Params[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// HasParam reports whether the type declares key.
func (c *InstanceConfig) HasParam(key string) bool {
	_, ok := c.Params[key]
	return ok
}

// Units returns the unit system the instance's rules are expressed in. An
// unparsable units value keeps the last valid system; Celsius is the default.
func (c *InstanceConfig) Units() units.Units {
	if u, ok := units.ParseUnits(c.Param(FieldUnits)); ok {
		return u
	}
	if c.ruleUnits != "" {
		return c.ruleUnits
	}
	return units.Celsius
}

// Targets returns the ids listed in the targets parameter.
func (c *InstanceConfig) Targets() []string {
	switch v := c.Params[FieldTargets].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ScheduleKeys returns the trigger keys in sorted order.
func (c *InstanceConfig) ScheduleKeys() []string {
	keys := make([]string, 0, len(c.Schedule))
	for k := range c.Schedule {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone deep-copies the instance.
func (c *InstanceConfig) Clone() *InstanceConfig {
	out := &InstanceConfig{
		ID:          c.ID,
		Type:        c.Type,
		Nickname:    c.Nickname,
		DefaultRule: c.DefaultRule,
		Schedule:    make(map[string]rules.Value, len(c.Schedule)),
		Params:      make(map[string]any, len(c.Params)),
		New:         c.New,
		ruleUnits:   c.ruleUnits,
	}
	for k, v := range c.Schedule {
		out.Schedule[k] = v
	}
	for k, v := range c.Params {
		out.Params[k] = catalog.CloneValue(v)
	}
	return out
}

// MarshalJSON emits _type and nickname first, then parameters in key order,
// then the rules.
func (c *InstanceConfig) MarshalJSON() ([]byte, error) {
	var obj orderedObject
	write := func(key string, v any) error {
		if err := obj.write(key, v); err != nil {
			return fmt.Errorf("%s: %w", c.ID, err)
		}
		return nil
	}

	if err := write(FieldType, c.Type); err != nil {
		return nil, err
	}
	if err := write(FieldNickname, c.Nickname); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, c.Params[k]); err != nil {
			return nil, err
		}
	}

	if err := write(FieldDefaultRule, c.DefaultRule); err != nil {
		return nil, err
	}
	sched := c.Schedule
	if sched == nil {
		sched = map[string]rules.Value{}
	}
	if err := write(FieldSchedule, sched); err != nil {
		return nil, err
	}

	return obj.bytes(), nil
}

func decodeInstance(id string, data []byte) (*InstanceConfig, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", id, err)
	}

	inst := newInstance(id)
	inst.New = false
	for key, body := range raw {
		var err error
		switch key {
		case FieldType:
			err = json.Unmarshal(body, &inst.Type)
		case FieldNickname:
			err = json.Unmarshal(body, &inst.Nickname)
		case FieldDefaultRule:
			err = json.Unmarshal(body, &inst.DefaultRule)
		case FieldSchedule:
			var sched map[string]rules.Value
			err = json.Unmarshal(body, &sched)
			if sched != nil {
				inst.Schedule = sched
			}
		default:
			inst.Params[key], err = decodeAny(body)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s.%s: %w", id, key, err)
		}
	}
	return inst, nil
}

func decodeAny(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
