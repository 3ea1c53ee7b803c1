package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/muurk/nodecfg/internal/rules"
	"github.com/muurk/nodecfg/internal/units"
)

// Placeholder is the template sentinel rewritten to "" at load time.
const Placeholder = "placeholder"

// Category is the instance family, derived from the instance id prefix.
type Category string

const (
	Device Category = "device"
	Sensor Category = "sensor"
)

// CategoryOf returns the category of an instance id such as "device3".
func CategoryOf(id string) (Category, bool) {
	switch {
	case strings.HasPrefix(id, string(Device)):
		return Device, true
	case strings.HasPrefix(id, string(Sensor)):
		return Sensor, true
	default:
		return "", false
	}
}

// TypeMeta describes one instance type.
type TypeMeta struct {
	ClassName      string         `json:"class_name" yaml:"class_name"`
	ConfigName     string         `json:"config_name" yaml:"config_name"`
	ConfigTemplate map[string]any `json:"config_template" yaml:"config_template"`
	RuleLimits     []float64      `json:"rule_limits,omitempty" yaml:"rule_limits,omitempty"`
	RulePrompt     string         `json:"rule_prompt" yaml:"rule_prompt"`
	RuleOptions    []string       `json:"rule_options,omitempty" yaml:"rule_options,omitempty"`
}

// Variant returns the rule variant declared by the type.
func (m TypeMeta) Variant() rules.Variant {
	return rules.ParseVariant(m.RulePrompt)
}

// Limits returns [min,max] or the zero pair when the type declares none.
func (m TypeMeta) Limits() [2]float64 {
	if len(m.RuleLimits) < 2 {
		return [2]float64{}
	}
	return [2]float64{m.RuleLimits[0], m.RuleLimits[1]}
}

// RuleSpec builds the rules.Spec for an instance of this type.
func (m TypeMeta) RuleSpec(u units.Units, resolver rules.CommandResolver) rules.Spec {
	return rules.Spec{
		Variant:  m.Variant(),
		Limits:   m.Limits(),
		Options:  m.RuleOptions,
		Units:    u,
		Commands: resolver,
	}
}

// Template returns a deep copy of the config template.
func (m TypeMeta) Template() map[string]any {
	out := make(map[string]any, len(m.ConfigTemplate))
	for k, v := range m.ConfigTemplate {
		out[k] = CloneValue(v)
	}
	return out
}

// Metadata is the metadata catalog.
type Metadata struct {
	Devices map[string]TypeMeta `json:"devices" yaml:"devices"`
	Sensors map[string]TypeMeta `json:"sensors" yaml:"sensors"`

	// IRRemotes maps each virtual remote an IR blaster can drive to its keys
	IRRemotes map[string][]string `json:"ir_remotes,omitempty" yaml:"ir_remotes,omitempty"`
}

// ParseMetadata decodes a JSON metadata catalog and rewrites placeholders.
func ParseMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata catalog: %w", err)
	}
	m.normalize()
	return &m, nil
}

// ParseMetadataYAML decodes a YAML metadata catalog and rewrites placeholders.
func ParseMetadataYAML(data []byte) (*Metadata, error) {
	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata catalog: %w", err)
	}
	m.normalize()
	return &m, nil
}

// LoadMetadata reads a catalog file. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata catalog: %w", err)
	}
	if isYAML(path) {
		return ParseMetadataYAML(data)
	}
	return ParseMetadata(data)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (m *Metadata) normalize() {
	if m.Devices == nil {
		m.Devices = make(map[string]TypeMeta)
	}
	if m.Sensors == nil {
		m.Sensors = make(map[string]TypeMeta)
	}
	for _, set := range []map[string]TypeMeta{m.Devices, m.Sensors} {
		for name, meta := range set {
			tmpl := make(map[string]any, len(meta.ConfigTemplate))
			for k, v := range meta.ConfigTemplate {
				tmpl[k] = stripPlaceholders(v)
			}
			meta.ConfigTemplate = tmpl
			set[name] = meta
		}
	}
}

func stripPlaceholders(v any) any {
	switch t := v.(type) {
	case string:
		if t == Placeholder {
			return ""
		}
		return t
	case map[string]any:
		for k, inner := range t {
			t[k] = stripPlaceholders(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = stripPlaceholders(inner)
		}
		return t
	default:
		return v
	}
}

// CloneValue deep-copies template and parameter values.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = CloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = CloneValue(inner)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

func (m *Metadata) set(c Category) map[string]TypeMeta {
	if c == Sensor {
		return m.Sensors
	}
	return m.Devices
}

// Lookup returns the metadata for a type within a category.
func (m *Metadata) Lookup(c Category, typ string) (TypeMeta, bool) {
	if m == nil {
		return TypeMeta{}, false
	}
	meta, ok := m.set(c)[typ]
	return meta, ok
}

// Types lists the type names of a category in sorted order.
func (m *Metadata) Types(c Category) []string {
	if m == nil {
		return nil
	}
	set := m.set(c)
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoteKeys returns the declared keys of a virtual IR remote.
func (m *Metadata) RemoteKeys(remote string) []string {
	if m == nil {
		return nil
	}
	return m.IRRemotes[remote]
}
