// Package rules validates, formats and generates default rule values.
//
// Every instance type declares one rule variant. The variant decides what a
// legal default_rule or scheduled rule looks like:
//
//	Variant        Legal value
//	OnOff          "enabled" | "disabled"
//	Standard       one token of a type-declared set
//	IntRange       integer within [min,max]
//	FloatRange     float within [min,max], shown to 1 decimal
//	Thermostat     float within [min,max] converted from Celsius to the instance units
//	RemoteCommand  "<target> <command> <args...>" legal for the target catalog
//
// Dispatch goes through a single table keyed by Variant so the set of
// behaviours stays exhaustive and auditable in one place.
//
// Checking never fails hard. Check returns a Verdict that separates "still
// typing" (Incomplete) from wrong (Invalid); Validate is the strict form used
// when deciding whether a page may be left or a document submitted.
package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/muurk/nodecfg/internal/units"
)

// Variant identifies a rule behaviour family.
type Variant int

const (
	Unknown Variant = iota
	OnOff
	Standard
	IntRange
	FloatRange
	Thermostat
	RemoteCommand
)

// Rule prompts as they appear in the metadata catalog.
const (
	PromptOnOff      = "on_off"
	PromptStandard   = "standard"
	PromptIntRange   = "int_range"
	PromptFloatRange = "float_range"
	PromptThermostat = "thermostat"
	PromptAPITarget  = "api_target"
)

var promptVariants = map[string]Variant{
	PromptOnOff:      OnOff,
	PromptStandard:   Standard,
	PromptIntRange:   IntRange,
	PromptFloatRange: FloatRange,
	PromptThermostat: Thermostat,
	PromptAPITarget:  RemoteCommand,
}

// ParseVariant maps a catalog rule_prompt to a Variant.
func ParseVariant(prompt string) Variant {
	if v, ok := promptVariants[strings.ToLower(strings.TrimSpace(prompt))]; ok {
		return v
	}
	return Unknown
}

// String returns the catalog prompt for the variant
func (v Variant) String() string {
	for prompt, variant := range promptVariants {
		if variant == v {
			return prompt
		}
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// Numeric reports whether the variant carries numeric rules.
func (v Variant) Numeric() bool {
	return v == IntRange || v == FloatRange || v == Thermostat
}

// Verdict is the outcome of checking one rule value.
type Verdict int

const (
	// Valid values may be submitted
	Valid Verdict = iota
	// Incomplete values are mid-edit: empty input, a trailing decimal point,
	// a remote rule without its command or arguments
	Incomplete
	// Invalid values are wrong regardless of further typing
	Invalid
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case Incomplete:
		return "incomplete"
	default:
		return "invalid"
	}
}

// CommandResolver answers remote-command questions against the current target
// catalog. The catalog package provides the implementation.
type CommandResolver interface {
	KnownTarget(address string) bool
	LegalCommand(rule RemoteRule) bool
}

// DefaultLimits is used for range variants whose type declares no limits.
var DefaultLimits = [2]float64{0, 100}

// Spec is everything needed to judge one instance's rules.
type Spec struct {
	Variant Variant

	// Limits are [min,max]. Thermostat limits are stored in Celsius.
	Limits [2]float64

	// Options are the Standard variant's tokens in declared order
	Options []string

	// Units is the thermostat's current unit system
	Units units.Units

	// Commands resolves remote-command legality
	Commands CommandResolver
}

// Range returns the effective [min,max] in the instance's current units.
func (s Spec) Range() (float64, float64) {
	lo, hi := s.Limits[0], s.Limits[1]
	if lo == 0 && hi == 0 {
		lo, hi = DefaultLimits[0], DefaultLimits[1]
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	if s.Variant == Thermostat {
		u := s.Units
		if u == "" {
			u = units.Celsius
		}
		lo = units.Convert(lo, units.Celsius, u)
		hi = units.Convert(hi, units.Celsius, u)
	}
	return lo, hi
}

// options returns the declared Standard tokens, falling back to on/off.
func (s Spec) options() []string {
	if len(s.Options) == 0 {
		return []string{string(Enabled), string(Disabled)}
	}
	return s.Options
}

type behavior struct {
	check  func(Spec, Value) Verdict
	format func(Spec, Value) string
	def    func(Spec) Value
}

var table = map[Variant]behavior{
	Unknown: {
		check:  func(Spec, Value) Verdict { return Invalid },
		format: formatRaw,
		def:    func(Spec) Value { return "" },
	},
	OnOff: {
		check:  checkOnOff,
		format: formatRaw,
		def:    func(Spec) Value { return Enabled },
	},
	Standard: {
		check:  checkStandard,
		format: formatRaw,
		def:    func(s Spec) Value { return Value(s.options()[0]) },
	},
	IntRange: {
		check:  checkIntRange,
		format: formatInt,
		def:    defaultInt,
	},
	FloatRange: {
		check:  checkFloatRange,
		format: formatFloat,
		def:    defaultFloat,
	},
	Thermostat: {
		check:  checkFloatRange,
		format: formatFloat,
		def:    defaultFloat,
	},
	RemoteCommand: {
		check:  checkRemote,
		format: formatRemote,
		def:    func(Spec) Value { return "" },
	},
}

func lookup(v Variant) behavior {
	if b, ok := table[v]; ok {
		return b
	}
	return table[Unknown]
}

// Check judges a value for the spec's variant.
func Check(s Spec, v Value) Verdict {
	return lookup(s.Variant).check(s, v)
}

// Validate reports whether v may be submitted as a default rule.
func Validate(s Spec, v Value) bool {
	return Check(s, v) == Valid
}

// ValidateScheduled reports whether v may be submitted as a scheduled rule.
// Numeric variants additionally accept the enabled/disabled keywords, which
// toggle the instance instead of changing its setpoint.
func ValidateScheduled(s Spec, v Value) bool {
	if Validate(s, v) {
		return true
	}
	return s.Variant.Numeric() && v.IsSentinel()
}

// Format renders the canonical display string.
func Format(s Spec, v Value) string {
	return lookup(s.Variant).format(s, v)
}

// Default returns the variant's default value.
func Default(s Spec) Value {
	return lookup(s.Variant).def(s)
}

func checkOnOff(_ Spec, v Value) Verdict {
	if v == "" {
		return Incomplete
	}
	if v.IsSentinel() {
		return Valid
	}
	return Invalid
}

func checkStandard(s Spec, v Value) Verdict {
	if v == "" {
		return Incomplete
	}
	for _, opt := range s.options() {
		if string(v) == opt {
			return Valid
		}
	}
	return Invalid
}

// typing reports whether a numeric field is still being typed.
func typing(raw string) bool {
	return raw == "" || raw == "-" || strings.HasSuffix(raw, ".")
}

func checkIntRange(s Spec, v Value) Verdict {
	raw := strings.TrimSpace(string(v))
	if typing(raw) {
		return Incomplete
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return Invalid
	}
	lo, hi := s.Range()
	if float64(n) < lo || float64(n) > hi {
		return Invalid
	}
	return Valid
}

func checkFloatRange(s Spec, v Value) Verdict {
	raw := strings.TrimSpace(string(v))
	if typing(raw) {
		return Incomplete
	}
	if !units.IsNumeric(raw) {
		return Invalid
	}
	f, _ := strconv.ParseFloat(raw, 64)
	lo, hi := s.Range()
	if f < lo || f > hi {
		return Invalid
	}
	return Valid
}

func checkRemote(s Spec, v Value) Verdict {
	if strings.TrimSpace(string(v)) == "" {
		return Incomplete
	}
	if s.Commands == nil {
		return Invalid
	}

	fields := strings.Fields(string(v))
	if !s.Commands.KnownTarget(fields[0]) {
		return Invalid
	}

	rule, ok := ParseRemote(v)
	if !ok {
		// Target chosen, command not yet
		return Incomplete
	}
	if !rule.complete() {
		return Incomplete
	}
	if !s.Commands.LegalCommand(rule) {
		return Invalid
	}
	return Valid
}

func formatRaw(_ Spec, v Value) string {
	return string(v)
}

func formatInt(_ Spec, v Value) string {
	n, err := strconv.Atoi(strings.TrimSpace(string(v)))
	if err != nil {
		return string(v)
	}
	return strconv.Itoa(n)
}

func formatFloat(_ Spec, v Value) string {
	raw := strings.TrimSpace(string(v))
	if !units.IsNumeric(raw) {
		return string(v)
	}
	f, _ := strconv.ParseFloat(raw, 64)
	return strconv.FormatFloat(units.Round1(f), 'f', 1, 64)
}

func formatRemote(_ Spec, v Value) string {
	rule, ok := ParseRemote(v)
	if !ok {
		return string(v)
	}
	return rule.String()
}

func defaultInt(s Spec) Value {
	lo, hi := s.Range()
	return Value(strconv.Itoa(int(math.Round((lo + hi) / 2))))
}

func defaultFloat(s Spec) Value {
	var mid float64
	if s.Variant == Thermostat {
		// Midpoint in Celsius first, then converted, so the default matches
		// what a Celsius user would get
		lo, hi := s.Limits[0], s.Limits[1]
		if lo == 0 && hi == 0 {
			lo, hi = DefaultLimits[0], DefaultLimits[1]
		}
		u := s.Units
		if u == "" {
			u = units.Celsius
		}
		mid = units.Convert((lo+hi)/2, units.Celsius, u)
	} else {
		lo, hi := s.Range()
		mid = (lo + hi) / 2
	}
	return Value(strconv.FormatFloat(units.Round1(mid), 'f', 1, 64))
}
