package wizard

import (
	"sort"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/document"
	"github.com/muurk/nodecfg/internal/fieldfmt"
	"github.com/muurk/nodecfg/internal/rules"
)

// GPIO pins usable by each category.
var (
	DevicePins = []string{"4", "13", "16", "17", "18", "19", "21", "22", "23", "25", "26", "27", "32", "33"}
	SensorPins = []string{"4", "5", "13", "14", "15", "16", "17", "18", "19", "21", "22", "23", "25", "26", "27", "32", "33", "34", "35", "36", "39"}
)

// Pins returns the GPIO set for a category.
func Pins(c catalog.Category) []string {
	if c == catalog.Sensor {
		return SensorPins
	}
	return DevicePins
}

func validPin(c catalog.Category, pin string) bool {
	for _, p := range Pins(c) {
		if p == pin {
			return true
		}
	}
	return false
}

// FieldRef names one rendered field. Node-wide fields have an empty
// InstanceID and a dotted section name such as "metadata.id".
type FieldRef struct {
	InstanceID string
	Field      string
}

func (f FieldRef) String() string {
	if f.InstanceID == "" {
		return f.Field
	}
	return f.InstanceID + "." + f.Field
}

type problem struct {
	ref        FieldRef
	incomplete bool
}

func (c *Controller) problems(p Page) []problem {
	if c.doc == nil {
		return nil
	}
	switch p {
	case PageIdentity:
		return identityProblems(c.doc)
	case PageRules:
		return ruleProblems(c.doc)
	default:
		return nil
	}
}

func identityProblems(doc *document.Document) []problem {
	var out []problem
	add := func(id, field string, incomplete bool) {
		out = append(out, problem{ref: FieldRef{InstanceID: id, Field: field}, incomplete: incomplete})
	}

	if doc.Metadata().ID == "" {
		add("", "metadata.id", true)
	}

	for _, id := range doc.IDs() {
		inst, _ := doc.Instance(id)
		cat := inst.Category()

		switch {
		case inst.Nickname == "":
			add(id, document.FieldNickname, true)
		case doc.IsDuplicate(id):
			add(id, document.FieldNickname, false)
		}

		meta, ok := doc.TypeMeta(id)
		if !ok {
			add(id, document.FieldType, inst.Type == "")
			continue
		}

		keys := make([]string, 0, len(meta.ConfigTemplate))
		for key := range meta.ConfigTemplate {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			switch key {
			case document.FieldType, document.FieldNickname, document.FieldDefaultRule, document.FieldSchedule:
				continue
			}
			switch meta.ConfigTemplate[key].(type) {
			case []any, map[string]any:
				// Lists such as targets are optional
				continue
			}

			value := inst.Param(key)
			switch {
			case value == "":
				add(id, key, true)
			case key == document.FieldPin && !validPin(cat, value):
				add(id, key, false)
			case key == document.FieldIP && !fieldfmt.ValidIPv4(value):
				add(id, key, fieldfmt.FormatIP(value) == value)
			}
		}
	}

	if ir := doc.IRBlaster(); ir != nil {
		switch {
		case ir.Pin == "":
			add("", "ir_blaster.pin", true)
		case !validPin(catalog.Device, ir.Pin):
			add("", "ir_blaster.pin", false)
		}
	}
	return out
}

func ruleProblems(doc *document.Document) []problem {
	var out []problem
	for _, id := range doc.IDs() {
		inst, _ := doc.Instance(id)
		spec, _ := doc.RuleSpec(id)
		switch rules.Check(spec, inst.DefaultRule) {
		case rules.Incomplete:
			out = append(out, problem{ref: FieldRef{InstanceID: id, Field: document.FieldDefaultRule}, incomplete: true})
		case rules.Invalid:
			out = append(out, problem{ref: FieldRef{InstanceID: id, Field: document.FieldDefaultRule}})
		}
	}
	return out
}

// scheduleProblems checks trigger keys and scheduled values. Field names
// are "schedule.<trigger>".
func (c *Controller) scheduleProblems() []problem {
	if c.doc == nil {
		return nil
	}
	doc := c.doc

	var out []problem
	for _, id := range doc.IDs() {
		inst, _ := doc.Instance(id)
		spec, _ := doc.RuleSpec(id)

		for _, key := range inst.ScheduleKeys() {
			ref := FieldRef{InstanceID: id, Field: document.FieldSchedule + "." + key}
			if !doc.ValidTrigger(key) {
				out = append(out, problem{ref: ref, incomplete: key == document.PlaceholderTrigger})
				continue
			}
			value := inst.Schedule[key]
			if rules.ValidateScheduled(spec, value) {
				continue
			}
			out = append(out, problem{ref: ref, incomplete: rules.Check(spec, value) == rules.Incomplete})
		}

		if key, ok := doc.Conflict(id); ok {
			out = append(out, problem{ref: FieldRef{InstanceID: id, Field: document.FieldSchedule + "." + key}})
		}
	}
	return out
}
