package tui

import (
	"fmt"
	"sort"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/document"
	"github.com/muurk/nodecfg/internal/rules"
	"github.com/muurk/nodecfg/internal/wizard"
)

type rowKind int

const (
	rowHeader rowKind = iota
	rowMetadata
	rowIRPin
	rowType
	rowField
	rowRule
	rowSchedule
)

// row is one line of the editor. id is the owning instance; field is the
// metadata field, parameter key or schedule trigger.
type row struct {
	kind  rowKind
	id    string
	field string
	label string
	value string
}

func (r row) ref() wizard.FieldRef {
	switch r.kind {
	case rowMetadata:
		return wizard.FieldRef{Field: "metadata." + r.field}
	case rowIRPin:
		return wizard.FieldRef{Field: "ir_blaster.pin"}
	case rowType:
		return wizard.FieldRef{InstanceID: r.id, Field: document.FieldType}
	case rowRule:
		return wizard.FieldRef{InstanceID: r.id, Field: document.FieldDefaultRule}
	case rowSchedule:
		return wizard.FieldRef{InstanceID: r.id, Field: document.FieldSchedule + "." + r.field}
	default:
		return wizard.FieldRef{InstanceID: r.id, Field: r.field}
	}
}

func (r row) editable() bool {
	return r.kind != rowHeader && r.kind != rowType
}

var metadataFields = []struct{ field, label string }{
	{"id", "Node ID"},
	{"floor", "Floor"},
	{"location", "Location"},
	{"ssid", "Wi-Fi SSID"},
	{"password", "Wi-Fi password"},
}

func metadataValue(m document.Metadata, field string) string {
	switch field {
	case "id":
		return m.ID
	case "floor":
		return m.Floor
	case "location":
		return m.Location
	case "ssid":
		if m.WiFi != nil {
			return m.WiFi.SSID
		}
	case "password":
		if m.WiFi != nil {
			return m.WiFi.Password
		}
	}
	return ""
}

func instanceHeading(inst *document.InstanceConfig) string {
	name := inst.Nickname
	if name == "" {
		name = "unnamed"
	}
	typ := inst.Type
	if typ == "" {
		typ = "no type"
	}
	return fmt.Sprintf("%s  %s (%s)", inst.ID, name, typ)
}

// buildRows lists the rows shown on page p.
func buildRows(doc *document.Document, p wizard.Page) []row {
	if doc == nil {
		return nil
	}
	switch p {
	case wizard.PageIdentity:
		return identityRows(doc)
	case wizard.PageRules:
		return ruleRows(doc)
	default:
		return scheduleRows(doc)
	}
}

func identityRows(doc *document.Document) []row {
	meta := doc.Metadata()
	rows := make([]row, 0, len(metadataFields)+4*doc.Len())
	for _, f := range metadataFields {
		rows = append(rows, row{kind: rowMetadata, field: f.field, label: f.label, value: metadataValue(meta, f.field)})
	}
	if ir := doc.IRBlaster(); ir != nil {
		rows = append(rows, row{kind: rowIRPin, label: "IR blaster pin", value: ir.Pin})
	}

	for _, id := range doc.IDs() {
		inst, _ := doc.Instance(id)
		rows = append(rows,
			row{kind: rowHeader, id: id, label: instanceHeading(inst)},
			row{kind: rowType, id: id, field: document.FieldType, label: "Type", value: inst.Type},
			row{kind: rowField, id: id, field: document.FieldNickname, label: "Nickname", value: inst.Nickname},
		)

		tm, ok := doc.TypeMeta(id)
		if !ok {
			continue
		}
		keys := make([]string, 0, len(tm.ConfigTemplate))
		for k, v := range tm.ConfigTemplate {
			switch k {
			case document.FieldType, document.FieldNickname, document.FieldDefaultRule, document.FieldSchedule:
				continue
			}
			switch v.(type) {
			case []any, map[string]any:
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rows = append(rows, row{kind: rowField, id: id, field: k, label: k, value: inst.Param(k)})
		}
	}
	return rows
}

func ruleRows(doc *document.Document) []row {
	rows := make([]row, 0, doc.Len())
	for _, id := range doc.IDs() {
		inst, _ := doc.Instance(id)
		spec, _ := doc.RuleSpec(id)
		label := inst.Nickname
		if label == "" {
			label = id
		}
		rows = append(rows, row{
			kind:  rowRule,
			id:    id,
			field: document.FieldDefaultRule,
			label: fmt.Sprintf("%s [%s]", label, spec.Variant),
			value: string(inst.DefaultRule),
		})
	}
	return rows
}

func scheduleRows(doc *document.Document) []row {
	var rows []row
	for _, id := range doc.IDs() {
		inst, _ := doc.Instance(id)
		rows = append(rows, row{kind: rowHeader, id: id, label: instanceHeading(inst)})
		for _, trigger := range inst.ScheduleKeys() {
			label := trigger
			if trigger == document.PlaceholderTrigger {
				label = "(new trigger)"
			}
			rows = append(rows, row{kind: rowSchedule, id: id, field: trigger, label: label, value: string(inst.Schedule[trigger])})
		}
	}
	return rows
}

// displayValue renders a row value for the list.
func displayValue(doc *document.Document, r row) string {
	switch r.kind {
	case rowHeader:
		return ""
	case rowMetadata:
		if r.field == "password" && r.value != "" {
			return "••••••••"
		}
	case rowRule, rowSchedule:
		if spec, ok := doc.RuleSpec(r.id); ok && r.value != "" {
			return rules.Format(spec, rules.Value(r.value))
		}
	}
	return r.value
}

// nextType returns the catalog type after current for the instance's
// category, wrapping around.
func nextType(doc *document.Document, id string) (string, bool) {
	inst, ok := doc.Instance(id)
	if !ok {
		return "", false
	}
	cat, ok := catalog.CategoryOf(id)
	if !ok {
		return "", false
	}
	types := doc.Catalog().Types(cat)
	if len(types) == 0 {
		return "", false
	}
	for i, t := range types {
		if t == inst.Type {
			return types[(i+1)%len(types)], true
		}
	}
	return types[0], true
}
