package document

import (
	"fmt"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/fieldfmt"
	"github.com/muurk/nodecfg/internal/rules"
)

// PlaceholderTrigger keys a schedule row whose time has not been chosen yet.
const PlaceholderTrigger = catalog.Placeholder

// rekeyConflict is a rejected move of the row at from onto the taken key to.
type rekeyConflict struct {
	from, to string
}

// BuiltinKeywords are the named triggers every node resolves.
var BuiltinKeywords = []string{"sunrise", "sunset"}

// AddScheduleRule inserts a placeholder row valued at the instance's current
// default rule. Only one placeholder row may exist at a time.
func (d *Document) AddScheduleRule(id string) (string, error) {
	inst, ok := d.instances[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	if _, exists := inst.Schedule[PlaceholderTrigger]; exists {
		return "", fmt.Errorf("%w: %s", ErrKeyConflict, PlaceholderTrigger)
	}
	inst.Schedule[PlaceholderTrigger] = inst.DefaultRule
	d.notify(Change{Op: "schedule_add", ID: id, Field: PlaceholderTrigger})
	return PlaceholderTrigger, nil
}

// EditScheduleRule overwrites the rule of one trigger.
func (d *Document) EditScheduleRule(id, key string, value rules.Value) error {
	inst, ok := d.instances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	if _, exists := inst.Schedule[key]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTrigger, key)
	}
	inst.Schedule[key] = value
	d.notify(Change{Op: "schedule_edit", ID: id, Field: key})
	return nil
}

// DeleteScheduleRule removes one trigger. The schedule stays an empty map
// and the instance is kept.
func (d *Document) DeleteScheduleRule(id, key string) error {
	inst, ok := d.instances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	delete(inst.Schedule, key)
	if c, ok := d.conflicts[id]; ok && (c.from == key || c.to == key) {
		delete(d.conflicts, id)
	}
	d.notify(Change{Op: "schedule_delete", ID: id, Field: key})
	return nil
}

// RekeyScheduleRule moves a rule to a new trigger. A collision with another
// existing trigger leaves the schedule unchanged, records the conflict for
// highlighting and returns ErrKeyConflict.
func (d *Document) RekeyScheduleRule(id, oldKey, newKey string) error {
	inst, ok := d.instances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	value, exists := inst.Schedule[oldKey]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTrigger, oldKey)
	}
	if oldKey == newKey {
		return nil
	}
	if _, taken := inst.Schedule[newKey]; taken {
		d.conflicts[id] = rekeyConflict{from: oldKey, to: newKey}
		d.notify(Change{Op: "schedule_conflict", ID: id, Field: newKey})
		return fmt.Errorf("%w: %s", ErrKeyConflict, newKey)
	}

	delete(inst.Schedule, oldKey)
	inst.Schedule[newKey] = value
	delete(d.conflicts, id)
	d.notify(Change{Op: "schedule_rekey", ID: id, Field: newKey})
	return nil
}

// Conflict returns the trigger last rejected by RekeyScheduleRule for an
// instance, if the conflict is still outstanding.
func (d *Document) Conflict(id string) (string, bool) {
	c, ok := d.conflicts[id]
	return c.to, ok
}

// ClearConflict drops an outstanding rekey conflict, e.g. when the user
// abandons the edit.
func (d *Document) ClearConflict(id string) {
	if _, ok := d.conflicts[id]; !ok {
		return
	}
	delete(d.conflicts, id)
	d.notify(Change{Op: "schedule_conflict", ID: id})
}

// Keywords lists the named triggers the document accepts.
func (d *Document) Keywords() []string {
	out := append([]string(nil), BuiltinKeywords...)
	for name := range d.metadata.ScheduleKeywords {
		if !d.isBuiltin(name) {
			out = append(out, name)
		}
	}
	return out
}

func (d *Document) isBuiltin(name string) bool {
	for _, kw := range BuiltinKeywords {
		if kw == name {
			return true
		}
	}
	return false
}

// ValidTrigger reports whether key is an HH:MM time or a known keyword.
func (d *Document) ValidTrigger(key string) bool {
	if _, _, ok := fieldfmt.ParseTime(key); ok {
		return true
	}
	if d.isBuiltin(key) {
		return true
	}
	_, ok := d.metadata.ScheduleKeywords[key]
	return ok
}
