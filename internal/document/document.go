package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/logging"
	"github.com/muurk/nodecfg/internal/rules"
	"github.com/muurk/nodecfg/internal/units"
)

var (
	// ErrUnknownInstance is returned for ids not in the document.
	ErrUnknownInstance = errors.New("unknown instance")

	// ErrUnknownType is returned by SetType for types missing from the catalog.
	ErrUnknownType = errors.New("unknown instance type")

	// ErrKeyConflict is returned when a schedule trigger already exists.
	ErrKeyConflict = errors.New("schedule trigger already exists")

	// ErrUnknownTrigger is returned when a schedule trigger does not exist.
	ErrUnknownTrigger = errors.New("unknown schedule trigger")

	// ErrUnknownField is returned by SetMetadata for unsupported fields.
	ErrUnknownField = errors.New("unknown field")
)

// GPS is the node's location used for sunrise/sunset triggers.
type GPS struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WiFi holds the default network credentials.
type WiFi struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// Metadata is the node-wide section.
type Metadata struct {
	ID       string `json:"id"`
	Floor    string `json:"floor"`
	Location string `json:"location"`
	GPS      *GPS   `json:"gps,omitempty"`
	WiFi     *WiFi  `json:"wifi,omitempty"`

	// ScheduleKeywords maps named triggers to the time they resolve to
	ScheduleKeywords map[string]string `json:"schedule_keywords,omitempty"`
}

func (m Metadata) clone() Metadata {
	out := m
	if m.GPS != nil {
		gps := *m.GPS
		out.GPS = &gps
	}
	if m.WiFi != nil {
		wifi := *m.WiFi
		out.WiFi = &wifi
	}
	if m.ScheduleKeywords != nil {
		out.ScheduleKeywords = make(map[string]string, len(m.ScheduleKeywords))
		for k, v := range m.ScheduleKeywords {
			out.ScheduleKeywords[k] = v
		}
	}
	return out
}

// IRBlaster is the optional IR section. Target lists the enabled virtual
// remotes.
type IRBlaster struct {
	Pin    string   `json:"pin"`
	Target []string `json:"target"`
}

// Change describes one mutation, delivered to listeners after it is applied.
type Change struct {
	Op    string
	ID    string
	Field string
}

// Document is the configuration being edited. It is not safe for concurrent
// use; all mutations run on the goroutine driving the UI.
type Document struct {
	meta    *catalog.Metadata
	targets *catalog.TargetCatalog

	metadata  Metadata
	ids       []string
	instances map[string]*InstanceConfig
	irBlaster *IRBlaster
	counters  map[catalog.Category]int
	extras    []extraField

	// nodeAddress is the LAN IP of the node being edited, if known.
	nodeAddress string

	duplicates map[string]struct{}
	conflicts  map[string]rekeyConflict
	resolvers  map[string]*catalog.Resolver
	listeners  []func(Change)
}

type extraField struct {
	key  string
	data []byte
}

// New returns an empty document bound to the given catalogs. Either catalog
// may be nil.
func New(meta *catalog.Metadata, targets *catalog.TargetCatalog) *Document {
	if meta == nil {
		meta = &catalog.Metadata{}
	}
	if targets == nil {
		targets = catalog.NewTargetCatalog()
	}
	return &Document{
		meta:       meta,
		targets:    targets,
		instances:  make(map[string]*InstanceConfig),
		counters:   make(map[catalog.Category]int),
		duplicates: make(map[string]struct{}),
		conflicts:  make(map[string]rekeyConflict),
		resolvers:  make(map[string]*catalog.Resolver),
	}
}

// Catalog returns the metadata catalog.
func (d *Document) Catalog() *catalog.Metadata {
	return d.meta
}

// TargetCatalog returns the target catalog.
func (d *Document) TargetCatalog() *catalog.TargetCatalog {
	return d.targets
}

// OnChange registers a listener called after every mutation.
func (d *Document) OnChange(fn func(Change)) {
	d.listeners = append(d.listeners, fn)
}

func (d *Document) notify(c Change) {
	logging.LogMutation(c.Op, c.ID, zap.String("field", c.Field))
	for _, fn := range d.listeners {
		fn(c)
	}
}

// IDs returns instance ids in display order.
func (d *Document) IDs() []string {
	return append([]string(nil), d.ids...)
}

// Len returns the number of instances.
func (d *Document) Len() int {
	return len(d.ids)
}

// Instance returns a copy of an instance.
func (d *Document) Instance(id string) (*InstanceConfig, bool) {
	inst, ok := d.instances[id]
	if !ok {
		return nil, false
	}
	return inst.Clone(), true
}

// Metadata returns a copy of the metadata section.
func (d *Document) Metadata() Metadata {
	return d.metadata.clone()
}

// IRBlaster returns a copy of the IR section, or nil when disabled.
func (d *Document) IRBlaster() *IRBlaster {
	if d.irBlaster == nil {
		return nil
	}
	return &IRBlaster{
		Pin:    d.irBlaster.Pin,
		Target: append([]string(nil), d.irBlaster.Target...),
	}
}

// TypeMeta returns the catalog entry for an instance's type.
func (d *Document) TypeMeta(id string) (catalog.TypeMeta, bool) {
	inst, ok := d.instances[id]
	if !ok || inst.Type == "" {
		return catalog.TypeMeta{}, false
	}
	return d.meta.Lookup(inst.Category(), inst.Type)
}

// AddInstance appends a new untyped instance and returns its id. Ids are
// never reused, even after removal.
func (d *Document) AddInstance(c catalog.Category) string {
	d.counters[c]++
	id := fmt.Sprintf("%s%d", c, d.counters[c])
	d.instances[id] = newInstance(id)
	d.ids = append(d.ids, id)
	d.notify(Change{Op: "add", ID: id})
	return id
}

// RemoveInstance deletes an instance. Removing an unknown id is a no-op.
// Removed devices are dropped from every sensor's targets.
func (d *Document) RemoveInstance(id string) {
	if _, ok := d.instances[id]; !ok {
		return
	}
	delete(d.instances, id)
	delete(d.resolvers, id)
	delete(d.conflicts, id)
	for i, have := range d.ids {
		if have == id {
			d.ids = append(d.ids[:i], d.ids[i+1:]...)
			break
		}
	}

	if c, _ := catalog.CategoryOf(id); c == catalog.Device {
		for _, inst := range d.instances {
			if !inst.HasParam(FieldTargets) {
				continue
			}
			kept := make([]string, 0)
			for _, target := range inst.Targets() {
				if target != id {
					kept = append(kept, target)
				}
			}
			inst.Params[FieldTargets] = kept
		}
	}

	d.recomputeDuplicates()
	d.notify(Change{Op: "remove", ID: id})
}

// SetType replaces the instance with a fresh one built from the type's
// template. Only the id, nickname and New flag survive.
func (d *Document) SetType(id, typ string) error {
	old, ok := d.instances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	meta, ok := d.meta.Lookup(old.Category(), typ)
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrUnknownType, old.Category(), typ)
	}

	inst := &InstanceConfig{
		ID:       id,
		Type:     typ,
		Nickname: old.Nickname,
		Schedule: make(map[string]rules.Value),
		Params:   make(map[string]any),
		New:      old.New,
	}
	for k, v := range meta.Template() {
		switch k {
		case FieldType, FieldNickname, FieldDefaultRule, FieldSchedule:
			continue
		}
		inst.Params[k] = v
	}
	d.instances[id] = inst
	delete(d.resolvers, id)
	delete(d.conflicts, id)

	inst.DefaultRule = rules.Default(d.specFor(inst))
	d.notify(Change{Op: "set_type", ID: id, Field: FieldType})
	return nil
}

// SetField assigns a raw value without validating it. Nickname edits
// re-run duplicate detection, units edits convert every numeric rule of the
// instance, and ip edits drop cached target commands.
func (d *Document) SetField(id, field, value string) error {
	inst, ok := d.instances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}

	switch field {
	case FieldType:
		return d.SetType(id, value)
	case FieldNickname:
		inst.Nickname = value
		d.recomputeDuplicates()
	case FieldDefaultRule:
		inst.DefaultRule = rules.Value(value)
	case FieldUnits:
		if d.changeUnits(id, value) {
			return nil
		}
		inst.ruleUnits = inst.Units()
		inst.Params[FieldUnits] = value
	case FieldIP:
		inst.Params[FieldIP] = value
		if r, ok := d.resolvers[id]; ok {
			r.Invalidate()
		}
	case FieldSchedule:
		return fmt.Errorf("%w: use the schedule operations for %s", ErrUnknownField, field)
	default:
		inst.Params[field] = value
	}

	d.notify(Change{Op: "set_field", ID: id, Field: field})
	return nil
}

// SetTargets replaces a sensor's targets list.
func (d *Document) SetTargets(id string, targets []string) error {
	inst, ok := d.instances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	inst.Params[FieldTargets] = append([]string{}, targets...)
	d.notify(Change{Op: "set_field", ID: id, Field: FieldTargets})
	return nil
}

// changeUnits rewrites an instance's numeric rules from its current units to
// value on a clone and commits the clone. Non-numeric rules are untouched.
// It returns false when value is not a unit system, leaving the raw
// assignment to the caller.
func (d *Document) changeUnits(id, value string) bool {
	to, ok := units.ParseUnits(value)
	if !ok || strings.TrimSpace(value) == "" {
		return false
	}
	from := d.instances[id].Units()
	if from == to {
		return false
	}

	next := d.Clone()
	inst := next.instances[id]
	if s, ok := units.ConvertString(string(inst.DefaultRule), from, to); ok {
		inst.DefaultRule = rules.Value(s)
	}
	for key, v := range inst.Schedule {
		if s, ok := units.ConvertString(string(v), from, to); ok {
			inst.Schedule[key] = rules.Value(s)
		}
	}
	inst.Params[FieldUnits] = string(to)

	logging.Debug("Converting rules",
		zap.String("instance", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	d.Replace(next)
	return true
}

// Replace swaps in the whole state of next. Listeners stay registered.
func (d *Document) Replace(next *Document) {
	clone := next.Clone()
	d.meta = clone.meta
	d.targets = clone.targets
	d.metadata = clone.metadata
	d.ids = clone.ids
	d.instances = clone.instances
	d.irBlaster = clone.irBlaster
	d.counters = clone.counters
	d.extras = clone.extras
	d.nodeAddress = clone.nodeAddress
	d.conflicts = clone.conflicts
	d.resolvers = make(map[string]*catalog.Resolver)
	d.recomputeDuplicates()
	d.notify(Change{Op: "replace"})
}

// Clone deep-copies the document state. Listeners and cached resolvers are
// not copied; catalogs are shared.
func (d *Document) Clone() *Document {
	out := New(d.meta, d.targets)
	out.metadata = d.metadata.clone()
	out.ids = append([]string(nil), d.ids...)
	for id, inst := range d.instances {
		out.instances[id] = inst.Clone()
	}
	if d.irBlaster != nil {
		out.irBlaster = d.IRBlaster()
	}
	for c, n := range d.counters {
		out.counters[c] = n
	}
	out.extras = append([]extraField(nil), d.extras...)
	out.nodeAddress = d.nodeAddress
	for id, c := range d.conflicts {
		out.conflicts[id] = c
	}
	out.recomputeDuplicates()
	return out
}

// SetMetadata assigns a metadata field: id, floor, location, ssid or
// password.
func (d *Document) SetMetadata(field, value string) error {
	switch field {
	case "id":
		d.metadata.ID = value
	case "floor":
		d.metadata.Floor = value
	case "location":
		d.metadata.Location = value
	case "ssid", "password":
		if d.metadata.WiFi == nil {
			d.metadata.WiFi = &WiFi{}
		}
		if field == "ssid" {
			d.metadata.WiFi.SSID = value
		} else {
			d.metadata.WiFi.Password = value
		}
	default:
		return fmt.Errorf("%w: metadata.%s", ErrUnknownField, field)
	}
	d.notify(Change{Op: "set_metadata", Field: field})
	return nil
}

// SetGPS sets the node location.
func (d *Document) SetGPS(lat, lon float64) {
	d.metadata.GPS = &GPS{Lat: lat, Lon: lon}
	d.notify(Change{Op: "set_metadata", Field: "gps"})
}

// EnableIRBlaster adds the IR section if it is absent.
func (d *Document) EnableIRBlaster(pin string) {
	if d.irBlaster == nil {
		d.irBlaster = &IRBlaster{Target: []string{}}
	}
	d.irBlaster.Pin = pin
	d.invalidateResolvers()
	d.notify(Change{Op: "set_ir", Field: "pin"})
}

// DisableIRBlaster removes the IR section.
func (d *Document) DisableIRBlaster() {
	if d.irBlaster == nil {
		return
	}
	d.irBlaster = nil
	d.invalidateResolvers()
	d.notify(Change{Op: "set_ir"})
}

// SetIRTarget enables or disables one virtual remote.
func (d *Document) SetIRTarget(remote string, enabled bool) {
	if d.irBlaster == nil {
		return
	}
	kept := make([]string, 0, len(d.irBlaster.Target)+1)
	for _, have := range d.irBlaster.Target {
		if have != remote {
			kept = append(kept, have)
		}
	}
	if enabled {
		kept = append(kept, remote)
	}
	d.irBlaster.Target = kept
	d.invalidateResolvers()
	d.notify(Change{Op: "set_ir", Field: "target"})
}

func (d *Document) invalidateResolvers() {
	for _, r := range d.resolvers {
		r.Invalidate()
	}
}

// SetNodeAddress records the LAN IP of the node this document belongs to,
// so rules targeting that IP resolve against the document itself.
func (d *Document) SetNodeAddress(ip string) {
	if d.nodeAddress == ip {
		return
	}
	d.nodeAddress = ip
	d.invalidateResolvers()
}

// NodeAddress returns the node's own IP: the one set with SetNodeAddress,
// else the target address named after metadata.id.
func (d *Document) NodeAddress() string {
	if d.nodeAddress != "" {
		return d.nodeAddress
	}
	ip, _ := d.targets.AddressOf(d.metadata.ID)
	return ip
}

// LocalNode snapshots the document for self-target command derivation.
func (d *Document) LocalNode() catalog.LocalNode {
	node := catalog.LocalNode{
		Address:   d.NodeAddress(),
		Instances: make([]catalog.LocalInstance, 0, len(d.ids)),
	}
	for _, id := range d.ids {
		inst := d.instances[id]
		node.Instances = append(node.Instances, catalog.LocalInstance{
			ID:       id,
			Nickname: inst.Nickname,
			Type:     inst.Type,
		})
	}
	if d.irBlaster != nil && len(d.irBlaster.Target) > 0 {
		node.IRRemotes = make(map[string][]string, len(d.irBlaster.Target))
		for _, remote := range d.irBlaster.Target {
			node.IRRemotes[remote] = d.meta.RemoteKeys(remote)
		}
	}
	return node
}

// Resolver returns the cached command resolver for an instance.
func (d *Document) Resolver(id string) *catalog.Resolver {
	if r, ok := d.resolvers[id]; ok {
		return r
	}
	typ := ""
	if inst, ok := d.instances[id]; ok {
		typ = inst.Type
	}
	r := catalog.NewResolver(d.targets, d.LocalNode, typ)
	d.resolvers[id] = r
	return r
}

// RuleSpec returns the rule spec for an instance in its current units.
func (d *Document) RuleSpec(id string) (rules.Spec, bool) {
	inst, ok := d.instances[id]
	if !ok {
		return rules.Spec{}, false
	}
	return d.specFor(inst), true
}

func (d *Document) specFor(inst *InstanceConfig) rules.Spec {
	meta, ok := d.meta.Lookup(inst.Category(), inst.Type)
	if !ok {
		return rules.Spec{Variant: rules.Unknown}
	}
	var resolver rules.CommandResolver
	if meta.Variant() == rules.RemoteCommand {
		resolver = d.Resolver(inst.ID)
	}
	return meta.RuleSpec(inst.Units(), resolver)
}

// instanceNumber parses the n of "device{n}".
func instanceNumber(id string) (catalog.Category, int, bool) {
	c, ok := catalog.CategoryOf(id)
	if !ok {
		return "", 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, string(c)))
	if err != nil || n < 1 {
		return "", 0, false
	}
	return c, n, true
}
