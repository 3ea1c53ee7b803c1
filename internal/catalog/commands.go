package catalog

import (
	"sort"

	"github.com/muurk/nodecfg/internal/rules"
)

// IRKeyLabel labels the synthetic entry an IR blaster contributes.
const IRKeyLabel = "ir_key"

var (
	deviceCommands = []string{"enable", "disable", "enable_in", "disable_in", "set_rule", "reset_rule", "turn_on", "turn_off"}
	sensorCommands = []string{"enable", "disable", "enable_in", "disable_in", "set_rule", "reset_rule", "trigger_sensor"}
)

// nonTriggerable sensor types report measurements and cannot be fired by hand.
var nonTriggerable = map[string]bool{
	"si7021": true,
	"dht22":  true,
	"switch": true,
}

// LocalInstance is the part of a local instance the catalog needs.
type LocalInstance struct {
	ID       string
	Nickname string
	Type     string
}

// LocalNode is a read-only snapshot of the document being edited.
type LocalNode struct {
	// Address is the node's own IP, if known
	Address   string
	Instances []LocalInstance

	// IRRemotes maps each enabled virtual remote to its keys
	IRRemotes map[string][]string
}

// IsSelf reports whether target addresses the local node.
func (n LocalNode) IsSelf(target string) bool {
	return target == SelfAddress || (n.Address != "" && target == n.Address)
}

// SelfEntries derives the legal commands for the local node's own instances
// as seen by an instance of requesterType.
func SelfEntries(local LocalNode, requesterType string) []Entry {
	entries := make([]Entry, 0, len(local.Instances)+1)
	for _, inst := range local.Instances {
		c, ok := CategoryOf(inst.ID)
		if !ok || inst.Type == "" {
			continue
		}

		var cmds []string
		for _, cmd := range commandsFor(c) {
			switch {
			case inst.Type == requesterType && (cmd == "turn_on" || cmd == "turn_off"):
				continue
			case cmd == "trigger_sensor" && nonTriggerable[inst.Type]:
				continue
			}
			cmds = append(cmds, cmd)
		}

		entries = append(entries, Entry{
			Label:      Label(inst.ID, inst.Nickname, inst.Type),
			InstanceID: inst.ID,
			Nickname:   inst.Nickname,
			Type:       inst.Type,
			Set:        CommandSet{Commands: cmds},
		})
	}

	if len(local.IRRemotes) > 0 {
		remotes := make(map[string][]string, len(local.IRRemotes))
		for name, keys := range local.IRRemotes {
			remotes[name] = append([]string(nil), keys...)
		}
		entries = append(entries, Entry{Label: IRKeyLabel, Set: CommandSet{Remotes: remotes}})
	}
	return entries
}

func commandsFor(c Category) []string {
	if c == Sensor {
		return sensorCommands
	}
	return deviceCommands
}

// Commands returns the legal entries for a target address. Other nodes yield
// their published entries verbatim; the local node is derived from local.
// Unknown targets yield nil.
func (tc *TargetCatalog) Commands(target string, local LocalNode, requesterType string) []Entry {
	if local.IsSelf(target) {
		return SelfEntries(local, requesterType)
	}
	entries, _ := tc.Node(target)
	return entries
}

// Resolver answers rules.CommandResolver questions for one requesting
// instance. Entries of other nodes are cached until Invalidate; the local
// node is re-derived on every call so nickname and type edits are seen.
type Resolver struct {
	targets       *TargetCatalog
	local         func() LocalNode
	requesterType string
	cache         map[string][]Entry
}

// NewResolver builds a resolver. local is called whenever self commands are
// needed.
func NewResolver(targets *TargetCatalog, local func() LocalNode, requesterType string) *Resolver {
	if local == nil {
		local = func() LocalNode { return LocalNode{} }
	}
	return &Resolver{
		targets:       targets,
		local:         local,
		requesterType: requesterType,
		cache:         make(map[string][]Entry),
	}
}

// Invalidate drops cached entries.
func (r *Resolver) Invalidate() {
	r.cache = make(map[string][]Entry)
}

// Entries returns the legal entries for target.
func (r *Resolver) Entries(target string) []Entry {
	local := r.local()
	if local.IsSelf(target) {
		return SelfEntries(local, r.requesterType)
	}
	if cached, ok := r.cache[target]; ok {
		return cached
	}
	entries := r.targets.Commands(target, local, r.requesterType)
	r.cache[target] = entries
	return entries
}

// Targets lists every address a rule may target, self first.
func (r *Resolver) Targets() []Address {
	out := []Address{{Name: "self", IP: SelfAddress}}
	return append(out, r.targets.Addresses()...)
}

// KnownTarget implements rules.CommandResolver.
func (r *Resolver) KnownTarget(address string) bool {
	return r.local().IsSelf(address) || r.targets.HasAddress(address)
}

// LegalCommand implements rules.CommandResolver.
func (r *Resolver) LegalCommand(rule rules.RemoteRule) bool {
	for _, e := range r.Entries(rule.Target) {
		if rule.Command == IRKeyLabel {
			if e.Set.Remotes != nil && e.Set.HasKey(rule.Arg(0), rule.Arg(1)) {
				return true
			}
			continue
		}
		if e.InstanceID == rule.Arg(0) && e.Set.Has(rule.Command) {
			return true
		}
	}
	return false
}

// CommandNames lists the distinct commands available on target, sorted.
func (r *Resolver) CommandNames(target string) []string {
	seen := make(map[string]bool)
	for _, e := range r.Entries(target) {
		if e.Set.Remotes != nil {
			seen[IRKeyLabel] = true
			continue
		}
		for _, cmd := range e.Set.Commands {
			seen[cmd] = true
		}
	}
	out := make([]string, 0, len(seen))
	for cmd := range seen {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}
