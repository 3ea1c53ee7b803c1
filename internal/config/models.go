package config

import (
	"sort"
	"time"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/units"
)

// Source records how a node entered the registry.
const (
	SourceManual = "manual"
	SourceMDNS   = "mdns"
	SourceSubmit = "submit"
)

// Registry represents the entire user configuration file: the nodes this
// user has configured or seen, and application preferences.
type Registry struct {
	Version     int              `yaml:"version"`
	Nodes       map[string]*Node `yaml:"nodes,omitempty"` // Keyed by node id (metadata.id)
	Preferences *Preferences     `yaml:"preferences,omitempty"`
}

// Node is what the registry remembers about one controller.
type Node struct {
	Address   string    `yaml:"address"`
	Source    string    `yaml:"source,omitempty"`
	LastSeen  time.Time `yaml:"last_seen,omitempty"`
	Instances int       `yaml:"instances,omitempty"` // Instance count at last submission
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	ServerURL       string     `yaml:"server_url,omitempty"`    // Config server base URL
	DefaultUnits    string     `yaml:"default_units,omitempty"` // celsius, fahrenheit or kelvin
	DebounceSeconds float64    `yaml:"debounce_seconds"`        // Location search debounce window
	AutoDiscover    bool       `yaml:"auto_discover"`           // Run an mDNS scan when the wizard opens
	DiscoverTimeout int        `yaml:"discover_timeout"`        // mDNS discovery timeout in seconds
	DefaultAuth     *AuthPrefs `yaml:"default_auth,omitempty"`  // Default config server credentials
}

// AuthPrefs holds the default config server username.
// Passwords are never stored.
type AuthPrefs struct {
	Username string `yaml:"username"`
}

func defaultPreferences() *Preferences {
	return &Preferences{
		ServerURL:       "http://127.0.0.1:8123",
		DefaultUnits:    string(units.Celsius),
		DebounceSeconds: 2,
		AutoDiscover:    true,
		DiscoverTimeout: 5,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Nodes:       make(map[string]*Node),
		Preferences: defaultPreferences(),
	}
}

// DebounceWindow returns the configured debounce window.
func (p *Preferences) DebounceWindow() time.Duration {
	if p == nil || p.DebounceSeconds <= 0 {
		return 0
	}
	return time.Duration(p.DebounceSeconds * float64(time.Second))
}

// Units returns the preferred temperature units, Celsius when unset or
// unrecognized.
func (p *Preferences) Units() units.Units {
	if p == nil {
		return units.Celsius
	}
	u, ok := units.ParseUnits(p.DefaultUnits)
	if !ok {
		return units.Celsius
	}
	return u
}

// GetNode retrieves a node by id. Returns nil if it is not registered.
func (r *Registry) GetNode(id string) *Node {
	return r.Nodes[id]
}

// EnsureNode returns the entry for id, creating an empty one if needed.
func (r *Registry) EnsureNode(id string) *Node {
	if r.Nodes == nil {
		r.Nodes = make(map[string]*Node)
	}
	if node, ok := r.Nodes[id]; ok {
		return node
	}
	node := &Node{}
	r.Nodes[id] = node
	return node
}

// RecordNode updates the address, source and last seen time for id.
func (r *Registry) RecordNode(id, address, source string) *Node {
	node := r.EnsureNode(id)
	node.Address = address
	node.Source = source
	node.LastSeen = time.Now()
	return node
}

// RemoveNode forgets a node. Unknown ids are ignored.
func (r *Registry) RemoveNode(id string) {
	delete(r.Nodes, id)
}

// NodeIDs returns registered node ids in sorted order.
func (r *Registry) NodeIDs() []string {
	ids := make([]string, 0, len(r.Nodes))
	for id := range r.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MergeInto adds every registered node to tc as a named address, without
// overriding names tc already knows. This lets the remote-command picker
// offer nodes the server has not reported.
func (r *Registry) MergeInto(tc *catalog.TargetCatalog) {
	known := make(map[string]bool)
	for _, addr := range tc.Addresses() {
		known[addr.Name] = true
	}
	for _, id := range r.NodeIDs() {
		node := r.Nodes[id]
		if node.Address == "" || known[id] || tc.HasAddress(node.Address) {
			continue
		}
		tc.AddAddress(id, node.Address)
	}
}
