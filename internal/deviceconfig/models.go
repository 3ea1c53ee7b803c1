package deviceconfig

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/muurk/nodecfg/internal/rules"
)

// InstanceStatus is the live state of one configured instance as reported by
// the node.
type InstanceStatus struct {
	Type     string                 `json:"type"`
	Nickname string                 `json:"nickname"`
	Enabled  bool                   `json:"enabled"`
	Turned   string                 `json:"turned,omitempty"` // "On" or "Off" for devices
	Rule     rules.Value            `json:"current_rule"`
	Reading  *float64               `json:"reading,omitempty"` // sensors only
	Units    string                 `json:"units,omitempty"`
	Schedule map[string]rules.Value `json:"schedule,omitempty"`
}

// NodeStatus is the body of GET /status/{ip}, keyed by instance id.
type NodeStatus struct {
	Address   string                    `json:"-"`
	Instances map[string]InstanceStatus `json:"-"`
	Received  time.Time                 `json:"-"`
}

// UnmarshalJSON decodes the flat instance map the node sends. Keys that do not
// name an instance are skipped.
func (s *NodeStatus) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Instances = make(map[string]InstanceStatus, len(raw))
	for id, body := range raw {
		if !strings.HasPrefix(id, "device") && !strings.HasPrefix(id, "sensor") {
			continue
		}
		var inst InstanceStatus
		if err := json.Unmarshal(body, &inst); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		s.Instances[id] = inst
	}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (s NodeStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Instances)
}

// ParseNodeStatus decodes a status body.
func ParseNodeStatus(data []byte) (*NodeStatus, error) {
	var status NodeStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, NewParseError("failed to parse status response", err)
	}
	return &status, nil
}

// IDs returns the instance ids, devices first.
func (s *NodeStatus) IDs() []string {
	ids := make([]string, 0, len(s.Instances))
	for id := range s.Instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if len(a) != len(b) && a[:6] == b[:6] {
			return len(a) < len(b)
		}
		return a < b
	})
	return ids
}

// String returns a human-readable summary, one line per instance.
func (s *NodeStatus) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Node %s\n", s.Address)
	for _, id := range s.IDs() {
		inst := s.Instances[id]
		state := "disabled"
		if inst.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(&sb, "  %-10s %-16s %-8s rule=%s", id, inst.Nickname, state, inst.Rule)
		if inst.Turned != "" {
			fmt.Fprintf(&sb, " turned=%s", inst.Turned)
		}
		if inst.Reading != nil {
			fmt.Fprintf(&sb, " reading=%.1f%s", *inst.Reading, unitSuffix(inst.Units))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func unitSuffix(u string) string {
	switch strings.ToLower(u) {
	case "celsius":
		return "°C"
	case "fahrenheit":
		return "°F"
	case "kelvin":
		return "K"
	default:
		return ""
	}
}
