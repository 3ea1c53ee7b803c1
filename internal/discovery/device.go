package discovery

import (
	"fmt"
	"strconv"
	"time"
)

// Node represents a controller that answered an mDNS browse
type Node struct {
	// ID is the node id from the "id" TXT record, falling back to the
	// service instance name
	ID string

	// Instance is the mDNS service instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "node-office.local.")
	Hostname string

	// IP is the IPv4 address (e.g., "192.168.1.40")
	IP string

	// Port is the node's HTTP port
	Port int

	// Metadata contains the remaining TXT record data
	// Common fields: "id=Office", "instances=3", "fw=1.4.2"
	Metadata map[string]string

	// DiscoveredAt is when the node answered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the node
func (n *Node) String() string {
	return fmt.Sprintf("Node %s (%s) at %s:%d", n.ID, n.Hostname, n.IP, n.Port)
}

// BaseURL returns the HTTP base URL for the node
func (n *Node) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", n.IP, n.Port)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (n *Node) GetMetadata(key string) string {
	if n.Metadata == nil {
		return ""
	}
	return n.Metadata[key]
}

// InstanceCount returns the advertised number of configured instances, or
// -1 when the node does not say.
func (n *Node) InstanceCount() int {
	v, err := strconv.Atoi(n.GetMetadata("instances"))
	if err != nil {
		return -1
	}
	return v
}
