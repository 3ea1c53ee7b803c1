package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/logging"
)

const (
	// ServiceType is the mDNS service type nodes advertise
	ServiceType = "_nodecfg._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for node discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the HTTP port assumed when the SRV record has none
	DefaultPort = 80
)

// Scanner handles mDNS node discovery
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration

	// Service overrides ServiceType
	Service string
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Service: ServiceType,
	}
}

// Scan browses until the timeout and returns every node found, sorted by
// id. Duplicate answers for the same address are collapsed.
func (s *Scanner) Scan(ctx context.Context) ([]*Node, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	var (
		mu    sync.Mutex
		found = make(map[string]*Node)
	)
	go func() {
		for entry := range entries {
			node := parseServiceEntry(entry)
			if node == nil {
				continue
			}
			mu.Lock()
			found[node.IP] = node
			mu.Unlock()
			logging.Debug("Discovered node",
				zap.String("id", node.ID),
				zap.String("ip", node.IP))
		}
	}()

	if err := resolver.Browse(ctx, s.service(), ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return sortNodes(found), nil
}

// WaitForNode browses until a node with the given id answers.
func (s *Scanner) WaitForNode(ctx context.Context, id string) (*Node, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	nodeChan := make(chan *Node, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			node := parseServiceEntry(entry)
			if node != nil && strings.EqualFold(node.ID, id) {
				select {
				case nodeChan <- node:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, s.service(), ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case node := <-nodeChan:
		return node, nil
	case <-ctx.Done():
		select {
		case node := <-nodeChan:
			return node, nil
		default:
		}
		return nil, fmt.Errorf("node %s not found within %s", id, s.Timeout)
	}
}

func (s *Scanner) service() string {
	if s.Service == "" {
		return ServiceType
	}
	return s.Service
}

// parseServiceEntry converts a zeroconf service entry to a Node. Returns nil
// for entries without a usable IPv4 address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Node {
	if entry == nil {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		if v4 := addr.To4(); v4 != nil && !v4.Equal(net.IPv4zero) {
			ip = v4.String()
			break
		}
	}
	// Remote-command targets are IPv4 only
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		if key != "" {
			metadata[key] = value
		}
	}

	id := metadata["id"]
	if id == "" {
		id = entry.Instance
	}
	if id == "" {
		id = strings.TrimSuffix(strings.TrimSuffix(entry.HostName, "."), ".local")
	}

	return &Node{
		ID:           id,
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

func sortNodes(found map[string]*Node) []*Node {
	nodes := make([]*Node, 0, len(found))
	for _, n := range found {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].ID != nodes[j].ID {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].IP < nodes[j].IP
	})
	return nodes
}

// MergeInto registers each node as a named target address. Names and
// addresses the catalog already knows are left alone. Returns the number of
// nodes added.
func MergeInto(tc *catalog.TargetCatalog, nodes []*Node) int {
	known := make(map[string]bool)
	for _, addr := range tc.Addresses() {
		known[addr.Name] = true
	}

	added := 0
	for _, n := range nodes {
		if known[n.ID] || tc.HasAddress(n.IP) {
			continue
		}
		tc.AddAddress(n.ID, n.IP)
		known[n.ID] = true
		added++
	}
	return added
}
