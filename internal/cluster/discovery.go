/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package cluster provides mDNS/DNS-SD peer discovery for the (server-id,
cluster-uuid) identity bookkeeping in identity.go. This is advisory only:
a node that discovers a sibling advertising a different cluster_id just
logs it (see Identity.ReconcileDiscovered) - there is no gossip, Raft, or
any other consensus layer behind it, matching the distributed-consensus
Non-goal.

SERVICE TYPE:
=============
Nodes advertise themselves as: _flydb._tcp.local.

Each instance publishes a TXT record carrying:
  - node_id: the advertising node's human-readable name
  - server_id: its numeric _cluster server-id (§4.6)
  - cluster_id: the cluster UUID it believes it belongs to
  - version: this binary's schema version (see memtx.SchemaVersion)

USAGE:
======
	discovery := NewDiscoveryService(config)
	discovery.Start()
	defer discovery.Stop()
	nodes := discovery.DiscoverNodes(5 * time.Second)
*/
package cluster

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/miekg/dns"

	"flydb/internal/logging"
)

const (
	// ServiceType is the mDNS service type nodes advertise under.
	ServiceType = "_flydb._tcp"

	// DefaultDiscoveryTimeout is the default timeout for node discovery.
	DefaultDiscoveryTimeout = 5 * time.Second
)

// DiscoveredNode is a sibling found via service discovery.
type DiscoveredNode struct {
	NodeID       string
	ServerID     uint32
	ClusterID    string
	ClusterAddr  string // host:port the node advertises for future peer traffic
	Version      string
	DiscoveredAt time.Time
}

// DiscoveryConfig configures what this node advertises about itself.
type DiscoveryConfig struct {
	NodeID      string
	ServerID    uint32
	ClusterID   string
	ClusterAddr string
	Version     string
	Enabled     bool
}

// DiscoveryService advertises this node's identity over mDNS and discovers
// siblings doing the same.
type DiscoveryService struct {
	config  DiscoveryConfig
	server  *mdns.Server
	mu      sync.RWMutex
	nodes   map[string]*DiscoveredNode
	stopCh  chan struct{}
	running bool
	log     *logging.Logger
}

// NewDiscoveryService creates a discovery service advertising config.
func NewDiscoveryService(config DiscoveryConfig) *DiscoveryService {
	return &DiscoveryService{
		config: config,
		nodes:  make(map[string]*DiscoveredNode),
		stopCh: make(chan struct{}),
		log:    logging.NewLogger("cluster.discovery"),
	}
}

// txtRecord builds this node's advertised TXT record, round-tripped
// through a real dns.TXT resource record so its 255-byte-per-string limit
// is enforced the same way a wire-format DNS-SD responder would enforce
// it, rather than hand-rolling the check.
func (d *DiscoveryService) txtRecord() ([]string, error) {
	fields := []string{
		fmt.Sprintf("node_id=%s", d.config.NodeID),
		fmt.Sprintf("server_id=%d", d.config.ServerID),
		fmt.Sprintf("cluster_id=%s", d.config.ClusterID),
		fmt.Sprintf("version=%s", d.config.Version),
	}
	rr := &dns.TXT{
		Hdr: dns.RR_Header{
			Name:   dns.Fqdn(d.config.NodeID + "." + ServiceType + ".local"),
			Rrtype: dns.TypeTXT,
			Class:  dns.ClassINET,
		},
		Txt: fields,
	}
	if dns.Len(rr) > dns.MaxMsgSize {
		return nil, fmt.Errorf("TXT record too large: %d bytes", dns.Len(rr))
	}
	return rr.Txt, nil
}

// Start begins advertising this node and listening for other nodes.
func (d *DiscoveryService) Start() error {
	if !d.config.Enabled {
		d.log.Info("service discovery disabled")
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	host, portStr, err := net.SplitHostPort(d.config.ClusterAddr)
	if err != nil {
		return fmt.Errorf("invalid cluster address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid cluster port: %w", err)
	}

	var ips []net.IP
	if host == "" || host == "0.0.0.0" {
		ips = getLocalIPs()
	} else if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	}

	txtRecords, err := d.txtRecord()
	if err != nil {
		return fmt.Errorf("failed to build TXT record: %w", err)
	}

	service, err := mdns.NewMDNSService(
		d.config.NodeID, // Instance name
		ServiceType,     // Service type
		"",              // Domain (empty = .local)
		"",              // Host name (empty = auto)
		port,
		ips,
		txtRecords,
	)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mDNS server: %w", err)
	}
	d.server = server
	d.running = true

	d.log.Info("service discovery started",
		"node_id", d.config.NodeID, "server_id", d.config.ServerID,
		"cluster_addr", d.config.ClusterAddr, "service_type", ServiceType)

	return nil
}

// Stop stops the discovery service.
func (d *DiscoveryService) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	close(d.stopCh)

	if d.server != nil {
		d.server.Shutdown()
		d.server = nil
	}

	d.running = false
	d.log.Info("service discovery stopped")
	return nil
}

// DiscoverNodes discovers siblings on the local network.
func (d *DiscoveryService) DiscoverNodes(timeout time.Duration) ([]*DiscoveredNode, error) {
	if timeout == 0 {
		timeout = DefaultDiscoveryTimeout
	}

	entriesCh := make(chan *mdns.ServiceEntry, 10)
	var nodes []*DiscoveredNode
	var mu sync.Mutex

	go func() {
		for entry := range entriesCh {
			node := parseServiceEntry(entry)
			if node != nil && node.NodeID != d.config.NodeID {
				mu.Lock()
				nodes = append(nodes, node)
				d.nodes[node.NodeID] = node
				mu.Unlock()
			}
		}
	}()

	params := &mdns.QueryParam{
		Service:             ServiceType,
		Domain:              "local",
		Timeout:             timeout,
		Entries:             entriesCh,
		WantUnicastResponse: true,
	}

	if err := mdns.Query(params); err != nil {
		return nil, fmt.Errorf("mDNS query failed: %w", err)
	}

	close(entriesCh)

	return nodes, nil
}

// DiscoverNodesWithContext discovers nodes with context cancellation support.
func (d *DiscoveryService) DiscoverNodesWithContext(ctx context.Context, timeout time.Duration) ([]*DiscoveredNode, error) {
	resultCh := make(chan []*DiscoveredNode, 1)
	errCh := make(chan error, 1)

	go func() {
		nodes, err := d.DiscoverNodes(timeout)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- nodes
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case nodes := <-resultCh:
		return nodes, nil
	}
}

// GetCachedNodes returns previously discovered nodes.
func (d *DiscoveryService) GetCachedNodes() []*DiscoveredNode {
	d.mu.RLock()
	defer d.mu.RUnlock()

	nodes := make([]*DiscoveredNode, 0, len(d.nodes))
	for _, node := range d.nodes {
		nodes = append(nodes, node)
	}
	return nodes
}

// parseServiceEntry parses an mDNS service entry into a DiscoveredNode.
func parseServiceEntry(entry *mdns.ServiceEntry) *DiscoveredNode {
	if entry == nil {
		return nil
	}

	node := &DiscoveredNode{DiscoveredAt: time.Now()}

	var ip string
	if entry.AddrV4 != nil {
		ip = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		ip = entry.AddrV6.String()
	}
	if ip == "" {
		return nil
	}
	node.ClusterAddr = fmt.Sprintf("%s:%d", ip, entry.Port)

	for _, txt := range entry.InfoFields {
		key, value, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch key {
		case "node_id":
			node.NodeID = value
		case "server_id":
			if id, err := strconv.ParseUint(value, 10, 32); err == nil {
				node.ServerID = uint32(id)
			}
		case "cluster_id":
			node.ClusterID = value
		case "version":
			node.Version = value
		}
	}

	if node.NodeID == "" {
		labels := dns.SplitDomainName(entry.Name)
		if len(labels) > 0 {
			node.NodeID = labels[0]
		} else {
			node.NodeID = entry.Name
		}
	}

	return node
}

// getLocalIPs returns all non-loopback IPv4 addresses.
func getLocalIPs() []net.IP {
	var ips []net.IP

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ips
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ipnet.IP.IsLoopback() {
				continue
			}
			if ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips
}

// IsRunning returns whether the discovery service is running.
func (d *DiscoveryService) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}
