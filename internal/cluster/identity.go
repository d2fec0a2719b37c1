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
identity.go implements the cluster-identity bookkeeping spec.md §4.6 asks
for: a cluster UUID written once into _schema["cluster"], and a roster of
(server-id, uuid) pairs in _cluster. There is no consensus, leader
election, or replication stream here - spec.md's Non-goals explicitly rule
distributed consensus out of scope. What DiscoveryService below adds on
top is purely advisory: it lets a node announce its identity on the local
network and see who else is out there, the same zero-configuration
peer-finding the original mDNS module did, just without anything acting
on what it finds beyond logging it.
*/
package cluster

import (
	"flydb/internal/alter"
	"flydb/internal/logging"
	"flydb/internal/schema"
	"flydb/internal/txn"
)

// Identity binds a node's local server-id/UUID pair to the shared
// dictionary's cluster bookkeeping.
type Identity struct {
	dict     *schema.Dictionary
	ServerID uint32
	UUID     string
	log      *logging.Logger
}

// NewIdentity wraps dict with the node's own server-id/UUID, which the
// caller is expected to have already persisted/loaded (assigning a fresh
// server-id is an operator action in the original too - box.cfg, not
// something the engine invents on its own).
func NewIdentity(dict *schema.Dictionary, serverID uint32, uuid string) *Identity {
	return &Identity{dict: dict, ServerID: serverID, UUID: uuid, log: logging.NewLogger("cluster.identity")}
}

// Join records this node's (server-id, uuid) pair in the roster and
// claims the cluster UUID if this is the first node to set one. Must run
// inside an active transaction so a WAL failure can be rolled back.
func (id *Identity) Join(tx *txn.Transaction, clusterUUID string) error {
	if err := alter.SetClusterUUID(id.dict, clusterUUID); err != nil {
		return err
	}
	if err := alter.AddClusterMember(id.dict, tx, id.ServerID, id.UUID); err != nil {
		return err
	}
	id.log.Info("node joined cluster", "server_id", id.ServerID, "uuid", id.UUID, "cluster_uuid", id.dict.ClusterUUID())
	return nil
}

// Peers returns the roster of every known (server-id, uuid) pair,
// including this node's own entry.
func (id *Identity) Peers() map[uint32]string {
	return id.dict.ClusterRoster()
}

// ClusterUUID returns the cluster-wide UUID recorded in _schema["cluster"].
func (id *Identity) ClusterUUID() string {
	return id.dict.ClusterUUID()
}

// ReconcileDiscovered cross-checks nodes found by DiscoveryService against
// the dictionary's roster and logs any that announce a different
// cluster_id - the only action taken on a mismatch, since joining or
// rejecting peers is the out-of-scope consensus layer.
func (id *Identity) ReconcileDiscovered(nodes []*DiscoveredNode) {
	mine := id.ClusterUUID()
	for _, n := range nodes {
		if n.ClusterID != "" && n.ClusterID != mine {
			id.log.Warn("discovered node advertises a different cluster id",
				"node_id", n.NodeID, "seen_cluster_id", n.ClusterID, "our_cluster_id", mine)
		}
	}
}
