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

package memtx

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// VClock is a vector clock keyed by server id: component i counts the
// writes this node has applied that originated at server i. It identifies
// a recovery point precisely (§4.6, supplemented from memtx_engine.cc's
// vclock_follows/vclock_compare), which a single LSN cannot once more than
// one node can originate writes.
type VClock struct {
	mu  sync.Mutex
	vec map[uint32]uint64
}

// NewVClock creates an empty vector clock.
func NewVClock() *VClock {
	return &VClock{vec: make(map[uint32]uint64)}
}

// Bump advances the component for serverID by one and returns the new LSN.
func (v *VClock) Bump(serverID uint32) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vec[serverID]++
	return v.vec[serverID]
}

// Set overwrites the component for serverID directly, used when replaying
// WAL records that already carry an LSN.
func (v *VClock) Set(serverID uint32, lsn uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if lsn > v.vec[serverID] {
		v.vec[serverID] = lsn
	}
}

// Get returns the current component for serverID.
func (v *VClock) Get(serverID uint32) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vec[serverID]
}

// Snapshot returns a copy of the full vector, safe to retain.
func (v *VClock) Snapshot() map[uint32]uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[uint32]uint64, len(v.vec))
	for k, val := range v.vec {
		out[k] = val
	}
	return out
}

// Follows reports whether this vclock is at or ahead of other in every
// component - i.e. every write other has seen, this clock has seen too.
func (v *VClock) Follows(other map[uint32]uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for k, val := range other {
		if v.vec[k] < val {
			return false
		}
	}
	return true
}

// String renders the vector in ascending server-id order, e.g. "{1:5 2:3}".
func (v *VClock) String() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]uint32, 0, len(v.vec))
	for id := range v.vec {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d:%d", id, v.vec[id])
	}
	return "{" + strings.Join(parts, " ") + "}"
}
