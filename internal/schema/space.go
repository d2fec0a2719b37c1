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

package schema

import (
	"sort"
	"sync"

	ferrors "flydb/internal/errors"
)

// ReservedSpaceIDMax is the top of the reserved system-space id band.
// Creating a user space inside the band is allowed but logged as a warning
// by the dictionary (§6 "Reserved ids").
const ReservedSpaceIDMax = 511

// ReplaceMode selects the duplicate-handling discipline for Replace.
type ReplaceMode int

const (
	// DupInsert fails if the key collides in any unique index.
	DupInsert ReplaceMode = iota
	// DupReplace requires a primary-key match to delete; the replaced tuple
	// must be the one matched in every secondary index, else it fails.
	DupReplace
	// DupReplaceOrInsert is DupReplace when the primary matches, else DupInsert.
	DupReplaceOrInsert
)

// ReplaceFunc is the engine's per-phase mutation primitive, bound onto a
// Space's Handler by the memtx engine according to the space's current
// recovery state (see memtx.Recovery).
type ReplaceFunc func(sp *Space, old, new *Tuple, mode ReplaceMode) (*Tuple, error)

// Handler is the engine binding attached to a space: the current replace
// function pointer, swapped as the engine's recovery phase advances.
type Handler struct {
	Replace ReplaceFunc
}

// Trigger fires on a space's DML (on-replace) or DDL lifecycle event.
type Trigger func(sp *Space, old, new *Tuple)

// Space is a named ordered collection of tuples.
type Space struct {
	ID        uint32
	OwnerUID  uint32
	Engine    string
	Name      string
	Format    *Format
	Temporary bool

	mu         sync.RWMutex
	indexes    map[uint32]*Index
	indexOrder []uint32
	access     map[uint32]uint32 // per-user access bitmap
	onReplace  []Trigger

	Handler *Handler
}

// NewSpace creates an empty space (no indexes) with the given definition.
func NewSpace(id, ownerUID uint32, name, engine string, format *Format) *Space {
	return &Space{
		ID:       id,
		OwnerUID: ownerUID,
		Engine:   engine,
		Name:     name,
		Format:   format,
		indexes:  make(map[uint32]*Index),
		access:   make(map[uint32]uint32),
		Handler:  &Handler{},
	}
}

// IsSystem reports whether this space's id falls in the reserved band.
func (sp *Space) IsSystem() bool { return sp.ID <= ReservedSpaceIDMax }

// Primary returns the primary key index (iid 0), or nil if the space is in
// the NO_KEYS state (no primary yet, or it was just dropped).
func (sp *Space) Primary() *Index {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.indexes[0]
}

// Index returns the index with the given iid, or nil.
func (sp *Space) Index(iid uint32) *Index {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.indexes[iid]
}

// Indexes returns every index in ascending iid order.
func (sp *Space) Indexes() []*Index {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	out := make([]*Index, len(sp.indexOrder))
	for i, iid := range sp.indexOrder {
		out[i] = sp.indexes[iid]
	}
	return out
}

// Secondaries returns every non-primary index.
func (sp *Space) Secondaries() []*Index {
	all := sp.Indexes()
	if len(all) == 0 {
		return nil
	}
	out := make([]*Index, 0, len(all)-1)
	for _, idx := range all {
		if idx.Def.IID != 0 {
			out = append(out, idx)
		}
	}
	return out
}

// AddIndex installs idx, keeping indexOrder sorted by iid.
func (sp *Space) AddIndex(idx *Index) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if _, exists := sp.indexes[idx.Def.IID]; !exists {
		sp.indexOrder = append(sp.indexOrder, idx.Def.IID)
		sort.Slice(sp.indexOrder, func(i, j int) bool { return sp.indexOrder[i] < sp.indexOrder[j] })
	}
	sp.indexes[idx.Def.IID] = idx
}

// DropIndex removes the index with the given iid.
func (sp *Space) DropIndex(iid uint32) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	delete(sp.indexes, iid)
	for i, id := range sp.indexOrder {
		if id == iid {
			sp.indexOrder = append(sp.indexOrder[:i], sp.indexOrder[i+1:]...)
			break
		}
	}
}

// IndexCount reports how many indexes the space currently has.
func (sp *Space) IndexCount() int {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return len(sp.indexes)
}

// CheckDropPrimary enforces §4.4's DropIndex rules: the primary of a system
// space can never be dropped; the primary of a user space cannot be dropped
// while any secondary still exists.
func (sp *Space) CheckDropPrimary() error {
	if sp.IsSystem() {
		return ferrors.NewValidationError("cannot drop primary key of a system space").WithDetail(sp.Name)
	}
	if sp.IndexCount() > 1 {
		return ferrors.NewExecutionError("ER_DROP_PRIMARY_KEY").
			WithDetail("cannot drop primary key while secondary indexes exist")
	}
	return nil
}

// OnReplace registers a DML trigger observing every successful replace.
func (sp *Space) OnReplace(t Trigger) {
	sp.mu.Lock()
	sp.onReplace = append(sp.onReplace, t)
	sp.mu.Unlock()
}

// ClearOnReplace drops every on-replace trigger (used when the alter-space
// planner swaps the trigger list from an old space onto its replacement).
func (sp *Space) ClearOnReplace() {
	sp.mu.Lock()
	sp.onReplace = nil
	sp.mu.Unlock()
}

// OnReplaceTriggers returns the current on-replace trigger list (used by the
// planner to move the list wholesale onto a new space on commit).
func (sp *Space) OnReplaceTriggers() []Trigger {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return append([]Trigger(nil), sp.onReplace...)
}

// SetOnReplaceTriggers replaces the on-replace trigger list wholesale.
func (sp *Space) SetOnReplaceTriggers(triggers []Trigger) {
	sp.mu.Lock()
	sp.onReplace = triggers
	sp.mu.Unlock()
}

func (sp *Space) fireOnReplace(old, new *Tuple) {
	sp.mu.RLock()
	triggers := append([]Trigger(nil), sp.onReplace...)
	sp.mu.RUnlock()
	for _, t := range triggers {
		t(sp, old, new)
	}
}

// Replace dispatches to the space's current Handler.Replace, then fires any
// on-replace triggers on success. The Handler is swapped by the memtx
// engine as recovery phases advance (§4.5); Space itself knows nothing
// about recovery states.
func (sp *Space) Replace(old, new *Tuple, mode ReplaceMode) (*Tuple, error) {
	if sp.Handler == nil || sp.Handler.Replace == nil {
		return nil, ferrors.NewExecutionError("space has no replace handler bound").WithDetail(sp.Name)
	}
	result, err := sp.Handler.Replace(sp, old, new, mode)
	if err != nil {
		return nil, err
	}
	sp.fireOnReplace(old, new)
	return result, nil
}

// Access returns the access bitmap for uid (0 if none granted).
func (sp *Space) Access(uid uint32) uint32 {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.access[uid]
}

// Grant ORs bits into uid's access bitmap.
func (sp *Space) Grant(uid uint32, bits uint32) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.access[uid] |= bits
}

// Revoke clears bits from uid's access bitmap.
func (sp *Space) Revoke(uid uint32, bits uint32) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.access[uid] &^= bits
}

// CloneAccess returns a copy of the access-bitmap map, used by the
// alter-space planner to carry grants from an old space onto its
// replacement (§4.4 phase 4).
func (sp *Space) CloneAccess() map[uint32]uint32 {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	out := make(map[uint32]uint32, len(sp.access))
	for k, v := range sp.access {
		out[k] = v
	}
	return out
}

// SetAccess overwrites the access-bitmap map wholesale.
func (sp *Space) SetAccess(access map[uint32]uint32) {
	sp.mu.Lock()
	sp.access = access
	sp.mu.Unlock()
}

// CheckInvariants validates the subset invariant: every secondary index's
// tuples must all be present (by key) in the primary index. Exposed for
// tests asserting the testable property in spec.md §8.
func (sp *Space) CheckInvariants() error {
	primary := sp.Primary()
	if primary == nil {
		return nil
	}
	primarySet := make(map[string]struct{}, primary.Len())
	for _, t := range primary.All() {
		primarySet[primary.KeyOf(t)] = struct{}{}
	}
	for _, sec := range sp.Secondaries() {
		for _, t := range sec.All() {
			if _, ok := primarySet[primary.KeyOf(t)]; !ok {
				return ferrors.NewExecutionError("secondary index tuple missing from primary index").WithDetail(sp.Name)
			}
		}
	}
	return nil
}
