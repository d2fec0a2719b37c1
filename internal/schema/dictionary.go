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
	"sync"

	ferrors "flydb/internal/errors"
	"flydb/internal/logging"
)

// System space ids. Any value in [0, ReservedSpaceIDMax] works; these match
// the reserved band without claiming to match the original's exact numbers,
// which are an on-disk encoding detail §1 puts out of scope.
const (
	SpaceIDSpace   uint32 = 1
	SpaceIDIndex   uint32 = 2
	SpaceIDUser    uint32 = 3
	SpaceIDFunc    uint32 = 4
	SpaceIDPriv    uint32 = 5
	SpaceIDSchema  uint32 = 6
	SpaceIDCluster uint32 = 7
)

// Dictionary is the space cache plus the registries for users, functions,
// privileges, and the two singleton-ish system spaces _schema and
// _cluster. It holds no transaction or trigger logic itself - that belongs
// to the alter-space planner, which observes Dictionary mutations and
// drives WAL-aware commit/rollback around them (§4.3, §4.4).
type Dictionary struct {
	mu           sync.RWMutex
	spaces       map[uint32]*Space
	spacesByName map[string]uint32

	users map[uint32]*User
	funcs map[uint32]*Func
	privs []*Privilege

	clusterUUID    string
	recoveryDone   bool
	clusterRoster  map[uint32]string // server_id -> uuid

	log *logging.Logger
}

// NewDictionary creates an empty dictionary seeded with the reserved
// GUEST/ADMIN/PUBLIC users.
func NewDictionary() *Dictionary {
	d := &Dictionary{
		spaces:        make(map[uint32]*Space),
		spacesByName:  make(map[string]uint32),
		users:         make(map[uint32]*User),
		funcs:         make(map[uint32]*Func),
		clusterRoster: make(map[uint32]string),
		log:           logging.NewLogger("schema"),
	}
	d.users[UIDGuest] = &User{UID: UIDGuest, OwnerUID: UIDAdmin, Type: PrincipalUser, Name: "guest"}
	d.users[UIDAdmin] = &User{UID: UIDAdmin, OwnerUID: UIDAdmin, Type: PrincipalUser, Name: "admin"}
	d.users[UIDPublic] = &User{UID: UIDPublic, OwnerUID: UIDAdmin, Type: PrincipalRole, Name: "public"}
	return d
}

// PutSpace inserts sp into the cache. Used directly by recovery (snapshot
// replay creates spaces without going through the alter-space planner) and
// by the planner's commit phase (atomic cache swap).
func (d *Dictionary) PutSpace(sp *Space) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spaces[sp.ID] = sp
	d.spacesByName[sp.Name] = sp.ID
	if sp.IsSystem() {
		d.log.Debug("system space registered", "id", sp.ID, "name", sp.Name)
	}
}

// RemoveSpace deletes a space from the cache by id.
func (d *Dictionary) RemoveSpace(id uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sp, ok := d.spaces[id]; ok {
		delete(d.spacesByName, sp.Name)
	}
	delete(d.spaces, id)
}

// Space looks up a space by id.
func (d *Dictionary) Space(id uint32) *Space {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spaces[id]
}

// SpaceByName looks up a space by name.
func (d *Dictionary) SpaceByName(name string) *Space {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.spacesByName[name]
	if !ok {
		return nil
	}
	return d.spaces[id]
}

// Spaces returns every space currently cached.
func (d *Dictionary) Spaces() []*Space {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Space, 0, len(d.spaces))
	for _, sp := range d.spaces {
		out = append(out, sp)
	}
	return out
}

// User looks up a principal by uid.
func (d *Dictionary) User(uid uint32) *User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.users[uid]
}

// UserByName looks up a principal by name.
func (d *Dictionary) UserByName(name string) *User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.Name == name {
			return u
		}
	}
	return nil
}

// PutUser installs or overwrites a user/role entry.
func (d *Dictionary) PutUser(u *User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.UID] = u
}

// DropUser removes uid, refusing the three reserved identities.
func (d *Dictionary) DropUser(uid uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkDropUserLocked(uid); err != nil {
		return err
	}
	delete(d.users, uid)
	return nil
}

// CheckDropUser runs every validation DropUser would run, without mutating
// anything. Callers that must fail a DROP USER before scheduling its
// commit-time removal (the alter package's DropUserDeferred) call this
// synchronously instead of discovering the failure too late to report it.
func (d *Dictionary) CheckDropUser(uid uint32) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.checkDropUserLocked(uid)
}

func (d *Dictionary) checkDropUserLocked(uid uint32) error {
	u, ok := d.users[uid]
	if !ok {
		return ferrors.NewExecutionError("no such user").WithDetail(fmtUint(uid))
	}
	if u.IsReserved() {
		return ferrors.NewExecutionError("system user").WithDetail(u.Name)
	}
	if d.userHasObjectsLocked(uid) {
		return ferrors.NewExecutionError("ER_DROP_USER").WithDetail("user has objects")
	}
	return nil
}

func (d *Dictionary) userHasObjectsLocked(uid uint32) bool {
	for _, p := range d.privs {
		if p.GranteeID == uid {
			return true
		}
	}
	for _, sp := range d.spaces {
		if sp.OwnerUID == uid {
			return true
		}
	}
	return false
}

// GrantPrivilege validates and records a grant.
func (d *Dictionary) GrantPrivilege(p *Privilege) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.privs = append(d.privs, p)
}

// RevokePrivilege removes matching grants for (grantee, objectType, objectID).
func (d *Dictionary) RevokePrivilege(grantee uint32, ot ObjectType, objectID uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.privs[:0]
	for _, p := range d.privs {
		if p.GranteeID == grantee && p.ObjectType == ot && p.ObjectID == objectID {
			continue
		}
		out = append(out, p)
	}
	d.privs = out
}

// Func looks up a stored function by fid.
func (d *Dictionary) Func(fid uint32) *Func {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.funcs[fid]
}

// PutFunc installs or overwrites a function entry.
func (d *Dictionary) PutFunc(f *Func) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.funcs[f.FID] = f
}

// ClusterUUID returns the cluster's UUID, or "" if unset.
func (d *Dictionary) ClusterUUID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.clusterUUID
}

// SetClusterUUIDOnce sets the cluster UUID the first time it is seen, per
// §4.6: "if no value was set, set cluster_id to the tuple's UUID". Once
// recovery has completed the value is immutable; callers attempting to
// mutate it after that get an error.
func (d *Dictionary) SetClusterUUIDOnce(uuid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.recoveryDone {
		return ferrors.NewExecutionError("_schema[\"cluster\"] is read-only after recovery")
	}
	if d.clusterUUID == "" {
		d.clusterUUID = uuid
	}
	return nil
}

// MarkRecoveryComplete closes the write-once window on the cluster UUID.
func (d *Dictionary) MarkRecoveryComplete() {
	d.mu.Lock()
	d.recoveryDone = true
	d.mu.Unlock()
}

// AddClusterMember records a (serverID, uuid) roster entry. Reserved-id
// validation for _cluster is the caller's job (alter package) - this just
// records.
func (d *Dictionary) AddClusterMember(serverID uint32, uuid string) {
	d.mu.Lock()
	d.clusterRoster[serverID] = uuid
	d.mu.Unlock()
}

// RemoveClusterMember deletes a roster entry, used to undo AddClusterMember
// on transaction rollback.
func (d *Dictionary) RemoveClusterMember(serverID uint32) {
	d.mu.Lock()
	delete(d.clusterRoster, serverID)
	d.mu.Unlock()
}

// ClusterRoster returns a copy of the server-id -> uuid map.
func (d *Dictionary) ClusterRoster() map[uint32]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[uint32]string, len(d.clusterRoster))
	for k, v := range d.clusterRoster {
		out[k] = v
	}
	return out
}

func fmtUint(v uint32) string {
	const digits = "0123456789"
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v%10]
		v /= 10
	}
	return string(buf[i:])
}
