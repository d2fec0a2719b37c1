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
ddl.go is the data-dictionary half of this package (§4.3): the functions a
session driving DDL (CREATE SPACE, CREATE INDEX, CREATE USER, GRANT, ...)
calls instead of writing raw rows into _space/_index/_user/_func/_priv/
_schema/_cluster directly. Each one is the Go equivalent of an on_replace
trigger fired against the corresponding system space in the original:
validate, stage the dictionary-cache mutation behind the owning
transaction's commit/rollback triggers, and (for index changes) hand off
to the Planner pipeline in op.go.
*/
package alter

import (
	ferrors "flydb/internal/errors"
	"flydb/internal/memtx"
	"flydb/internal/schema"
	"flydb/internal/txn"
)

// CreateSpace inserts a new space into the dictionary cache, registering a
// rollback trigger that evicts it again if the owning transaction never
// commits (e.g. the WAL write fails downstream).
func CreateSpace(dict *schema.Dictionary, tx *txn.Transaction, sp *schema.Space) error {
	if dict.SpaceByName(sp.Name) != nil {
		return ferrors.NewValidationError("space already exists").WithDetail(sp.Name)
	}
	dict.PutSpace(sp)
	tx.OnRollback(func(_ *txn.Transaction) {
		dict.RemoveSpace(sp.ID)
	})
	return nil
}

// DropSpace verifies the space carries no indexes and no grants, then
// registers a commit-time removal trigger. Per §4.3, the row is only
// physically gone from the cache once the transaction actually commits;
// until then lookups still see it (Tarantool's "the old row stays visible
// until commit" rule applied to DDL).
func DropSpace(dict *schema.Dictionary, tx *txn.Transaction, id uint32) error {
	sp := dict.Space(id)
	if sp == nil {
		return ferrors.NewExecutionError("no such space")
	}
	if sp.IndexCount() > 0 {
		return ferrors.NewExecutionError("cannot drop a space that still has indexes").WithDetail(sp.Name)
	}
	tx.OnCommit(func(_ *txn.Transaction) {
		dict.RemoveSpace(id)
	})
	return nil
}

// AlterSpace runs a Planner's pipeline against the named space and, on
// success, leaves the commit/rollback wiring installed by Planner.Execute
// in place; the caller just needs to keep driving the transaction.
func AlterSpace(dict *schema.Dictionary, tx *txn.Transaction, spaceID uint32, ops ...Op) (*schema.Space, error) {
	old := dict.Space(spaceID)
	if old == nil {
		return nil, ferrors.NewExecutionError("no such space")
	}
	planner := NewPlanner(dict, old)
	for _, op := range ops {
		planner.Add(op)
	}
	return planner.Execute(tx)
}

// AddIndex is the common single-op case of AlterSpace: build and install
// one new index. eng may be nil for a plan that never needs recovery-state
// awareness (tests building an index against a space with no engine
// attached); every live DDL path passes its session's engine.
func AddIndex(dict *schema.Dictionary, tx *txn.Transaction, eng *memtx.Engine, spaceID uint32, def *schema.KeyDef) (*schema.Space, error) {
	return AlterSpace(dict, tx, spaceID, &AddIndexOp{Def: def, Engine: eng})
}

// DropIndex is the common single-op case of AlterSpace: remove one index.
func DropIndex(dict *schema.Dictionary, tx *txn.Transaction, spaceID, iid uint32) (*schema.Space, error) {
	return AlterSpace(dict, tx, spaceID, &DropIndexOp{IID: iid})
}

// ModifyIndex redefines iid's KeyDef. When the change is purely cosmetic -
// newDef is Equal to the existing def apart from name/iid - MergeAddDrop
// collapses what would otherwise be a drop-then-rebuild into a single
// ModifyIndexOp that reuses the existing index in place, so no tuple is
// ever re-inserted anywhere.
func ModifyIndex(dict *schema.Dictionary, tx *txn.Transaction, eng *memtx.Engine, spaceID, iid uint32, newDef *schema.KeyDef) (*schema.Space, error) {
	old := dict.Space(spaceID)
	if old == nil {
		return nil, ferrors.NewExecutionError("no such space")
	}
	drop := &DropIndexOp{IID: iid}
	add := &AddIndexOp{Def: newDef, Engine: eng}
	if merged := MergeAddDrop(old, drop, add); merged != nil {
		return AlterSpace(dict, tx, spaceID, merged)
	}
	return AlterSpace(dict, tx, spaceID, drop, add)
}

// CreateUser installs a new principal, rolling the cache entry back if the
// transaction aborts.
func CreateUser(dict *schema.Dictionary, tx *txn.Transaction, u *schema.User) error {
	if dict.UserByName(u.Name) != nil {
		return ferrors.NewValidationError("user already exists").WithDetail(u.Name)
	}
	dict.PutUser(u)
	tx.OnRollback(func(_ *txn.Transaction) {
		_ = dict.DropUser(u.UID)
	})
	return nil
}

// DropUser removes a principal once the transaction commits. Every check
// DropUser itself would run - reserved identity, ER_DROP_USER for a user
// that still owns spaces or holds grants - is validated synchronously here
// first, the same way DropSpace validates before scheduling its own
// commit-time removal: a commit trigger cannot fail the transaction, so by
// the time it runs it is too late to report anything back to the caller.
func DropUserDeferred(dict *schema.Dictionary, tx *txn.Transaction, uid uint32) error {
	if err := dict.CheckDropUser(uid); err != nil {
		return err
	}
	tx.OnCommit(func(_ *txn.Transaction) {
		_ = dict.DropUser(uid)
	})
	return nil
}

// Grant records a privilege grant, rolled back if the transaction aborts.
func Grant(dict *schema.Dictionary, tx *txn.Transaction, p *schema.Privilege) {
	dict.GrantPrivilege(p)
	tx.OnRollback(func(_ *txn.Transaction) {
		dict.RevokePrivilege(p.GranteeID, p.ObjectType, p.ObjectID)
	})
}

// Revoke removes a privilege grant once the transaction commits.
func Revoke(dict *schema.Dictionary, tx *txn.Transaction, granteeID uint32, ot schema.ObjectType, objectID uint32) {
	tx.OnCommit(func(_ *txn.Transaction) {
		dict.RevokePrivilege(granteeID, ot, objectID)
	})
}

// SetClusterUUID implements _schema["cluster"]'s write-once rule: the first
// writer wins, every later attempt to change it is rejected outright
// (there is nothing to roll back - the write is refused before it takes
// any effect).
func SetClusterUUID(dict *schema.Dictionary, uuid string) error {
	return dict.SetClusterUUIDOnce(uuid)
}

// ErrReservedServerID is returned by AddClusterMember for server id 0,
// which is reserved and never assigned to a real node.
var ErrReservedServerID = ferrors.NewValidationError("server id 0 is reserved")

// AddClusterMember appends a (server-id, uuid) pair to the cluster roster,
// rejecting the reserved server id and registering a rollback trigger that
// un-does the append if the transaction aborts.
func AddClusterMember(dict *schema.Dictionary, tx *txn.Transaction, serverID uint32, uuid string) error {
	if serverID == 0 {
		return ErrReservedServerID
	}
	dict.AddClusterMember(serverID, uuid)
	tx.OnRollback(func(_ *txn.Transaction) {
		dict.RemoveClusterMember(serverID)
	})
	return nil
}
