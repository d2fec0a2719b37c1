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

package alter

import (
	ferrors "flydb/internal/errors"
	"flydb/internal/memtx"
	"flydb/internal/schema"
)

// AddIndexOp builds and installs a new index on a space. Per §4.4, the
// build reads every tuple from the space's primary key while a live
// on_replace trigger mirrors concurrent writes into the index under
// construction, so no write made during the build is lost.
//
// Engine is optional; when set and not yet OK, building a secondary index
// (IID != 0) is deferred to end-of-recovery instead of running immediately -
// the primary is itself still being rebuilt by snapshot/WAL replay, so an
// immediate build would just be redone once replay finishes.
type AddIndexOp struct {
	Def    *schema.KeyDef
	Engine *memtx.Engine

	built           *schema.Index
	preAlterTrigger []schema.Trigger
	deferred        bool
	cancelled       *bool
}

func (op *AddIndexOp) Prepare(old *schema.Space) error {
	if old == nil {
		return ferrors.NewExecutionError("cannot add an index to a space that does not exist yet")
	}
	if old.Index(op.Def.IID) != nil {
		return ferrors.NewValidationError("index iid already in use").WithDetail(op.Def.Name)
	}
	return schema.ValidateKeyDef(op.Def)
}

func (op *AddIndexOp) AlterDef(newSpace *schema.Space) error {
	op.built = schema.NewIndex(op.Def)
	newSpace.AddIndex(op.built)
	return nil
}

// Alter performs the bulk build from the old space's primary key, then
// installs a live-sync trigger on the OLD space (still serving traffic
// until commit) that mirrors any write arriving mid-build into op.built,
// per the "live sync during index build" requirement. If a secondary index
// is added while the engine is still recovering, the build is deferred
// instead (see DeferBuild on Engine.SetState) and no live-sync trigger is
// installed - nothing queries the index until the engine reaches OK, so
// there is no concurrent write window to mirror yet.
func (op *AddIndexOp) Alter(old, newSpace *schema.Space) error {
	primary := old.Primary()
	if primary == nil {
		if op.Def.IID == 0 {
			// Giving a space its first-ever primary key: there is no
			// existing primary to build from and, by construction, no
			// tuple could have been inserted into a space that never had
			// one, so there is nothing to mirror either.
			return nil
		}
		return ferrors.NewExecutionError("space has no primary key to build from").WithDetail(old.Name)
	}

	if op.Def.IID != 0 && op.Engine != nil && op.Engine.State() != memtx.OK {
		op.deferred = true
		cancelled := new(bool)
		op.cancelled = cancelled
		built, name := op.built, op.Def.Name
		op.Engine.DeferBuild(func() error {
			if *cancelled {
				return nil
			}
			for _, t := range old.Primary().All() {
				if err := built.Insert(t); err != nil {
					return ferrors.NewExecutionError("duplicate key building new index").WithDetail(name)
				}
			}
			return nil
		})
		return nil
	}

	for _, t := range primary.All() {
		if err := op.built.Insert(t); err != nil {
			return ferrors.NewExecutionError("duplicate key building new index").WithDetail(op.Def.Name)
		}
	}
	// Snapshot old's trigger list before appending the live-sync mirror so
	// Rollback can restore it exactly - old stays live in the cache on
	// rollback and must not be left carrying a trigger for an index that
	// no longer exists anywhere.
	op.preAlterTrigger = old.OnReplaceTriggers()
	old.OnReplace(func(_ *schema.Space, oldTuple, newTuple *schema.Tuple) {
		if oldTuple != nil {
			op.built.Remove(oldTuple)
		}
		if newTuple != nil {
			_ = op.built.Insert(newTuple)
		}
	})
	return nil
}

func (op *AddIndexOp) Commit(old, newSpace *schema.Space) {}

// Rollback restores old's on-replace trigger list to what it was before
// Alter installed the live-sync mirror, per §4.4: a failed DDL must leave
// the space cache byte-identical to its pre-DDL state. A deferred build
// installed no trigger, only a closure sitting in the engine's deferred
// queue; cancel it so end-of-recovery doesn't build an index nothing
// references anymore.
func (op *AddIndexOp) Rollback(old *schema.Space) {
	if op.deferred {
		if op.cancelled != nil {
			*op.cancelled = true
		}
		return
	}
	if op.preAlterTrigger != nil || op.built != nil {
		old.SetOnReplaceTriggers(op.preAlterTrigger)
	}
}

// DropIndexOp removes an index from a space.
type DropIndexOp struct {
	IID uint32
}

func (op *DropIndexOp) Prepare(old *schema.Space) error {
	if old == nil || old.Index(op.IID) == nil {
		return ferrors.NewExecutionError("no such index")
	}
	if op.IID == 0 {
		return old.CheckDropPrimary()
	}
	return nil
}

func (op *DropIndexOp) AlterDef(newSpace *schema.Space) error {
	newSpace.DropIndex(op.IID)
	return nil
}

func (op *DropIndexOp) Alter(old, newSpace *schema.Space) error { return nil }

func (op *DropIndexOp) Commit(old, newSpace *schema.Space) {}

func (op *DropIndexOp) Rollback(old *schema.Space) {}

// ModifyIndexOp changes an existing index's definition in place without a
// full rebuild when the change is cosmetic (name only); MergeAddDrop below
// detects the case where an AddIndex immediately follows a DropIndex on the
// same iid with an otherwise-equal KeyDef and collapses the pair into one
// of these instead of a drop-then-rebuild.
type ModifyIndexOp struct {
	IID    uint32
	NewDef *schema.KeyDef
}

func (op *ModifyIndexOp) Prepare(old *schema.Space) error {
	if old == nil || old.Index(op.IID) == nil {
		return ferrors.NewExecutionError("no such index")
	}
	return schema.ValidateKeyDef(op.NewDef)
}

func (op *ModifyIndexOp) AlterDef(newSpace *schema.Space) error {
	existing := newSpace.Index(op.IID)
	if existing != nil && existing.Def.Equal(op.NewDef) {
		// Cosmetic change only (name/iid/collation) - same *Index, same
		// tree, so no tuple is ever re-inserted into anything.
		existing.Def = op.NewDef
		return nil
	}
	idx := schema.NewIndex(op.NewDef)
	if existing != nil {
		for _, t := range existing.All() {
			if err := idx.Insert(t); err != nil {
				return err
			}
		}
	}
	newSpace.AddIndex(idx)
	return nil
}

func (op *ModifyIndexOp) Alter(old, newSpace *schema.Space) error { return nil }

func (op *ModifyIndexOp) Commit(old, newSpace *schema.Space) {}

func (op *ModifyIndexOp) Rollback(old *schema.Space) {}

// ModifySpaceOp changes space-level metadata (name, temporary flag) that
// does not touch any index.
type ModifySpaceOp struct {
	NewName      string
	NewTemporary *bool
}

func (op *ModifySpaceOp) Prepare(old *schema.Space) error {
	if old == nil {
		return ferrors.NewExecutionError("no such space")
	}
	return nil
}

func (op *ModifySpaceOp) AlterDef(newSpace *schema.Space) error {
	if op.NewName != "" {
		newSpace.Name = op.NewName
	}
	if op.NewTemporary != nil {
		newSpace.Temporary = *op.NewTemporary
	}
	return nil
}

func (op *ModifySpaceOp) Alter(old, newSpace *schema.Space) error { return nil }

func (op *ModifySpaceOp) Commit(old, newSpace *schema.Space) {}

func (op *ModifySpaceOp) Rollback(old *schema.Space) {}

// MergeAddDrop implements the AddIndex/DropIndex merge optimization: a
// DropIndex immediately followed by an AddIndex on the same iid, where the
// new KeyDef is Equal to the old one (a purely cosmetic change, e.g. a
// rename), collapses into a single ModifyIndexOp that skips the rebuild
// entirely. Called by DDL trigger code before appending to a Planner.
func MergeAddDrop(old *schema.Space, drop *DropIndexOp, add *AddIndexOp) Op {
	if old == nil {
		return nil
	}
	existing := old.Index(drop.IID)
	if existing == nil || add.Def.IID != drop.IID {
		return nil
	}
	if !existing.Def.Equal(add.Def) {
		return nil
	}
	return &ModifyIndexOp{IID: drop.IID, NewDef: add.Def}
}
