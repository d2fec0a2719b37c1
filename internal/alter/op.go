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
Package alter implements the alter-space planner (§4.4): a sequence of
AlterSpaceOp values run through a fixed pipeline against one space, and the
data-dictionary DDL triggers (§4.3) that build those plans from writes to
the six system spaces.

Each concrete op is a tagged variant behind the Op interface rather than a
runtime type switch on some "kind" field - AddIndex, DropIndex, ModifyIndex
and ModifySpace each carry exactly the fields their phase needs and know
nothing about each other. Design Notes' own framing for this area: "no
dynamic_cast equivalent should gate the dispatch; a closed set of concrete
types behind one interface, or a tagged union with a switch, are both
fine." A Go interface with concrete receivers is that same closed set.
*/
package alter

import (
	"flydb/internal/schema"
	"flydb/internal/txn"
)

// Op is one step of an alter-space plan. The Planner drives every op
// through the same five-phase pipeline: Prepare validates preconditions
// against the old space, AlterDef mutates a working copy of the
// definition, Alter applies the definition to the new space object, and
// Commit/Rollback fire once the enclosing transaction resolves.
type Op interface {
	// Prepare validates the op against the space as it exists before any
	// op in this plan has run. Returning an error aborts the whole plan
	// before anything is touched.
	Prepare(old *schema.Space) error
	// AlterDef applies this op's definitional change to newSpace, which
	// starts as a shallow clone of old and accumulates every op's change
	// in sequence.
	AlterDef(newSpace *schema.Space) error
	// Alter runs after every op's AlterDef has completed and newSpace
	// has inherited old's recovery state and access grants. This is
	// where bulk work happens (e.g. building a new index from the
	// primary's tuples).
	Alter(old, newSpace *schema.Space) error
	// Commit fires once the transaction owning this plan commits.
	Commit(old, newSpace *schema.Space)
	// Rollback fires if the transaction owning this plan rolls back
	// instead; newSpace has already been discarded by the planner, so a
	// Rollback implementation acts on old only.
	Rollback(old *schema.Space)
}

// Planner accumulates a list of ops targeting one space and runs them
// through the pipeline as a unit, per §4.4's "multiple DDL statements in
// one space alteration... applied as a single planned unit; if any step
// fails, nothing takes effect."
type Planner struct {
	Dict  *schema.Dictionary
	Old   *schema.Space
	Ops   []Op
}

// NewPlanner starts a plan against the given space. Old may be nil when
// the first op is a space creation.
func NewPlanner(dict *schema.Dictionary, old *schema.Space) *Planner {
	return &Planner{Dict: dict, Old: old}
}

// Add appends an op to the plan.
func (p *Planner) Add(op Op) *Planner {
	p.Ops = append(p.Ops, op)
	return p
}

// Execute runs the full pipeline and, on success, registers commit/
// rollback triggers on tx so the dictionary cache is only mutated when
// the transaction actually commits. On any failure, the dictionary is
// left untouched and the old space keeps running unchanged.
func (p *Planner) Execute(tx *txn.Transaction) (*schema.Space, error) {
	for _, op := range p.Ops {
		if err := op.Prepare(p.Old); err != nil {
			return nil, err
		}
	}

	newSpace := p.cloneForAlter()
	for _, op := range p.Ops {
		if err := op.AlterDef(newSpace); err != nil {
			return nil, err
		}
	}
	for _, op := range p.Ops {
		if err := op.Alter(p.Old, newSpace); err != nil {
			return nil, err
		}
	}

	old, ops, dict := p.Old, p.Ops, p.Dict
	tx.OnCommit(func(_ *txn.Transaction) {
		dict.PutSpace(newSpace)
		for _, op := range ops {
			op.Commit(old, newSpace)
		}
	})
	tx.OnRollback(func(_ *txn.Transaction) {
		for i := len(ops) - 1; i >= 0; i-- {
			ops[i].Rollback(old)
		}
	})
	return newSpace, nil
}

// cloneForAlter builds the new space object that AlterDef/Alter mutate:
// a fresh Space carrying the old one's identity, format, indexes, access
// grants and on-replace triggers, per §4.4 phase 4 ("copy over the
// still-valid recovery state and access grants").
func (p *Planner) cloneForAlter() *schema.Space {
	if p.Old == nil {
		return schema.NewSpace(0, 0, "", "memtx", nil)
	}
	ns := schema.NewSpace(p.Old.ID, p.Old.OwnerUID, p.Old.Name, p.Old.Engine, p.Old.Format)
	ns.Temporary = p.Old.Temporary
	for _, idx := range p.Old.Indexes() {
		ns.AddIndex(idx)
	}
	ns.SetAccess(p.Old.CloneAccess())
	ns.SetOnReplaceTriggers(p.Old.OnReplaceTriggers())
	ns.Handler.Replace = p.Old.Handler.Replace
	return ns
}
