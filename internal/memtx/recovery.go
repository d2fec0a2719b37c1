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
Package memtx implements the in-memory storage engine: the recovery state
machine that swaps a space's replace function as recovery advances (§4.5),
the vclock used to identify a recovery point, and the checkpoint manager
that produces a consistent read-view snapshot.

Grounded on _examples/original_source/src/box/memtx_engine.cc for the
state machine and replace dispatch, and on internal/storage/disk/
checkpoint.go for the manager's shape (atomic counters, background-loop
pattern, mutex-guarded single-flight).
*/
package memtx

import (
	"sync"

	ferrors "flydb/internal/errors"
	"flydb/internal/logging"
	"flydb/internal/schema"
)

// RecoveryState is one stage of engine startup. Every space registered with
// an Engine gets its Handler.Replace rebound each time the engine advances
// to a new state.
type RecoveryState int

const (
	Initialized RecoveryState = iota
	InitialRecovery
	FinalRecovery
	OK
)

func (s RecoveryState) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case InitialRecovery:
		return "initial_recovery"
	case FinalRecovery:
		return "final_recovery"
	case OK:
		return "ok"
	default:
		return "unknown"
	}
}

// Engine owns the recovery state and rebinds every registered space's
// replace function when the state advances. It is the thing that turns
// schema.Space (a dumb container) into a storage engine.
type Engine struct {
	mu      sync.RWMutex
	state   RecoveryState
	spaces  map[uint32]*schema.Space
	extents *ExtentPool
	VClock  *VClock
	log     *logging.Logger

	// deferredBuilds holds secondary-index builds postponed by AddIndex
	// during recovery (§4.4): building off the primary while it is still
	// being rebuilt by snapshot/WAL replay would just mean doing it twice.
	// They run in registration order the moment the engine reaches OK.
	deferredBuilds []func() error
}

// NewEngine creates an engine in the Initialized state. No space registered
// before the first SetState call can accept writes.
func NewEngine() *Engine {
	return &Engine{
		state:   Initialized,
		spaces:  make(map[uint32]*schema.Space),
		extents: NewExtentPool(),
		VClock:  NewVClock(),
		log:     logging.NewLogger("memtx"),
	}
}

// State reports the engine's current recovery state.
func (e *Engine) State() RecoveryState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// RegisterSpace binds sp's Handler.Replace to the engine's current state
// and keeps it in the rebind set so later SetState calls reach it too.
func (e *Engine) RegisterSpace(sp *schema.Space) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spaces[sp.ID] = sp
	sp.Handler.Replace = e.replaceFuncLocked()
}

// UnregisterSpace drops a space from the rebind set (used when a space is
// dropped via the alter-space planner).
func (e *Engine) UnregisterSpace(id uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.spaces, id)
}

// SetState advances the engine to a new recovery state and rebinds every
// registered space's replace function. States only move forward:
// Initialized -> InitialRecovery -> FinalRecovery -> OK, matching
// memtx_engine.cc's one-way recovery progression.
//
// The InitialRecovery/FinalRecovery -> OK transition additionally runs
// every build AddIndexOp deferred while the engine wasn't OK yet (see
// DeferBuild): this is "end of recovery" for the purposes of secondary-key
// construction, the memtx_build_next/build_all split §4.4 describes.
func (e *Engine) SetState(s RecoveryState) error {
	e.mu.Lock()
	if s < e.state {
		e.mu.Unlock()
		return ferrors.NewExecutionError("recovery state cannot move backward").
			WithDetail(e.state.String() + " -> " + s.String())
	}
	reachedOK := s == OK && e.state != OK
	e.state = s
	fn := e.replaceFuncLocked()
	for _, sp := range e.spaces {
		sp.Handler.Replace = fn
	}
	var toRun []func() error
	if reachedOK {
		toRun = e.deferredBuilds
		e.deferredBuilds = nil
	}
	e.mu.Unlock()

	e.log.InfoFields("memtx recovery state advanced",
		logging.Field{Key: "state", Value: s.String()},
		logging.Field{Key: "spaces", Value: len(e.spaces)})
	for _, build := range toRun {
		if err := build(); err != nil {
			e.log.ErrorFields("deferred secondary index build failed",
				logging.Field{Key: "error", Value: err.Error()})
			return err
		}
	}
	if reachedOK && len(toRun) > 0 {
		e.log.InfoFields("deferred secondary index builds complete",
			logging.Field{Key: "count", Value: len(toRun)})
	}
	return nil
}

// DeferBuild registers fn to run once the engine reaches OK. AddIndexOp
// calls this instead of bulk-building immediately when a secondary index is
// added while the engine is still in InitialRecovery or FinalRecovery.
func (e *Engine) DeferBuild(fn func() error) {
	e.mu.Lock()
	e.deferredBuilds = append(e.deferredBuilds, fn)
	e.mu.Unlock()
}

func (e *Engine) replaceFuncLocked() schema.ReplaceFunc {
	switch e.state {
	case Initialized:
		return notReadyReplace
	case InitialRecovery:
		return e.buildNextReplace
	case FinalRecovery:
		return e.buildNextReplace
	case OK:
		return e.allKeysReplace
	default:
		return notReadyReplace
	}
}

func notReadyReplace(sp *schema.Space, old, new *schema.Tuple, mode schema.ReplaceMode) (*schema.Tuple, error) {
	return nil, ferrors.NewExecutionError("memtx engine is not ready to accept writes").WithDetail(sp.Name)
}

// buildNextReplace is bound during INITIAL_RECOVERY and FINAL_RECOVERY: it
// only maintains the primary key index. Snapshot/WAL replay builds the
// primary first; secondary indexes are built in bulk once the engine
// reaches OK, the same split the original makes between "build_next" (see
// memtx_build_next) and "primary_key" replace phases.
func (e *Engine) buildNextReplace(sp *schema.Space, old, new *schema.Tuple, mode schema.ReplaceMode) (*schema.Tuple, error) {
	p := sp.Primary()
	if p == nil {
		return nil, ferrors.NewExecutionError("space has no primary key").WithDetail(sp.Name)
	}
	if old != nil {
		p.Remove(old)
	}
	if new != nil {
		if err := p.Insert(new); err != nil {
			return nil, err
		}
	}
	return old, nil
}

// allKeysReplace is bound once the engine reaches OK: every index is kept
// in sync, with the mode-specific duplicate discipline enforced against
// the primary key and a rollback of already-applied indexes if a later
// index insert fails (e.g. a secondary unique-key collision).
func (e *Engine) allKeysReplace(sp *schema.Space, old, new *schema.Tuple, mode schema.ReplaceMode) (*schema.Tuple, error) {
	indexes := sp.Indexes()
	if len(indexes) == 0 {
		return nil, ferrors.NewExecutionError("space has no primary key").WithDetail(sp.Name)
	}
	if new != nil {
		e.extents.ReserveForInsert()
	} else {
		e.extents.ReserveForDelete()
	}

	if new != nil {
		primary := sp.Primary()
		key := primary.KeyOf(new)
		_, found := primary.Get(key)
		switch mode {
		case schema.DupInsert:
			if found {
				return nil, ferrors.DuplicateKey(key, primary.Def.Name)
			}
		case schema.DupReplace:
			if !found {
				return nil, ferrors.NewExecutionError("no tuple found to replace").WithDetail(sp.Name)
			}
		case schema.DupReplaceOrInsert:
			// either outcome is fine
		}
	}

	applied := make([]*schema.Index, 0, len(indexes))
	rollback := func() {
		for i := len(applied) - 1; i >= 0; i-- {
			idx := applied[i]
			if new != nil {
				idx.Remove(new)
			}
			if old != nil {
				_ = idx.Insert(old)
			}
		}
	}
	for _, idx := range indexes {
		if old != nil {
			idx.Remove(old)
		}
		if new != nil {
			if err := idx.Insert(new); err != nil {
				rollback()
				return nil, err
			}
		}
		applied = append(applied, idx)
	}
	return old, nil
}
