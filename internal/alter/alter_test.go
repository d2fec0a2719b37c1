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
	"testing"
	"time"

	"flydb/internal/fiber"
	"flydb/internal/schema"
	"flydb/internal/txn"
)

func memtxReplace(sp *schema.Space) schema.ReplaceFunc {
	return func(s *schema.Space, old, new *schema.Tuple, mode schema.ReplaceMode) (*schema.Tuple, error) {
		p := s.Primary()
		if new != nil {
			if err := p.Insert(new); err != nil {
				return nil, err
			}
			for _, idx := range s.Secondaries() {
				_ = idx.Insert(new)
			}
		}
		if old != nil {
			p.Remove(old)
			for _, idx := range s.Secondaries() {
				idx.Remove(old)
			}
		}
		return old, nil
	}
}

func newUserSpace(id uint32, name string) *schema.Space {
	format := &schema.Format{FieldCount: 2, Types: []schema.FieldType{schema.FieldUnsigned, schema.FieldString}}
	sp := schema.NewSpace(id, schema.UIDAdmin, name, "memtx", format)
	pk := schema.NewIndex(&schema.KeyDef{IID: 0, Name: "primary", Type: schema.IndexTree, Unique: true,
		Parts: []schema.KeyPart{{FieldNo: 0, FieldType: schema.FieldUnsigned}}})
	sp.AddIndex(pk)
	sp.Handler.Replace = memtxReplace(sp)
	return sp
}

func runInFiber(t *testing.T, fn func(self *fiber.Fiber)) {
	t.Helper()
	cord := fiber.NewCord("altertest")
	defer cord.Stop()
	done := make(chan struct{})
	f := cord.New("main", func(self *fiber.Fiber, args ...interface{}) error {
		fn(self)
		close(done)
		return nil
	})
	cord.Wakeup(f)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestCreateSpaceRollsBackOnAbort(t *testing.T) {
	dict := schema.NewDictionary()
	sp := newUserSpace(600, "widgets")

	runInFiber(t, func(self *fiber.Fiber) {
		tx := txn.Begin(self)
		if err := CreateSpace(dict, tx, sp); err != nil {
			t.Fatalf("create space: %v", err)
		}
		if dict.SpaceByName("widgets") == nil {
			t.Fatal("space should be visible before commit (cache is mutated immediately)")
		}
		tx.Rollback()
	})

	if dict.SpaceByName("widgets") != nil {
		t.Fatal("expected rollback to evict the new space from the cache")
	}
}

func TestAddIndexBuildsFromPrimaryAndMirrorsLiveWrites(t *testing.T) {
	dict := schema.NewDictionary()
	sp := newUserSpace(601, "events")
	dict.PutSpace(sp)

	t1 := schema.NewTuple(sp.Format, []interface{}{1, "alpha"})
	t2 := schema.NewTuple(sp.Format, []interface{}{2, "beta"})
	sp.Primary().Insert(t1)
	sp.Primary().Insert(t2)

	secDef := &schema.KeyDef{IID: 1, Name: "by_name", Type: schema.IndexTree, Unique: true,
		Parts: []schema.KeyPart{{FieldNo: 1, FieldType: schema.FieldString}}}

	runInFiber(t, func(self *fiber.Fiber) {
		tx := txn.Begin(self)
		newSp, err := AddIndex(dict, tx, nil, sp.ID, secDef)
		if err != nil {
			t.Fatalf("add index: %v", err)
		}
		if newSp.IndexCount() != 2 {
			t.Fatalf("expected 2 indexes, got %d", newSp.IndexCount())
		}
		sec := newSp.Index(1)
		if sec.Len() != 2 {
			t.Fatalf("expected secondary to have been built with 2 existing tuples, got %d", sec.Len())
		}

		// A write against the OLD space (still live until commit) must be
		// mirrored into the index under construction.
		t3 := schema.NewTuple(sp.Format, []interface{}{3, "gamma"})
		if _, err := sp.Replace(nil, t3, schema.DupInsert); err != nil {
			t.Fatalf("live write during build: %v", err)
		}
		if sec.Len() != 3 {
			t.Fatalf("expected live-sync trigger to mirror the new write, got len=%d", sec.Len())
		}

		tx.Commit()
	})

	got := dict.Space(sp.ID)
	if got.IndexCount() != 2 {
		t.Fatalf("expected committed space to carry 2 indexes, got %d", got.IndexCount())
	}
}

func TestAddIndexRollbackClearsLiveSyncTrigger(t *testing.T) {
	dict := schema.NewDictionary()
	sp := newUserSpace(604, "sessions")
	dict.PutSpace(sp)

	t1 := schema.NewTuple(sp.Format, []interface{}{1, "alpha"})
	sp.Primary().Insert(t1)

	secDef := &schema.KeyDef{IID: 1, Name: "by_name", Type: schema.IndexTree, Unique: true,
		Parts: []schema.KeyPart{{FieldNo: 1, FieldType: schema.FieldString}}}

	runInFiber(t, func(self *fiber.Fiber) {
		tx := txn.Begin(self)
		_, err := AddIndex(dict, tx, nil, sp.ID, secDef)
		if err != nil {
			t.Fatalf("add index: %v", err)
		}
		// Simulate a downstream WAL failure: the DDL itself succeeded
		// (Alter already ran and installed the live-sync mirror on the
		// still-live old space), but the transaction never commits.
		tx.Rollback()
	})

	if dict.Space(sp.ID).IndexCount() != 1 {
		t.Fatalf("expected rollback to leave the space with only its primary key")
	}
	if len(sp.OnReplaceTriggers()) != 0 {
		t.Fatal("expected rollback to clear the live-sync trigger installed on the old space")
	}

	// A write after rollback must not panic or silently feed a discarded
	// index builder; the space cache must be byte-identical to pre-DDL.
	t2 := schema.NewTuple(sp.Format, []interface{}{2, "beta"})
	if _, err := sp.Replace(nil, t2, schema.DupInsert); err != nil {
		t.Fatalf("post-rollback write: %v", err)
	}
}

// TestAddIndexCreatesFirstPrimaryKeyOnEmptySpace covers CREATE SPACE
// immediately followed by CREATE INDEX for the primary: old carries no
// index at all yet, so AddIndexOp.Alter must not treat "no primary to
// build from" as an error in this one case.
func TestAddIndexCreatesFirstPrimaryKeyOnEmptySpace(t *testing.T) {
	dict := schema.NewDictionary()
	format := &schema.Format{FieldCount: 2, Types: []schema.FieldType{schema.FieldUnsigned, schema.FieldString}}
	sp := schema.NewSpace(606, schema.UIDAdmin, "fresh", "memtx", format)
	sp.Handler.Replace = memtxReplace(sp)
	dict.PutSpace(sp)

	pkDef := &schema.KeyDef{IID: 0, Name: "primary", Type: schema.IndexTree, Unique: true,
		Parts: []schema.KeyPart{{FieldNo: 0, FieldType: schema.FieldUnsigned}}}

	runInFiber(t, func(self *fiber.Fiber) {
		tx := txn.Begin(self)
		newSp, err := AddIndex(dict, tx, nil, sp.ID, pkDef)
		if err != nil {
			t.Fatalf("expected the first primary key to install cleanly, got %v", err)
		}
		if newSp.Primary() == nil {
			t.Fatal("expected the new space to carry a primary key")
		}
		tx.Commit()
	})

	if dict.Space(sp.ID).Primary() == nil {
		t.Fatal("expected the committed space to keep its new primary key")
	}

	t1 := schema.NewTuple(format, []interface{}{1, "a"})
	if _, err := dict.Space(sp.ID).Replace(nil, t1, schema.DupInsert); err != nil {
		t.Fatalf("insert after CREATE INDEX: %v", err)
	}
}

func TestDropIndexRefusesLastPrimaryWithSecondaries(t *testing.T) {
	dict := schema.NewDictionary()
	sp := newUserSpace(602, "orders")
	sp.AddIndex(schema.NewIndex(&schema.KeyDef{IID: 1, Name: "by_x", Type: schema.IndexTree, Unique: false,
		Parts: []schema.KeyPart{{FieldNo: 1, FieldType: schema.FieldString}}}))
	dict.PutSpace(sp)

	runInFiber(t, func(self *fiber.Fiber) {
		tx := txn.Begin(self)
		_, err := DropIndex(dict, tx, sp.ID, 0)
		if err == nil {
			t.Fatal("expected dropping the primary while a secondary exists to fail")
		}
		tx.Commit()
	})
}

func TestMergeAddDropCollapsesCosmeticRename(t *testing.T) {
	sp := newUserSpace(603, "tags")
	secDef := &schema.KeyDef{IID: 1, Name: "by_tag", Type: schema.IndexTree, Unique: true,
		Parts: []schema.KeyPart{{FieldNo: 1, FieldType: schema.FieldString}}}
	sp.AddIndex(schema.NewIndex(secDef))

	renamed := secDef.Clone()
	renamed.Name = "by_tag_v2"

	merged := MergeAddDrop(sp, &DropIndexOp{IID: 1}, &AddIndexOp{Def: renamed})
	if merged == nil {
		t.Fatal("expected a cosmetic rename to merge into a single ModifyIndexOp")
	}
	if _, ok := merged.(*ModifyIndexOp); !ok {
		t.Fatalf("expected *ModifyIndexOp, got %T", merged)
	}
}

func TestSetClusterUUIDIsWriteOnce(t *testing.T) {
	dict := schema.NewDictionary()
	if err := SetClusterUUID(dict, "uuid-1"); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := SetClusterUUID(dict, "uuid-2"); err != nil {
		t.Fatalf("second write should be a silent no-op, not an error: %v", err)
	}
	if got := dict.ClusterUUID(); got != "uuid-1" {
		t.Fatalf("expected first write to stick, got %q", got)
	}
}

func TestDropUserDeferredRejectsUserWithGrantsBeforeScheduling(t *testing.T) {
	dict := schema.NewDictionary()
	u := &schema.User{UID: 100, OwnerUID: schema.UIDAdmin, Type: schema.PrincipalUser, Name: "bob"}
	dict.PutUser(u)
	sp := newUserSpace(605, "widgets")
	dict.PutSpace(sp)

	runInFiber(t, func(self *fiber.Fiber) {
		tx := txn.Begin(self)
		Grant(dict, tx, &schema.Privilege{GrantorID: schema.UIDAdmin, GranteeID: u.UID,
			ObjectType: schema.ObjectSpace, ObjectID: sp.ID, Access: schema.AccessRead})
		tx.Commit()
	})

	runInFiber(t, func(self *fiber.Fiber) {
		tx := txn.Begin(self)
		err := DropUserDeferred(dict, tx, u.UID)
		if err == nil {
			t.Fatal("expected DROP USER to fail synchronously while bob still holds a grant")
		}
		tx.Rollback()
	})

	if dict.UserByName("bob") == nil {
		t.Fatal("a rejected drop must not have scheduled the commit trigger at all")
	}
}

func TestAddClusterMemberRejectsReservedServerID(t *testing.T) {
	dict := schema.NewDictionary()
	runInFiber(t, func(self *fiber.Fiber) {
		tx := txn.Begin(self)
		if err := AddClusterMember(dict, tx, 0, "uuid-x"); err == nil {
			t.Fatal("expected server id 0 to be rejected")
		}
		tx.Commit()
	})
}
