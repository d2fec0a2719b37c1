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
	"testing"

	"flydb/internal/schema"
)

func newSpaceWithTwoIndexes(id uint32) *schema.Space {
	format := &schema.Format{FieldCount: 2, Types: []schema.FieldType{schema.FieldUnsigned, schema.FieldString}}
	sp := schema.NewSpace(id, schema.UIDAdmin, "t", "memtx", format)
	sp.AddIndex(schema.NewIndex(&schema.KeyDef{IID: 0, Name: "primary", Type: schema.IndexTree, Unique: true,
		Parts: []schema.KeyPart{{FieldNo: 0, FieldType: schema.FieldUnsigned}}}))
	sp.AddIndex(schema.NewIndex(&schema.KeyDef{IID: 1, Name: "by_name", Type: schema.IndexTree, Unique: true,
		Parts: []schema.KeyPart{{FieldNo: 1, FieldType: schema.FieldString}}}))
	return sp
}

func TestNotReadyBeforeFirstState(t *testing.T) {
	e := NewEngine()
	sp := newSpaceWithTwoIndexes(700)
	e.RegisterSpace(sp)

	t1 := schema.NewTuple(sp.Format, []interface{}{1, "a"})
	if _, err := sp.Replace(nil, t1, schema.DupInsert); err == nil {
		t.Fatal("expected replace to fail before the engine leaves Initialized")
	}
}

func TestInitialRecoveryOnlyMaintainsPrimary(t *testing.T) {
	e := NewEngine()
	sp := newSpaceWithTwoIndexes(701)
	e.RegisterSpace(sp)
	if err := e.SetState(InitialRecovery); err != nil {
		t.Fatal(err)
	}

	t1 := schema.NewTuple(sp.Format, []interface{}{1, "a"})
	if _, err := sp.Replace(nil, t1, schema.DupInsert); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if sp.Primary().Len() != 1 {
		t.Fatalf("expected primary to have 1 tuple, got %d", sp.Primary().Len())
	}
	if sp.Index(1).Len() != 0 {
		t.Fatalf("expected secondary to stay empty during initial recovery, got %d", sp.Index(1).Len())
	}
}

func TestOKStateMaintainsAllIndexesAndRollsBackOnConflict(t *testing.T) {
	e := NewEngine()
	sp := newSpaceWithTwoIndexes(702)
	e.RegisterSpace(sp)
	if err := e.SetState(InitialRecovery); err != nil {
		t.Fatal(err)
	}
	if err := e.SetState(FinalRecovery); err != nil {
		t.Fatal(err)
	}
	if err := e.SetState(OK); err != nil {
		t.Fatal(err)
	}

	t1 := schema.NewTuple(sp.Format, []interface{}{1, "a"})
	if _, err := sp.Replace(nil, t1, schema.DupInsert); err != nil {
		t.Fatalf("replace 1: %v", err)
	}
	if sp.Index(1).Len() != 1 {
		t.Fatalf("expected secondary to be maintained once OK, got %d", sp.Index(1).Len())
	}

	// A second tuple whose secondary key collides must fail, and the
	// primary must be rolled back to not contain it.
	t2 := schema.NewTuple(sp.Format, []interface{}{2, "a"})
	if _, err := sp.Replace(nil, t2, schema.DupInsert); err == nil {
		t.Fatal("expected secondary unique-key collision to fail")
	}
	if sp.Primary().Len() != 1 {
		t.Fatalf("expected rollback of the primary insert, got len=%d", sp.Primary().Len())
	}
	if e.extents.TotalReserved() == 0 {
		t.Fatal("expected extent reservations to have been recorded")
	}
}

func TestRecoveryStateCannotMoveBackward(t *testing.T) {
	e := NewEngine()
	if err := e.SetState(OK); err != nil {
		t.Fatal(err)
	}
	if err := e.SetState(InitialRecovery); err == nil {
		t.Fatal("expected moving recovery state backward to fail")
	}
}
