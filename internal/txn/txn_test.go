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

package txn

import (
	"testing"
	"time"

	"flydb/internal/fiber"
	"flydb/internal/schema"
)

func newTestSpace() *schema.Space {
	format := &schema.Format{FieldCount: 2, Types: []schema.FieldType{schema.FieldUnsigned, schema.FieldString}}
	sp := schema.NewSpace(512, schema.UIDAdmin, "t", "memtx", format)
	pk := schema.NewIndex(&schema.KeyDef{IID: 0, Name: "primary", Type: schema.IndexTree, Unique: true, Parts: []schema.KeyPart{{FieldNo: 0, FieldType: schema.FieldUnsigned}}})
	sp.AddIndex(pk)
	sp.Handler.Replace = func(s *schema.Space, old, new *schema.Tuple, mode schema.ReplaceMode) (*schema.Tuple, error) {
		p := s.Primary()
		if new != nil {
			if err := p.Insert(new); err != nil {
				return nil, err
			}
		}
		if old != nil && new == nil {
			p.Remove(old)
		}
		return old, nil
	}
	return sp
}

func TestTransactionRollsBackOnYield(t *testing.T) {
	cord := fiber.NewCord("txtest")
	defer cord.Stop()

	sp := newTestSpace()
	original := schema.NewTuple(sp.Format, []interface{}{1, "a"})
	sp.Primary().Insert(original)

	doneCh := make(chan struct{})
	main := cord.New("main", func(self *fiber.Fiber, args ...interface{}) error {
		tx := Begin(self)
		replacement := schema.NewTuple(sp.Format, []interface{}{1, "b"})
		if _, err := sp.Replace(original, replacement, schema.DupReplaceOrInsert); err != nil {
			t.Errorf("replace failed: %v", err)
		}
		tx.RecordStmt(Statement{Space: sp, Old: original, New: replacement})

		fiber.Sleep(self, 0) // must auto-rollback the still-active transaction

		close(doneCh)
		return nil
	})
	cord.Wakeup(main)

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	time.Sleep(10 * time.Millisecond)

	got, ok := sp.Primary().Get(sp.Primary().KeyOf(original))
	if !ok || got.Field(1) != "a" {
		t.Fatalf("expected rollback to restore original tuple, got %+v ok=%v", got, ok)
	}
}

func TestTransactionCommitFiresTriggers(t *testing.T) {
	cord := fiber.NewCord("txtest2")
	defer cord.Stop()

	var committed bool
	doneCh := make(chan struct{})
	main := cord.New("main", func(self *fiber.Fiber, args ...interface{}) error {
		tx := Begin(self)
		tx.OnCommit(func(_ *Transaction) { committed = true })
		tx.Commit()
		close(doneCh)
		return nil
	})
	cord.Wakeup(main)

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	if !committed {
		t.Fatal("expected on_commit trigger to fire")
	}
}
