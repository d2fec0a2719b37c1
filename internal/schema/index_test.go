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

import "testing"

func stringFormat() *Format {
	return &Format{FieldCount: 1, Types: []FieldType{FieldString}}
}

func TestIndexByteOrderWithoutCollation(t *testing.T) {
	def := &KeyDef{IID: 0, Name: "primary", Type: IndexTree, Unique: true,
		Parts: []KeyPart{{FieldNo: 0, FieldType: FieldString}}}
	idx := NewIndex(def)

	format := stringFormat()
	for _, s := range []string{"banana", "Apple", "cherry"} {
		if err := idx.Insert(NewTuple(format, []interface{}{s})); err != nil {
			t.Fatalf("insert %q: %v", s, err)
		}
	}

	got := idx.All()
	want := []string{"Apple", "banana", "cherry"}
	for i, tup := range got {
		if tup.Field(0).(string) != want[i] {
			t.Fatalf("position %d: got %v, want raw byte order %v", i, got, want)
		}
	}
}

func TestIndexCollationOrdersCaseInsensitively(t *testing.T) {
	def := &KeyDef{IID: 0, Name: "primary", Type: IndexTree, Unique: true,
		Parts:     []KeyPart{{FieldNo: 0, FieldType: FieldString}},
		Collation: "en",
	}
	idx := NewIndex(def)
	if idx.collator == nil {
		t.Fatal("expected a collator to be built for a non-empty Collation")
	}

	format := stringFormat()
	for _, s := range []string{"banana", "Apple", "cherry"} {
		if err := idx.Insert(NewTuple(format, []interface{}{s})); err != nil {
			t.Fatalf("insert %q: %v", s, err)
		}
	}

	got := idx.All()
	want := []string{"Apple", "banana", "cherry"}
	for i, tup := range got {
		if tup.Field(0).(string) != want[i] {
			t.Fatalf("position %d: got %v, want locale order %v", i, got, want)
		}
	}
}

func TestIndexUnparsableCollationFallsBackToRootLocale(t *testing.T) {
	def := &KeyDef{IID: 0, Name: "primary", Type: IndexTree, Unique: true,
		Parts:     []KeyPart{{FieldNo: 0, FieldType: FieldString}},
		Collation: "not-a-real-bcp47-tag-@@@",
	}
	idx := NewIndex(def)
	if idx.collator == nil {
		t.Fatal("expected an unparsable locale tag to still build a collator against the root locale")
	}
}
