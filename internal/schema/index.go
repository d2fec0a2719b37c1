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
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	ferrors "flydb/internal/errors"
)

// IndexType is one of the four access-method families a key definition can
// name. The concrete data structure behind HASH/RTREE/BITSET is out of this
// core's scope (spec.md §1); every type is currently backed by the same
// ordered keyTree, but the Type and the constraints in ValidateKeyDef are
// what every caller actually depends on.
type IndexType string

const (
	IndexHash  IndexType = "HASH"
	IndexTree  IndexType = "TREE"
	IndexRTree IndexType = "RTREE"
	IndexBitset IndexType = "BITSET"
)

// KeyPart names one field participating in a key, in order.
type KeyPart struct {
	FieldNo   int
	FieldType FieldType
}

// KeyDef is the ordered list of key parts defining an index, plus its type
// and uniqueness.
type KeyDef struct {
	IID    uint32
	Name   string
	Type   IndexType
	Unique bool
	Parts  []KeyPart

	// Collation names a golang.org/x/text/collate locale used to compare
	// STRING-typed parts instead of raw byte order. Empty means byte order.
	Collation string
}

// ValidateKeyDef enforces the per-type constraints from the data model:
// HASH must be unique; RTREE/BITSET must be non-unique and single-part;
// RTREE requires an ARRAY field; BITSET requires UNSIGNED or STRING; HASH
// and TREE forbid ARRAY parts.
func ValidateKeyDef(kd *KeyDef) error {
	switch kd.Type {
	case IndexHash:
		if !kd.Unique {
			return ferrors.NewValidationError("HASH index must be unique").WithDetail(kd.Name)
		}
		for _, p := range kd.Parts {
			if p.FieldType == FieldArray {
				return ferrors.NewValidationError("HASH index forbids ARRAY parts").WithDetail(kd.Name)
			}
		}
	case IndexTree:
		for _, p := range kd.Parts {
			if p.FieldType == FieldArray {
				return ferrors.NewValidationError("TREE index forbids ARRAY parts").WithDetail(kd.Name)
			}
		}
	case IndexRTree:
		if kd.Unique {
			return ferrors.NewValidationError("RTREE index must be non-unique").WithDetail(kd.Name)
		}
		if len(kd.Parts) != 1 {
			return ferrors.NewValidationError("RTREE index must be single-part").WithDetail(kd.Name)
		}
		if kd.Parts[0].FieldType != FieldArray {
			return ferrors.NewValidationError("RTREE index requires an ARRAY field").WithDetail(kd.Name)
		}
	case IndexBitset:
		if kd.Unique {
			return ferrors.NewValidationError("BITSET index must be non-unique").WithDetail(kd.Name)
		}
		if len(kd.Parts) != 1 {
			return ferrors.NewValidationError("BITSET index must be single-part").WithDetail(kd.Name)
		}
		t := kd.Parts[0].FieldType
		if t != FieldUnsigned && t != FieldString {
			return ferrors.NewValidationError("BITSET index requires UNSIGNED or STRING").WithDetail(kd.Name)
		}
	default:
		return ferrors.NewValidationError("unknown index type").WithDetail(string(kd.Type))
	}
	return nil
}

// Equal reports whether two key defs describe the same access path: same
// type, uniqueness, and parts, ignoring name. This is the "cosmetic change
// only" test the AddIndex/DropIndex merge optimization (alter-space
// planner, §4.4) uses to decide whether a rebuild is needed.
func (kd *KeyDef) Equal(other *KeyDef) bool {
	if kd.Type != other.Type || kd.Unique != other.Unique {
		return false
	}
	if len(kd.Parts) != len(other.Parts) {
		return false
	}
	for i := range kd.Parts {
		if kd.Parts[i] != other.Parts[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to mutate independently.
func (kd *KeyDef) Clone() *KeyDef {
	c := *kd
	c.Parts = append([]KeyPart(nil), kd.Parts...)
	return &c
}

// Index is one access path on a space: a key definition plus the ordered
// backing store. iid 0 is always the primary key by convention enforced by
// Space.
type Index struct {
	Def  *KeyDef
	tree *keyTree

	collator *collate.Collator
}

// NewIndex creates an empty index for the given key definition. When Def
// names a Collation, a collate.Collator is built once here so STRING parts
// are compared by locale order instead of raw bytes (ValidateKeyDef does
// not reject an unparsable locale tag; it falls back to und, the root
// locale, same as golang.org/x/text/language.Parse's own zero value).
func NewIndex(def *KeyDef) *Index {
	idx := &Index{Def: def, tree: newKeyTree(8)}
	if def.Collation != "" {
		tag, err := language.Parse(def.Collation)
		if err != nil {
			tag = language.Und
		}
		idx.collator = collate.New(tag)
	}
	return idx
}

// encodeKey renders a tuple's key parts into a sortable string. Numbers are
// zero-padded so lexicographic order matches numeric order for the
// unsigned/integer ranges this engine deals in. STRING parts run through
// the index's collator when Def.Collation is set, producing a weighted
// sort key whose plain byte order matches the locale's collation order -
// the keyTree itself never needs to know a collation is in play.
func (idx *Index) encodeKey(t *Tuple) string {
	parts := make([]string, len(idx.Def.Parts))
	var buf collate.Buffer
	for i, p := range idx.Def.Parts {
		v := t.Field(p.FieldNo)
		parts[i] = idx.encodeField(v, &buf)
	}
	return strings.Join(parts, "\x00")
}

func (idx *Index) encodeField(v interface{}, buf *collate.Buffer) string {
	switch x := v.(type) {
	case string:
		if idx.collator != nil {
			return string(idx.collator.Key(buf, []byte(x)))
		}
		return x
	case int:
		return fmt.Sprintf("%020d", x)
	case int64:
		return fmt.Sprintf("%020d", x)
	case uint64:
		return fmt.Sprintf("%020d", x)
	case float64:
		return fmt.Sprintf("%020.6f", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Get looks up the tuple whose key parts equal t's.
func (idx *Index) Get(key string) (*Tuple, bool) {
	return idx.tree.Search(key)
}

// KeyOf returns the encoded key for a tuple under this index's definition.
func (idx *Index) KeyOf(t *Tuple) string { return idx.encodeKey(t) }

// Insert adds tuple under its encoded key. Returns an error if Unique and
// the key already has a different tuple.
func (idx *Index) Insert(t *Tuple) error {
	key := idx.encodeKey(t)
	if idx.Def.Unique {
		if existing, ok := idx.tree.Search(key); ok && existing != t {
			return ferrors.DuplicateKey(key, idx.Def.Name)
		}
	}
	idx.tree.Insert(key, t)
	return nil
}

// Remove deletes the entry for the given tuple's key, if present.
func (idx *Index) Remove(t *Tuple) {
	idx.tree.Delete(idx.encodeKey(t))
}

// All returns every tuple in key order (used for ALL iteration and bulk
// secondary-index construction).
func (idx *Index) All() []*Tuple {
	entries := idx.tree.Range("", "")
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	out := make([]*Tuple, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// Len reports how many tuples the index currently holds.
func (idx *Index) Len() int { return idx.tree.Size() }
