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
Package schema holds the data dictionary: tuples, spaces, indexes, key
definitions, users, functions, and privileges, plus the system spaces
(_space, _index, _user, _func, _priv, _schema, _cluster) that make the
dictionary itself mutable through ordinary DML.
*/
package schema

import "sync/atomic"

// FieldType is a tuple field's declared type.
type FieldType string

const (
	FieldUnsigned FieldType = "unsigned"
	FieldInteger  FieldType = "integer"
	FieldString   FieldType = "string"
	FieldNumber   FieldType = "number"
	FieldArray    FieldType = "array"
	FieldMap      FieldType = "map"
	FieldAny      FieldType = "any"
)

// Tuple is an ordered, typed field vector. It is reference-counted: it is
// freed (eligible for GC) once the last index entry and reader release
// their reference. Go's GC backs the actual memory reclamation; the
// refcount here exists to preserve the explicit "who is still looking at
// this tuple" bookkeeping the original's allocator needs, which the
// read-view/checkpoint snapshot mechanism depends on (see memtx.VClock
// callers and beginCheckpoint).
type Tuple struct {
	Format *Format
	Fields []interface{}

	refs int32
}

// NewTuple constructs a tuple from decoded fields under the given format.
// Ref count starts at zero; callers that retain the tuple must call Ref.
func NewTuple(format *Format, fields []interface{}) *Tuple {
	return &Tuple{Format: format, Fields: fields}
}

// Ref increments the tuple's reference count.
func (t *Tuple) Ref() *Tuple {
	atomic.AddInt32(&t.refs, 1)
	return t
}

// Unref decrements the reference count. Once it reaches zero the tuple is
// unreachable from any index or reader and is left for the garbage
// collector.
func (t *Tuple) Unref() {
	atomic.AddInt32(&t.refs, -1)
}

// RefCount reports the current reference count, for tests and invariants.
func (t *Tuple) RefCount() int32 {
	return atomic.LoadInt32(&t.refs)
}

// Field returns field i, or nil if out of range.
func (t *Tuple) Field(i int) interface{} {
	if i < 0 || i >= len(t.Fields) {
		return nil
	}
	return t.Fields[i]
}

// Format describes field offsets and type constraints for tuples sharing a
// space's shape. Kept minimal: field count and declared types, enough to
// validate a tuple against a key definition.
type Format struct {
	FieldCount int
	Types      []FieldType
}

// Validate reports whether fields conform to the format: no fewer fields
// than FieldCount (0 means "unconstrained"), and declared types matching
// where specified.
func (f *Format) Validate(fields []interface{}) bool {
	if f == nil {
		return true
	}
	if f.FieldCount > 0 && len(fields) < f.FieldCount {
		return false
	}
	for i, want := range f.Types {
		if want == "" || want == FieldAny || i >= len(fields) {
			continue
		}
		if !typeMatches(want, fields[i]) {
			return false
		}
	}
	return true
}

func typeMatches(want FieldType, v interface{}) bool {
	switch want {
	case FieldUnsigned, FieldInteger, FieldNumber:
		switch v.(type) {
		case int, int32, int64, uint, uint32, uint64, float64:
			return true
		default:
			return false
		}
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldArray:
		_, ok := v.([]interface{})
		return ok
	case FieldMap:
		_, ok := v.(map[string]interface{})
		return ok
	default:
		return true
	}
}
