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

package fiber

import "sync/atomic"

// Pool hands out fresh request-handler fibers backed by a cord's own
// dead-fiber recycle list, the way fiber.c's fiber_pool avoids allocating a
// fresh fiber per request by keeping an idle list scheduled tail-first
// (approximating LRU). Cord.New already implements that recycle list; Pool
// adds naming and a submitted-task counter on top of it.
type Pool struct {
	cord      *Cord
	name      string
	submitted int64
}

// NewPool creates a pool that submits tasks as fibers on cord.
func NewPool(cord *Cord, name string, max int) *Pool {
	return &Pool{cord: cord, name: name}
}

// Submit creates (or reuses, via the cord's recycle list) a fiber to run fn
// and schedules it on the ready list.
func (p *Pool) Submit(fn Func) *Fiber {
	atomic.AddInt64(&p.submitted, 1)
	f := p.cord.New(p.name, fn)
	p.cord.Wakeup(f)
	return f
}

// Submitted reports how many tasks this pool has dispatched.
func (p *Pool) Submitted() int64 {
	return atomic.LoadInt64(&p.submitted)
}
