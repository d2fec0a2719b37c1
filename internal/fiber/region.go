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

// regionGCThreshold is the point at which Reset frees backing slabs instead
// of just rewinding the bump pointer, matching fiber_gc()'s 128 KiB rule.
const regionGCThreshold = 128 * 1024

// Region is a bump-arena allocator for allocations that live until the next
// GC point (normally end-of-statement). It never frees individual
// allocations; Reset either rewinds (cheap, common case) or drops the slabs
// entirely once usage has grown past the threshold, to avoid pinning a large
// arena alive for the life of the fiber.
type Region struct {
	slabs [][]byte
	cur   []byte
	used  int
}

func newRegion() *Region {
	return &Region{}
}

// Alloc returns n freshly zeroed bytes, valid until the next Reset.
func (r *Region) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	if len(r.cur) < n {
		size := 4096
		if n > size {
			size = n
		}
		r.cur = make([]byte, size)
		r.slabs = append(r.slabs, r.cur)
	}
	buf := r.cur[:n]
	r.cur = r.cur[n:]
	r.used += n
	return buf
}

// Used reports the number of bytes handed out since the last full free.
func (r *Region) Used() int { return r.used }

// Reset rewinds the arena for reuse. If cumulative usage exceeded the GC
// threshold, the backing slabs are dropped instead of retained, so a fiber
// that did one unusually large allocation does not keep that memory pinned
// for its entire lifetime.
func (r *Region) Reset() {
	if r.used > regionGCThreshold {
		r.slabs = nil
		r.cur = nil
	}
	r.used = 0
}
