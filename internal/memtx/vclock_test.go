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

import "testing"

func TestVClockBumpAndFollows(t *testing.T) {
	v := NewVClock()
	v.Bump(1)
	v.Bump(1)
	v.Bump(2)

	snap := v.Snapshot()
	if snap[1] != 2 || snap[2] != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	older := map[uint32]uint64{1: 1, 2: 1}
	if !v.Follows(older) {
		t.Fatal("expected current clock to follow an older one")
	}

	ahead := map[uint32]uint64{1: 5}
	if v.Follows(ahead) {
		t.Fatal("expected current clock not to follow one that is ahead")
	}
}

func TestVClockSetNeverMovesBackward(t *testing.T) {
	v := NewVClock()
	v.Set(1, 10)
	v.Set(1, 3)
	if got := v.Get(1); got != 10 {
		t.Fatalf("expected Set to ignore a lower LSN, got %d", got)
	}
}
