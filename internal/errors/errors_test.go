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

package errors

import "testing"

func TestRecoverySystemFiberConstructors(t *testing.T) {
	cases := []struct {
		name string
		err  *FlyDBError
		cat  Category
	}{
		{"xlog", XlogError("truncated record"), CategoryRecovery},
		{"xlog gap", XlogGapError("missing lsn 5-9"), CategoryRecovery},
		{"checkpoint", CheckpointFailed("disk full"), CategoryRecovery},
		{"system", SystemError("too many open files"), CategorySystem},
		{"oom", OutOfMemory("extent pool exhausted"), CategorySystem},
		{"cancelled", FiberIsCancelled(), CategoryFiber},
		{"dead", FiberIsDead("worker-3"), CategoryFiber},
	}
	for _, tc := range cases {
		if tc.err.Category != tc.cat {
			t.Errorf("%s: expected category %s, got %s", tc.name, tc.cat, tc.err.Category)
		}
		if tc.err.Error() == "" {
			t.Errorf("%s: expected non-empty message", tc.name)
		}
	}
}

func TestFormatErrorUserMessageIncludesHint(t *testing.T) {
	err := NewValidationError("bad key def").WithDetail("widgets").WithHint("check the index type")
	out := FormatError(err)
	if out == "" {
		t.Fatal("expected non-empty formatted output")
	}
}

func TestWithCausePreservesUnwrap(t *testing.T) {
	cause := NewRecoveryError("short read")
	err := XlogError("truncated record").WithCause(cause)
	if err.Unwrap() != cause {
		t.Fatal("expected Unwrap to return the wrapped cause")
	}
}
