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
	"golang.org/x/mod/semver"

	ferrors "flydb/internal/errors"
)

// SchemaVersion is the schema format version this binary writes into a
// snapshot's text header and understands on recovery.
const SchemaVersion = "v1.0.0"

// CheckSchemaVersion refuses to recover a snapshot written by a schema
// version newer than this binary understands - the same guard
// memtx_engine.cc applies before replaying a snapshot, just expressed with
// a real semver comparison instead of a hand-rolled major/minor split.
func CheckSchemaVersion(snapshotVersion string) error {
	if !semver.IsValid(snapshotVersion) {
		return ferrors.NewRecoveryError("snapshot has malformed schema version").WithDetail(snapshotVersion)
	}
	if semver.Compare(snapshotVersion, SchemaVersion) > 0 {
		return ferrors.NewRecoveryError("snapshot schema version is newer than this binary supports").
			WithDetail(snapshotVersion + " > " + SchemaVersion)
	}
	return nil
}
