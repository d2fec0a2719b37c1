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
recovery_apply.go is the other half of §4.5's recovery pipeline: checkpoint.go
produces and decodes snapshot files, this file is what actually replays them.
A space must already be registered with the engine and carry the indexes it
is supposed to have - this package has no schema-definition snapshot of its
own, so reconstructing _space/_index/_user rows at startup is the caller's
job (§1 scope: DDL wire framing is out of scope, this is the Go-native
equivalent of replaying _space/_index rows before data rows).
*/
package memtx

import (
	"fmt"
	"os"
	"path/filepath"

	ferrors "flydb/internal/errors"
	"flydb/internal/logging"
	"flydb/internal/schema"
	"flydb/internal/storage"
)

var recoveryLog = logging.NewLogger("memtx.recovery")

// ApplySnapshotRow replays one decoded snapshot record into sp by building a
// tuple from its fields and running it through whatever replace function is
// currently bound. During InitialRecovery/FinalRecovery that is
// buildNextReplace, so this is also where "initial recovery only builds the
// primary" actually takes effect - secondary indexes catch up later, in
// bulk, when the engine reaches OK (see Engine.DeferBuild).
func ApplySnapshotRow(sp *schema.Space, rec snapTupleRecord) error {
	t := schema.NewTuple(sp.Format, rec.Fields)
	_, err := sp.Replace(nil, t, schema.DupInsert)
	return err
}

// RecoverSpace loads path (a snapshot written by WaitCheckpoint for this
// space) and replays every row into sp via ApplySnapshotRow, in file order.
func RecoverSpace(sp *schema.Space, path string, encryptor *storage.Encryptor, strictEOF bool) error {
	records, err := LoadSpaceSnapshot(path, encryptor, strictEOF)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := ApplySnapshotRow(sp, rec); err != nil {
			return ferrors.NewRecoveryError("replaying snapshot row").WithDetail(sp.Name).WithCause(err)
		}
	}
	recoveryLog.InfoFields("space recovered from snapshot",
		logging.Field{Key: "space", Value: sp.Name},
		logging.Field{Key: "rows", Value: len(records)})
	return nil
}

// RecoverDictionary drives InitialRecovery -> FinalRecovery -> OK against
// every space already registered with eng, replaying each one's
// "<dir>/space-<id>.snap" file if one exists. A space with no snapshot file
// on disk (created after the last checkpoint) is simply left empty.
//
// Reaching OK flushes every secondary-index build AddIndexOp deferred while
// the engine was still in InitialRecovery/FinalRecovery (§4.4), so a space
// whose secondary was added mid-recovery ends up fully built, not empty.
func RecoverDictionary(dict *schema.Dictionary, eng *Engine, dir string, encryptor *storage.Encryptor, strictEOF bool) error {
	if dir == "" {
		return eng.SetState(OK)
	}
	if err := eng.SetState(InitialRecovery); err != nil {
		return err
	}
	recovered, skipped := 0, 0
	for _, sp := range dict.Spaces() {
		path := filepath.Join(dir, fmt.Sprintf("space-%d.snap", sp.ID))
		if _, err := os.Stat(path); err != nil {
			skipped++
			continue
		}
		if err := RecoverSpace(sp, path, encryptor, strictEOF); err != nil {
			return err
		}
		recovered++
	}
	if err := eng.SetState(FinalRecovery); err != nil {
		return err
	}
	if err := eng.SetState(OK); err != nil {
		return err
	}
	recoveryLog.InfoFields("dictionary recovery complete",
		logging.Field{Key: "recovered_spaces", Value: recovered},
		logging.Field{Key: "spaces_with_no_snapshot", Value: skipped})
	return nil
}
