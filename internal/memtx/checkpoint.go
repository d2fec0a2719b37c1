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
Checkpoint Manager Implementation
==================================

A checkpoint is a consistent, point-in-time snapshot of every space's
primary key, written out so recovery only has to replay the WAL written
after it rather than the database's entire history.

Unlike internal/storage/disk/checkpoint.go's page-flush model, memtx has
no buffer pool to flush - "consistent" here means a read view: every tuple
live in a space's primary key at BeginCheckpoint is Ref'd so concurrent
replaces cannot free it out from under the writer, and the vclock is
captured at the same instant so the written file can be tied to an exact
recovery point.

Four-phase protocol, mirroring memtx_engine.cc's checkpoint state
machine:

  1. BeginCheckpoint  - snapshot the vclock, Ref every live tuple
  2. WaitCheckpoint   - write the read view to a .snap.tmp file
  3. CommitCheckpoint - fdatasync, rename to the final .snap path, Unref
  4. AbortCheckpoint  - discard the .tmp file, Unref

WaitCheckpoint rate-limits its fdatasync calls to bytesPerSec: a checkpoint
of a large space will only fsync every time it has written that many
bytes since the last one, the same trade-off internal/storage/wal.go's doc
comment lays out for WAL fsync (safety vs. throughput) applied to the
snapshot writer instead.
*/
package memtx

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
	"golang.org/x/sys/unix"

	ferrors "flydb/internal/errors"
	"flydb/internal/fiber"
	"flydb/internal/logging"
	"flydb/internal/schema"
	"flydb/internal/storage"
)

// snapTupleRecord is the on-disk shape of one row in a snapshot file. The
// last row of every file written by writeSpaceSnapshot is an EOF marker
// (EOF: true, no Fields) rather than a tuple - §12's recovery contract: a
// corrupt or missing marker means the file was truncated mid-write, and
// recovery must not silently treat a partial file as complete.
type snapTupleRecord struct {
	Fields []interface{} `json:"fields,omitempty"`
	EOF    bool          `json:"eof,omitempty"`
}

// Checkpoint is an in-progress or completed snapshot: the read view it
// captured and the vclock it was taken at.
type Checkpoint struct {
	ID     uint64
	VClock map[uint32]uint64

	spaces      map[uint32][]*schema.Tuple
	tmpPaths    map[uint32]string
	headerTmp   string
	headerFinal string
}

// CheckpointManager drives the four-phase protocol against a dictionary's
// spaces.
type CheckpointManager struct {
	mu          sync.Mutex
	dict        *schema.Dictionary
	vclock      *VClock
	dir         string
	bytesPerSec int64
	nextID      atomic.Uint64
	log         *logging.Logger
	encryptor   *storage.Encryptor

	// ownerCord hosts the fiber that joins each checkpoint's dedicated
	// writer cord. It outlives any single checkpoint; Close stops it.
	ownerCord *fiber.Cord

	sf singleflight.Group
}

// SetEncryptor enables at-rest encryption of every space's snapshot body.
// Pass nil to disable it again (the zero value already leaves snapshots
// in plaintext).
func (cm *CheckpointManager) SetEncryptor(enc *storage.Encryptor) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.encryptor = enc
}

// checkpointBeginKey is the singleflight key every BeginCheckpoint call
// shares: there is only ever one checkpoint in flight per manager.
const checkpointBeginKey = "begin"

// NewCheckpointManager creates a manager writing snapshots under dir, rate
// limiting fdatasync calls to roughly bytesPerSec (0 disables the limit -
// every write is synced).
func NewCheckpointManager(dict *schema.Dictionary, vclock *VClock, dir string, bytesPerSec int64) *CheckpointManager {
	return &CheckpointManager{
		dict:        dict,
		vclock:      vclock,
		dir:         dir,
		bytesPerSec: bytesPerSec,
		log:         logging.NewLogger("memtx.checkpoint"),
		ownerCord:   fiber.NewCord("checkpoint-mgr"),
	}
}

// Close stops the manager's owner cord. Safe to call once the manager is no
// longer taking checkpoints; a WaitCheckpoint racing a Close is not
// supported, the same one-shutdown-path contract the session's own cord
// carries.
func (cm *CheckpointManager) Close() {
	cm.ownerCord.Stop()
}

// BeginCheckpoint captures the read view: every tuple currently in every
// space's primary key is Ref'd so WaitCheckpoint can write it even if a
// concurrent transaction replaces it in the meantime. Overlapping callers
// (an operator-triggered checkpoint racing the periodic timer, say) share
// a single read view via singleflight rather than each taking their own -
// Ref'ing the same tuple set twice would just mean Unref'ing it twice too,
// for no benefit.
func (cm *CheckpointManager) BeginCheckpoint() *Checkpoint {
	v, _, _ := cm.sf.Do(checkpointBeginKey, func() (interface{}, error) {
		cm.mu.Lock()
		defer cm.mu.Unlock()

		ck := &Checkpoint{
			ID:       cm.nextID.Add(1),
			VClock:   cm.vclock.Snapshot(),
			spaces:   make(map[uint32][]*schema.Tuple),
			tmpPaths: make(map[uint32]string),
		}
		for _, sp := range cm.dict.Spaces() {
			primary := sp.Primary()
			if primary == nil {
				continue
			}
			tuples := primary.All()
			for _, t := range tuples {
				t.Ref()
			}
			ck.spaces[sp.ID] = tuples
		}
		cm.log.Info("checkpoint begin", "id", ck.ID, "vclock", cm.vclock.String())
		return ck, nil
	})
	return v.(*Checkpoint)
}

// WaitCheckpoint spawns a dedicated cord whose sole fiber streams ck's read
// view to disk, rate-limiting fdatasync by accumulated byte count, then
// joins that cord via Cojoin: a fiber on the manager's owner cord yields
// until the writer cord's thread exits, rather than this call blocking its
// caller's own cord for however long the write takes.
func (cm *CheckpointManager) WaitCheckpoint(ck *Checkpoint) error {
	if cm.dir != "" {
		if err := os.MkdirAll(cm.dir, 0o755); err != nil {
			return ferrors.CheckpointFailed(err.Error()).WithDetail(cm.dir)
		}
	}

	writer := fiber.NewCord(fmt.Sprintf("checkpoint-writer-%d", ck.ID))
	var writeErr error
	wf := writer.New("snapshot-write", func(self *fiber.Fiber, args ...interface{}) error {
		writeErr = cm.writeCheckpointFiles(ck)
		writer.Stop()
		return nil
	})
	writer.Wakeup(wf)

	done := make(chan struct{})
	waiter := cm.ownerCord.New("checkpoint-wait", func(self *fiber.Fiber, args ...interface{}) error {
		writer.Cojoin(cm.ownerCord, self)
		close(done)
		return nil
	})
	cm.ownerCord.Wakeup(waiter)
	<-done

	return writeErr
}

// writeCheckpointFiles does the actual disk I/O for WaitCheckpoint; it runs
// on the dedicated writer cord spun up for ck, never on the caller's own
// cord.
func (cm *CheckpointManager) writeCheckpointFiles(ck *Checkpoint) error {
	for spaceID, tuples := range ck.spaces {
		path := filepath.Join(cm.dir, fmt.Sprintf("space-%d.snap.tmp", spaceID))
		if err := cm.writeSpaceSnapshot(path, tuples); err != nil {
			return ferrors.CheckpointFailed(err.Error()).WithDetail(path)
		}
		ck.tmpPaths[spaceID] = path
	}

	ck.headerTmp = filepath.Join(cm.dir, fmt.Sprintf("checkpoint-%d.header.tmp", ck.ID))
	ck.headerFinal = filepath.Join(cm.dir, fmt.Sprintf("checkpoint-%d.header", ck.ID))
	if err := writeSnapshotHeader(ck.headerTmp, cm.dict.ClusterUUID(), ck.VClock); err != nil {
		return ferrors.CheckpointFailed(err.Error()).WithDetail(ck.headerTmp)
	}
	return nil
}

// encryptedSnapPrefix marks a space snapshot file as a single AES-GCM
// envelope rather than a plain JSON-lines stream, so LoadSpaceSnapshot
// knows which path to take without consulting config.
var encryptedSnapPrefix = []byte("FLYDBENC1\n")

func (cm *CheckpointManager) writeSpaceSnapshot(path string, tuples []*schema.Tuple) error {
	if cm.encryptor != nil {
		return cm.writeEncryptedSpaceSnapshot(path, tuples)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var sinceSync int64
	writeRec := func(rec snapTupleRecord) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		n, err := w.Write(append(data, '\n'))
		if err != nil {
			return err
		}
		sinceSync += int64(n)
		if cm.bytesPerSec <= 0 || sinceSync >= cm.bytesPerSec {
			if err := w.Flush(); err != nil {
				return err
			}
			_ = unix.Fdatasync(int(f.Fd()))
			sinceSync = 0
		}
		return nil
	}
	for _, t := range tuples {
		if err := writeRec(snapTupleRecord{Fields: t.Fields}); err != nil {
			return err
		}
	}
	if err := writeRec(snapTupleRecord{EOF: true}); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return unix.Fdatasync(int(f.Fd()))
}

// writeEncryptedSpaceSnapshot buffers the whole JSON-lines body and seals
// it as a single AES-GCM envelope: GCM authenticates the entire payload,
// so it must be sealed (and later opened) as one unit rather than chunked
// per the rate-limit window the plaintext path uses.
func (cm *CheckpointManager) writeEncryptedSpaceSnapshot(path string, tuples []*schema.Tuple) error {
	var body bytes.Buffer
	writeRec := func(rec snapTupleRecord) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		body.Write(data)
		body.WriteByte('\n')
		return nil
	}
	for _, t := range tuples {
		if err := writeRec(snapTupleRecord{Fields: t.Fields}); err != nil {
			return err
		}
	}
	if err := writeRec(snapTupleRecord{EOF: true}); err != nil {
		return err
	}

	ciphertext, err := cm.encryptor.Encrypt(body.Bytes())
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(encryptedSnapPrefix); err != nil {
		return err
	}
	if _, err := f.Write(ciphertext); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return unix.Fdatasync(int(f.Fd()))
}

// LoadSpaceSnapshot reads a space snapshot file written by WaitCheckpoint,
// transparently decrypting it first if it was sealed with an Encryptor.
//
// Every well-formed file ends with an EOF-marker row; its absence means the
// write was interrupted partway through. strictEOF selects what to do about
// that per §12's panic_if_error knob (config.RecoveryMode "strict" vs
// "loose"): strict aborts recovery outright, loose logs a warning and
// returns whatever rows were read before the break.
func LoadSpaceSnapshot(path string, encryptor *storage.Encryptor, strictEOF bool) ([]snapTupleRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(data, encryptedSnapPrefix) {
		if encryptor == nil {
			return nil, ferrors.NewRecoveryError("snapshot is encrypted but no encryptor was configured").WithDetail(path)
		}
		plain, err := encryptor.Decrypt(data[len(encryptedSnapPrefix):])
		if err != nil {
			return nil, err
		}
		data = plain
	}

	var records []snapTupleRecord
	sawEOF := false
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var rec snapTupleRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, err
		}
		if rec.EOF {
			sawEOF = true
			break
		}
		records = append(records, rec)
	}

	if !sawEOF {
		if strictEOF {
			return nil, ferrors.NewRecoveryError("snapshot missing EOF marker, file is truncated").WithDetail(path)
		}
		loadLog.Warn("snapshot missing EOF marker, recovering a truncated file", "path", path, "rows", len(records))
	}
	return records, nil
}

var loadLog = logging.NewLogger("memtx.snapshot")

// CommitCheckpoint renames every temp file to its final .snap path,
// releases the read-view references, and records the checkpoint's vclock
// as the new recovery point.
func (cm *CheckpointManager) CommitCheckpoint(ck *Checkpoint) error {
	for spaceID, tmp := range ck.tmpPaths {
		final := filepath.Join(cm.dir, fmt.Sprintf("space-%d.snap", spaceID))
		if err := os.Rename(tmp, final); err != nil {
			return err
		}
	}
	if ck.headerTmp != "" {
		if err := os.Rename(ck.headerTmp, ck.headerFinal); err != nil {
			return err
		}
	}
	cm.releaseReadView(ck)
	cm.log.Info("checkpoint commit", "id", ck.ID, "vclock", fmt.Sprintf("%v", ck.VClock))
	return nil
}

// AbortCheckpoint discards the temp files and releases the read view
// without touching any committed snapshot.
func (cm *CheckpointManager) AbortCheckpoint(ck *Checkpoint) {
	for _, tmp := range ck.tmpPaths {
		_ = os.Remove(tmp)
	}
	if ck.headerTmp != "" {
		_ = os.Remove(ck.headerTmp)
	}
	cm.releaseReadView(ck)
	cm.log.Warn("checkpoint aborted", "id", ck.ID)
}

func (cm *CheckpointManager) releaseReadView(ck *Checkpoint) {
	for _, tuples := range ck.spaces {
		for _, t := range tuples {
			t.Unref()
		}
	}
}
