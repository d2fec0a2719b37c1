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
header.go implements the minimal text header xlog.h requires before a
snapshot's row stream: server UUID, vclock, and a format version line,
terminated by a blank line. Each checkpoint writes one header file
alongside its per-space .snap files; OpenSnapshot reads it back and
refuses to recover a snapshot from an incompatible future schema version.
*/
package memtx

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	ferrors "flydb/internal/errors"
)

// SnapshotHeader is the parsed text header preceding a checkpoint's row
// streams.
type SnapshotHeader struct {
	ServerUUID string
	Version    string
	VClock     map[uint32]uint64
}

func writeSnapshotHeader(path string, serverUUID string, vclock map[uint32]uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "Server: %s\n", serverUUID)
	fmt.Fprintf(w, "Version: %s\n", SchemaVersion)
	fmt.Fprint(w, "VClock:")
	for id, lsn := range vclock {
		fmt.Fprintf(w, " %d:%d", id, lsn)
	}
	fmt.Fprint(w, "\n\n")
	return w.Flush()
}

// OpenSnapshot reads a checkpoint's text header and validates its schema
// version against this binary's, the same refusal memtx_engine.cc makes
// before replaying a snapshot too new to understand.
func OpenSnapshot(path string) (*SnapshotHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := &SnapshotHeader{VClock: make(map[uint32]uint64)}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			break
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, ferrors.XlogError("malformed snapshot header line").WithDetail(line)
		}
		key := line[:idx]
		value := strings.TrimSpace(line[idx+1:])
		switch key {
		case "Server":
			h.ServerUUID = value
		case "Version":
			h.Version = value
		case "VClock":
			for _, pair := range strings.Fields(value) {
				idStr, lsnStr, ok := strings.Cut(pair, ":")
				if !ok {
					continue
				}
				id, err := strconv.ParseUint(idStr, 10, 32)
				if err != nil {
					continue
				}
				lsn, err := strconv.ParseUint(lsnStr, 10, 64)
				if err != nil {
					continue
				}
				h.VClock[uint32(id)] = lsn
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := CheckSchemaVersion(h.Version); err != nil {
		return nil, err
	}
	return h, nil
}
