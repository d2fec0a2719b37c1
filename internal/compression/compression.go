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
Package compression provides gzip compression for flybox REPL artifacts:
command-history exports and AddIndexOp bulk-build diagnostics dumps, both
of which are plain-text and benefit from the same pooled writer/buffer
pattern the original compression module used for WAL batches.

Out of scope per spec.md §1: snapshot/WAL block compression (zstd) is an
on-disk record encoding detail this core does not specify - see
DESIGN.md for why that pairing was dropped rather than adapted here.
*/
package compression

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"sync"
)

// ErrDataTooSmall is returned by Compress when data falls below the
// configured minimum size - compressing it would only add gzip's frame
// overhead.
var ErrDataTooSmall = errors.New("data too small to compress")

// Level mirrors compress/gzip's level constants under names that read
// naturally at a call site (NewArchiver(LevelBest)).
type Level int

const (
	LevelFastest Level = gzip.BestSpeed
	LevelDefault Level = gzip.DefaultCompression
	LevelBest    Level = gzip.BestCompression
)

// Archiver compresses and decompresses REPL export payloads. Pooled
// writers/buffers avoid an allocation per EXPORT HISTORY call in a long
// REPL session.
type Archiver struct {
	level   int
	minSize int

	writerPool sync.Pool
	bufferPool sync.Pool
}

// NewArchiver creates an Archiver at the given level; payloads shorter
// than minSize are returned unchanged by Compress (with ErrDataTooSmall)
// rather than paying gzip's frame overhead for no benefit.
func NewArchiver(level Level, minSize int) *Archiver {
	lvl := int(level)
	return &Archiver{
		level:   lvl,
		minSize: minSize,
		writerPool: sync.Pool{
			New: func() interface{} {
				w, _ := gzip.NewWriterLevel(nil, lvl)
				return w
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Compress gzips data, returning (data, ErrDataTooSmall) unchanged when it
// is below the configured minimum size.
func (a *Archiver) Compress(data []byte) ([]byte, error) {
	if len(data) < a.minSize {
		return data, ErrDataTooSmall
	}

	buf := a.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer a.bufferPool.Put(buf)

	w := a.writerPool.Get().(*gzip.Writer)
	w.Reset(buf)
	defer a.writerPool.Put(w)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Decompress reverses Compress.
func (a *Archiver) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
